package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"flowscope/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// Query Helpers
// ============================================================================

// filterClauses renders the shared client-visible filters (minimum amount,
// risk bucket, currency, time window) as AND-prefixed SQL. Focus and depth
// are handled by the callers.
func filterClauses(f domain.Filters) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)

	if f.MinAmount.IsPositive() {
		sb.WriteString(" AND amount_received_num >= ?")
		num, _ := f.MinAmount.Float64()
		args = append(args, num)
	}

	switch domain.RiskTier(f.RiskLevel) {
	case domain.TierHigh:
		sb.WriteString(" AND risk_score >= ?")
		args = append(args, domain.HighRiskThreshold)
	case domain.TierMedium:
		sb.WriteString(" AND risk_score >= ? AND risk_score < ?")
		args = append(args, domain.MediumRiskThreshold, domain.HighRiskThreshold)
	case domain.TierLow:
		sb.WriteString(" AND risk_score < ?")
		args = append(args, domain.MediumRiskThreshold)
	}

	if f.Currency != "" && f.Currency != "all" {
		sb.WriteString(" AND receiving_currency = ?")
		args = append(args, f.Currency)
	}

	if f.WindowDays > 0 {
		sb.WriteString(" AND ts >= ?")
		args = append(args, time.Now().UTC().AddDate(0, 0, -f.WindowDays))
	}

	return sb.String(), args
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads one transaction row in the canonical column order
func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t                      domain.Transaction
		ts                     time.Time
		amountRecv, amountPaid string
		format                 sql.NullString
	)
	err := row.Scan(&t.ID, &ts, &t.FromBank, &t.FromAccount, &t.ToBank,
		&t.ToAccount, &amountRecv, &t.ReceivingCurrency, &amountPaid,
		&t.PaymentCurrency, &format, &t.Risk)
	if err != nil {
		return nil, err
	}

	t.Timestamp = ts
	t.PaymentFormat = nullToString(format)
	if t.AmountReceived, err = decimal.NewFromString(amountRecv); err != nil {
		return nil, fmt.Errorf("corrupt amount for transaction %s: %w", t.ID, err)
	}
	if t.AmountPaid, err = decimal.NewFromString(amountPaid); err != nil {
		return nil, fmt.Errorf("corrupt paid amount for transaction %s: %w", t.ID, err)
	}
	return &t, nil
}

// queryTransactions runs a transaction select and scans all rows
func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// ============================================================================
// Aggregation Helpers
// ============================================================================

func meanRisk(risks []float64) float64 {
	if len(risks) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range risks {
		sum += r
	}
	return domain.ClampRisk(sum / float64(len(risks)))
}

// countryFromBank treats a two-letter bank code as the account's country.
// Anything else yields no location.
func countryFromBank(bank string) sql.NullString {
	code := strings.ToUpper(strings.TrimSpace(bank))
	if !domain.ValidLocationCode(code) {
		return sql.NullString{}
	}
	return sql.NullString{String: code, Valid: true}
}
