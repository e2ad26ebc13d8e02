package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"flowscope/internal/domain"
)

// CSVImporter handles transaction CSV uploads. Bank exports name their
// columns inconsistently, so each field matches against a list of known
// aliases, case-insensitively.
type CSVImporter struct{}

// NewCSVImporter creates a new CSV importer
func NewCSVImporter() *CSVImporter {
	return &CSVImporter{}
}

// Format returns the codec format identifier
func (c *CSVImporter) Format() string {
	return "csv"
}

var columnAliases = map[string][]string{
	"timestamp":          {"timestamp", "date", "transaction date", "datetime"},
	"from_bank":          {"from bank", "sender bank", "source bank", "originating bank"},
	"from_account":       {"from account", "sender account", "source account", "account"},
	"to_bank":            {"to bank", "receiver bank", "destination bank", "receiving bank"},
	"to_account":         {"to account", "receiver account", "destination account", "account.1"},
	"amount_received":    {"amount received", "amount", "transaction amount", "received amount"},
	"receiving_currency": {"receiving currency", "currency", "curr", "ccy"},
	"amount_paid":        {"amount paid", "paid amount", "amount sent", "send amount"},
	"payment_currency":   {"payment currency", "pay currency", "send currency"},
	"payment_format":     {"payment format", "payment type", "transaction type", "method"},
	"risk_score":         {"risk score", "risk"},
	"is_laundering":      {"is laundering", "laundering"},
}

var requiredColumns = []string{"timestamp", "from_account", "to_account", "amount_received"}

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// Parse reads a transaction CSV. Rows with unparseable amounts or missing
// endpoints are skipped; a missing required column fails the whole file.
func (c *CSVImporter) Parse(r io.Reader) ([]*domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var txs []*domain.Transaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		amount, err := parseAmount(field("amount_received"))
		if err != nil {
			continue
		}
		paid := amount
		if raw := field("amount_paid"); raw != "" {
			if p, err := parseAmount(raw); err == nil {
				paid = p
			}
		}

		t := &domain.Transaction{
			Timestamp:         parseTimestamp(field("timestamp")),
			FromBank:          field("from_bank"),
			FromAccount:       field("from_account"),
			ToBank:            field("to_bank"),
			ToAccount:         field("to_account"),
			AmountReceived:    amount,
			ReceivingCurrency: field("receiving_currency"),
			AmountPaid:        paid,
			PaymentCurrency:   field("payment_currency"),
			PaymentFormat:     field("payment_format"),
			Risk:              parseRisk(field("risk_score"), field("is_laundering")),
		}
		if !t.Valid() {
			continue
		}
		txs = append(txs, t)
	}

	return txs, nil
}

// mapColumns resolves header names to field indexes through the alias table
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for field, aliases := range columnAliases {
		for i, name := range header {
			if matchesAlias(name, aliases) {
				cols[field] = i
				break
			}
		}
	}

	var missing []string
	for _, field := range requiredColumns {
		if _, ok := cols[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: CSV missing required columns %v",
			domain.ErrMalformedDataset, missing)
	}
	return cols, nil
}

func matchesAlias(name string, aliases []string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, a := range aliases {
		if n == a {
			return true
		}
	}
	return false
}

func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "$", "").Replace(raw)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(cleaned)
}

func parseTimestamp(raw string) time.Time {
	for _, layout := range timestampFormats {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	// Unparseable timestamps fall back to import time, matching the
	// dashboard's lenient ingest.
	return time.Now().UTC()
}

// parseRisk prefers an explicit score column; a laundering flag alone maps
// to a high or neutral default.
func parseRisk(score, laundering string) float64 {
	if score != "" {
		if v, err := strconv.ParseFloat(score, 64); err == nil {
			return domain.ClampRisk(v)
		}
	}
	if laundering == "1" || strings.EqualFold(laundering, "true") {
		return 0.9
	}
	return 0
}
