package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"flowscope/internal/domain"
)

// Result caps mirror the dashboard's query limits: an unfocused view pulls
// recent high-value activity only, a focused view pulls the account's direct
// ring plus one bounded expansion.
const (
	recentCap = 500
	directCap = 1000
	expandCap = 2000
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	// Amounts are stored twice: the exact decimal string, and a numeric
	// shadow column for SQL range filters.
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		ts DATETIME NOT NULL,
		from_bank TEXT NOT NULL DEFAULT '',
		from_account TEXT NOT NULL,
		to_bank TEXT NOT NULL DEFAULT '',
		to_account TEXT NOT NULL,
		amount_received TEXT NOT NULL,
		amount_received_num REAL NOT NULL,
		receiving_currency TEXT NOT NULL DEFAULT '',
		amount_paid TEXT NOT NULL DEFAULT '0',
		payment_currency TEXT NOT NULL DEFAULT '',
		payment_format TEXT,
		risk_score REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT,
		type TEXT,
		bank_id TEXT,
		country TEXT,
		risk_score REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions(from_account);
	CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions(to_account);
	CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions(ts);
	CREATE INDEX IF NOT EXISTS idx_transactions_amount ON transactions(amount_received_num);
	CREATE INDEX IF NOT EXISTS idx_transactions_risk ON transactions(risk_score);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Transaction loads a single transaction by id
func (r *Repository) Transaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, ts, from_bank, from_account, to_bank, to_account,
		       amount_received, receiving_currency, amount_paid,
		       payment_currency, payment_format, risk_score
		FROM transactions WHERE id = ?
	`, id)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return t, nil
}

// Account loads account reference data by id
func (r *Repository) Account(ctx context.Context, id string) (*domain.Account, error) {
	var acct domain.Account
	var name, typ, bank, country sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, type, bank_id, country, risk_score
		FROM accounts WHERE id = ?
	`, id).Scan(&acct.ID, &name, &typ, &bank, &country, &acct.Risk)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	acct.Name = nullToString(name)
	acct.Type = nullToString(typ)
	acct.BankID = nullToString(bank)
	acct.Country = nullToString(country)
	return &acct, nil
}

// TransactionCount returns the total number of stored transactions
func (r *Repository) TransactionCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// UpsertAccount creates or updates account reference data
func (r *Repository) UpsertAccount(ctx context.Context, acct *domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, type, bank_id, country, risk_score)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			bank_id = excluded.bank_id,
			country = excluded.country,
			risk_score = excluded.risk_score,
			updated_at = CURRENT_TIMESTAMP
	`, acct.ID, stringToNull(acct.Name), stringToNull(acct.Type),
		stringToNull(acct.BankID), stringToNull(acct.Country), acct.Risk)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// ImportTransactions bulk-inserts transactions in one database transaction.
// Invalid rows (missing endpoints, non-positive amounts) are skipped, not
// fatal. Returns the number of rows imported.
func (r *Repository) ImportTransactions(ctx context.Context, txs []*domain.Transaction) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO transactions
			(id, ts, from_bank, from_account, to_bank, to_account,
			 amount_received, amount_received_num, receiving_currency,
			 amount_paid, payment_currency, payment_format, risk_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	acctStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO accounts (id, bank_id, country) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare account statement: %w", err)
	}
	defer acctStmt.Close()

	imported := 0
	for _, t := range txs {
		if !t.Valid() {
			continue
		}
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		num, _ := t.AmountReceived.Float64()
		_, err := stmt.ExecContext(ctx, id, t.Timestamp.UTC(),
			t.FromBank, t.FromAccount, t.ToBank, t.ToAccount,
			t.AmountReceived.String(), num, t.ReceivingCurrency,
			t.AmountPaid.String(), t.PaymentCurrency,
			stringToNull(t.PaymentFormat), domain.ClampRisk(t.Risk))
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", id, err)
		}

		// Seed reference rows for both endpoints. Bank codes that look
		// like country codes double as the account's location.
		if _, err := acctStmt.ExecContext(ctx, t.FromAccount,
			stringToNull(t.FromBank), countryFromBank(t.FromBank)); err != nil {
			return 0, fmt.Errorf("failed to seed account %s: %w", t.FromAccount, err)
		}
		if _, err := acctStmt.ExecContext(ctx, t.ToAccount,
			stringToNull(t.ToBank), countryFromBank(t.ToBank)); err != nil {
			return 0, fmt.Errorf("failed to seed account %s: %w", t.ToAccount, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return imported, nil
}

// QueryNetwork aggregates stored transactions into the node/flow dataset.
// With a focus account, the neighborhood expands one ring when depth > 1;
// without one, recent high-value activity is pulled instead.
func (r *Repository) QueryNetwork(ctx context.Context, f domain.Filters) (*domain.Dataset, error) {
	var (
		txs []*domain.Transaction
		err error
	)
	if f.FocusAccount != "" {
		txs, err = r.focusNeighborhood(ctx, f)
	} else {
		txs, err = r.recentActivity(ctx, f)
	}
	if err != nil {
		return nil, err
	}

	return r.aggregate(ctx, txs, f)
}

// Close releases database resources
func (r *Repository) Close() error {
	return r.db.Close()
}

// focusNeighborhood pulls the focus account's direct transactions, then one
// bounded expansion across every account seen in that ring.
func (r *Repository) focusNeighborhood(ctx context.Context, f domain.Filters) ([]*domain.Transaction, error) {
	where, args := filterClauses(f)
	direct := fmt.Sprintf(`
		SELECT id, ts, from_bank, from_account, to_bank, to_account,
		       amount_received, receiving_currency, amount_paid,
		       payment_currency, payment_format, risk_score
		FROM transactions
		WHERE (from_account = ? OR to_account = ?)%s
		ORDER BY ts DESC LIMIT %d
	`, where, directCap)

	args = append([]any{f.FocusAccount, f.FocusAccount}, args...)
	txs, err := r.queryTransactions(ctx, direct, args...)
	if err != nil {
		return nil, err
	}
	if f.Depth <= 1 || len(txs) == 0 {
		return txs, nil
	}

	connected := make(map[string]bool)
	for _, t := range txs {
		connected[t.FromAccount] = true
		connected[t.ToAccount] = true
	}
	ids := make([]string, 0, len(connected))
	for id := range connected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	where, filterArgs := filterClauses(f)
	expanded := fmt.Sprintf(`
		SELECT id, ts, from_bank, from_account, to_bank, to_account,
		       amount_received, receiving_currency, amount_paid,
		       payment_currency, payment_format, risk_score
		FROM transactions
		WHERE (from_account IN (%s) OR to_account IN (%s))%s
		ORDER BY ts DESC LIMIT %d
	`, placeholders, placeholders, where, expandCap)

	expArgs := make([]any, 0, 2*len(ids)+len(filterArgs))
	for _, id := range ids {
		expArgs = append(expArgs, id)
	}
	for _, id := range ids {
		expArgs = append(expArgs, id)
	}
	expArgs = append(expArgs, filterArgs...)

	more, err := r.queryTransactions(ctx, expanded, expArgs...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(txs))
	for _, t := range txs {
		seen[t.ID] = true
	}
	for _, t := range more {
		if !seen[t.ID] {
			txs = append(txs, t)
			seen[t.ID] = true
		}
	}
	return txs, nil
}

// recentActivity pulls recent transactions above an effective minimum of
// 1000, the dashboard's unfocused default.
func (r *Repository) recentActivity(ctx context.Context, f domain.Filters) ([]*domain.Transaction, error) {
	floor := decimal.NewFromInt(1000)
	if f.MinAmount.GreaterThan(floor) {
		floor = f.MinAmount
	}
	eff := f
	eff.MinAmount = floor
	if eff.WindowDays <= 0 {
		eff.WindowDays = 30
	}

	where, args := filterClauses(eff)
	query := fmt.Sprintf(`
		SELECT id, ts, from_bank, from_account, to_bank, to_account,
		       amount_received, receiving_currency, amount_paid,
		       payment_currency, payment_format, risk_score
		FROM transactions
		WHERE 1=1%s
		ORDER BY ts DESC LIMIT %d
	`, where, recentCap)

	return r.queryTransactions(ctx, query, args...)
}

// aggregate groups transactions into per-pair flows and per-account node
// metrics, joining account reference data for location codes.
func (r *Repository) aggregate(ctx context.Context, txs []*domain.Transaction, f domain.Filters) (*domain.Dataset, error) {
	type edgeAgg struct {
		flow  *domain.Flow
		risks []float64
	}
	type nodeAgg struct {
		node  *domain.Node
		risks []float64
	}

	edges := make(map[string]*edgeAgg)
	nodes := make(map[string]*nodeAgg)

	getNode := func(id string) *nodeAgg {
		na, ok := nodes[id]
		if !ok {
			na = &nodeAgg{node: domain.NewNode(id)}
			if len(id) > 8 {
				na.node.Label = id[:8] + "..."
			}
			nodes[id] = na
		}
		return na
	}

	for _, t := range txs {
		key := t.FromAccount + "|" + t.ToAccount
		ea, ok := edges[key]
		if !ok {
			ea = &edgeAgg{flow: &domain.Flow{
				Source: t.FromAccount,
				Target: t.ToAccount,
				Amount: decimal.Zero,
			}}
			edges[key] = ea
		}
		ea.flow.Amount = ea.flow.Amount.Add(t.AmountReceived)
		ea.risks = append(ea.risks, t.Risk)
		if t.Timestamp.After(ea.flow.Timestamp) {
			ea.flow.Timestamp = t.Timestamp
			ea.flow.TransactionID = t.ID
			ea.flow.Currency = t.ReceivingCurrency
			ea.flow.FromBank = t.FromBank
			ea.flow.ToBank = t.ToBank
		}

		from := getNode(t.FromAccount)
		from.node.TotalSent = from.node.TotalSent.Add(t.AmountReceived)
		from.node.TxCount++
		from.risks = append(from.risks, t.Risk)

		to := getNode(t.ToAccount)
		to.node.TotalReceived = to.node.TotalReceived.Add(t.AmountReceived)
		to.node.TxCount++
		to.risks = append(to.risks, t.Risk)
	}

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	countries, err := r.accountCountries(ctx, ids)
	if err != nil {
		return nil, err
	}

	nodeList := make([]*domain.Node, 0, len(nodes))
	for id, na := range nodes {
		na.node.AvgRisk = meanRisk(na.risks)
		na.node.LocationCode = countries[id]
		nodeList = append(nodeList, na.node)
	}
	sort.Slice(nodeList, func(i, j int) bool { return nodeList[i].ID < nodeList[j].ID })

	flowList := make([]*domain.Flow, 0, len(edges))
	for _, ea := range edges {
		ea.flow.Risk = meanRisk(ea.risks)
		flowList = append(flowList, ea.flow)
	}
	sort.Slice(flowList, func(i, j int) bool { return flowList[i].Key() < flowList[j].Key() })

	ds := domain.NewDataset(nodeList, flowList)
	ds.Stats.Transactions = len(txs)
	return ds, nil
}

// accountCountries loads the country code for every account in the result.
func (r *Repository) accountCountries(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, country FROM accounts WHERE id IN (%s) AND country IS NOT NULL
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query account countries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, country string
		if err := rows.Scan(&id, &country); err != nil {
			return nil, fmt.Errorf("failed to scan account country: %w", err)
		}
		out[id] = country
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account countries: %w", err)
	}
	return out, nil
}
