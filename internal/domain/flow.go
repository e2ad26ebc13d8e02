package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Flow represents a directed edge between two accounts, aggregating one or
// more transactions. Source == Target is a valid self-flow.
type Flow struct {
	Source        string          `json:"source"`
	Target        string          `json:"target"`
	Amount        decimal.Decimal `json:"amount"`
	Risk          float64         `json:"risk_score"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Timestamp     time.Time       `json:"timestamp,omitempty"`
	FromBank      string          `json:"from_bank,omitempty"`
	ToBank        string          `json:"to_bank,omitempty"`
}

// Key returns the stable identity used to reconcile per-flow state (marker
// animations, selections) across dataset reloads.
func (f *Flow) Key() string {
	return f.Source + "|" + f.Target
}

// SelfLoop reports whether the flow starts and ends at the same account.
func (f *Flow) SelfLoop() bool {
	return f.Source == f.Target
}

// Tier returns the flow's risk tier.
func (f *Flow) Tier() RiskTier {
	return TierForRisk(f.Risk)
}
