package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filters narrow a network query. FocusAccount and Depth are only honored at
// fetch time (they change which transactions are pulled); the remaining
// fields can also be applied client-side against an already fetched dataset.
type Filters struct {
	FocusAccount string          `json:"focus_account,omitempty"`
	Depth        int             `json:"depth,omitempty"`
	MinAmount    decimal.Decimal `json:"min_amount"`
	RiskLevel    string          `json:"risk_level,omitempty"` // all|low|medium|high
	Currency     string          `json:"currency,omitempty"`
	WindowDays   int             `json:"window_days,omitempty"`
}

// DefaultFilters mirrors the dashboard's initial query: depth 2, minimum
// amount 1000, all risk levels, 30-day window.
func DefaultFilters() Filters {
	return Filters{
		Depth:      2,
		MinAmount:  decimal.NewFromInt(1000),
		RiskLevel:  "all",
		WindowDays: 30,
	}
}

// riskBounds converts the risk-level bucket into a half-open [lo, hi) score
// range. "all" and unknown values return the full range.
func (f Filters) riskBounds() (lo, hi float64) {
	switch RiskTier(f.RiskLevel) {
	case TierHigh:
		return HighRiskThreshold, 1.01
	case TierMedium:
		return MediumRiskThreshold, HighRiskThreshold
	case TierLow:
		return 0, MediumRiskThreshold
	default:
		return 0, 1.01
	}
}

// MatchFlow reports whether a single flow passes the client-side filters
// (minimum amount, risk bucket, currency, time window). Focus and depth are
// ignored here.
func (f Filters) MatchFlow(fl *Flow, now time.Time) bool {
	if fl.Amount.LessThan(f.MinAmount) {
		return false
	}
	lo, hi := f.riskBounds()
	if fl.Risk < lo || fl.Risk >= hi {
		return false
	}
	if f.Currency != "" && f.Currency != "all" && fl.Currency != f.Currency {
		return false
	}
	if f.WindowDays > 0 && !fl.Timestamp.IsZero() {
		cutoff := now.AddDate(0, 0, -f.WindowDays)
		if fl.Timestamp.Before(cutoff) {
			return false
		}
	}
	return true
}
