package domain

// RiskTier buckets a risk score into one of three levels. The same split is
// used for layout banding, edge styling, and node styling so the views never
// disagree about what counts as high risk.
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// Tier breakpoints. Scores at or above HighRiskThreshold are high, scores at
// or above MediumRiskThreshold (but below high) are medium, everything else
// is low.
const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.4
)

// TierForRisk maps a risk score to its tier.
func TierForRisk(risk float64) RiskTier {
	switch {
	case risk >= HighRiskThreshold:
		return TierHigh
	case risk >= MediumRiskThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ParseTier returns the tier for a risk-level string, with ok=false for
// anything that is not low/medium/high.
func ParseTier(s string) (RiskTier, bool) {
	switch RiskTier(s) {
	case TierLow, TierMedium, TierHigh:
		return RiskTier(s), true
	default:
		return "", false
	}
}

// ClampRisk forces a score into [0, 1]. Upstream payloads occasionally carry
// out-of-range scores; everything downstream assumes the unit interval.
func ClampRisk(risk float64) float64 {
	if risk < 0 {
		return 0
	}
	if risk > 1 {
		return 1
	}
	return risk
}
