package domain

import "testing"

func TestTierForRisk(t *testing.T) {
	tests := []struct {
		name string
		risk float64
		want RiskTier
	}{
		{"zero is low", 0, TierLow},
		{"just below medium threshold", 0.399, TierLow},
		{"medium threshold is medium", 0.4, TierMedium},
		{"mid medium", 0.55, TierMedium},
		{"just below high threshold", 0.699, TierMedium},
		{"high threshold is high", 0.7, TierHigh},
		{"max is high", 1.0, TierHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierForRisk(tt.risk); got != tt.want {
				t.Errorf("TierForRisk(%v) = %s, want %s", tt.risk, got, tt.want)
			}
		})
	}
}

func TestTierSplitIsExhaustive(t *testing.T) {
	// Walk the unit interval and check exactly one tier claims each score.
	for r := 0.0; r <= 1.0; r += 0.001 {
		tier := TierForRisk(r)
		switch tier {
		case TierLow, TierMedium, TierHigh:
		default:
			t.Fatalf("TierForRisk(%v) returned unknown tier %q", r, tier)
		}
	}
}

func TestParseTier(t *testing.T) {
	t.Run("valid tiers", func(t *testing.T) {
		for _, s := range []string{"low", "medium", "high"} {
			if _, ok := ParseTier(s); !ok {
				t.Errorf("ParseTier(%q) not ok", s)
			}
		}
	})

	t.Run("invalid tier", func(t *testing.T) {
		if _, ok := ParseTier("critical"); ok {
			t.Error("expected ParseTier to reject unknown level")
		}
	})
}

func TestClampRisk(t *testing.T) {
	if got := ClampRisk(-0.5); got != 0 {
		t.Errorf("expected negative risk clamped to 0, got %v", got)
	}
	if got := ClampRisk(1.7); got != 1 {
		t.Errorf("expected oversize risk clamped to 1, got %v", got)
	}
	if got := ClampRisk(0.42); got != 0.42 {
		t.Errorf("expected in-range risk unchanged, got %v", got)
	}
}
