package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr-valente/quacktuaries/internal/domain"
)

func tier(level, bonus float64, penalty int) domain.ConfidenceTier {
	return domain.ConfidenceTier{Level: level, Bonus: bonus, Penalty: penalty}
}

func TestWidthValidation(t *testing.T) {
	tests := []struct {
		name    string
		lower   float64
		upper   float64
		want    float64
		wantErr bool
	}{
		{"valid", 0.2, 0.5, 0.3, false},
		{"zero width is legal", 0.4, 0.4, 0, false},
		{"full unit interval", 0, 1, 1, false},
		{"lower below zero", -0.1, 0.5, 0, true},
		{"upper above one", 0.5, 1.1, 0, true},
		{"inverted", 0.6, 0.5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Width(tt.lower, tt.upper)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInterval)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, w, 1e-12)
		})
	}
}

func TestPriceConcreteScenarios(t *testing.T) {
	// floor(120 * 0.64 * 1.2) = floor(92.16) = 92
	assert.Equal(t, 92, Price(0.20, 120, tier(0.95, 1.2, 350)))

	// floor(120 * 0.49 * 1.5) = floor(88.2) = 88
	assert.Equal(t, 88, Price(0.30, 120, tier(0.99, 1.5, 600)))
}

func TestPriceFullWidthIsExactlyZero(t *testing.T) {
	for _, b := range []float64{1.0, 1.2, 1.5, 3.7} {
		assert.Equal(t, 0, Price(1, 120, tier(0.95, b, 0)))
		assert.Equal(t, 0, Price(1, 100000, tier(0.95, b, 0)))
	}
}

func TestPriceZeroWidthMaxTier(t *testing.T) {
	// premium(w=0, max tier) == floor(scale * bonus_max)
	assert.Equal(t, 180, Price(0, 120, tier(0.99, 1.5, 600)))
	assert.Equal(t, 144, Price(0, 120, tier(0.95, 1.2, 350)))
}

func TestPriceMonotoneInWidthAndBonus(t *testing.T) {
	tiers := []domain.ConfidenceTier{
		tier(0.90, 1.0, 200),
		tier(0.95, 1.2, 350),
		tier(0.99, 1.5, 600),
	}

	// Non-increasing in width, tier held fixed
	for _, tr := range tiers {
		prev := Price(0, 120, tr)
		for w := 0.01; w <= 1.0; w += 0.01 {
			p := Price(w, 120, tr)
			assert.LessOrEqual(t, p, prev, "width %v tier %v", w, tr.Level)
			prev = p
		}
	}

	// Non-decreasing in bonus, width held fixed
	for w := 0.0; w <= 1.0; w += 0.05 {
		for i := 1; i < len(tiers); i++ {
			assert.GreaterOrEqual(t, Price(w, 120, tiers[i]), Price(w, 120, tiers[i-1]), "width %v", w)
		}
	}
}

func TestSettleBoundariesCountAsHits(t *testing.T) {
	tests := []struct {
		name     string
		trueRate float64
		lower    float64
		upper    float64
		wantHit  bool
	}{
		{"inside", 0.5, 0.4, 0.6, true},
		{"at lower bound", 0.4, 0.4, 0.6, true},
		{"at upper bound", 0.6, 0.4, 0.6, true},
		{"below", 0.39, 0.4, 0.6, false},
		{"above", 0.61, 0.4, 0.6, false},
		{"point interval exact", 0.4, 0.4, 0.4, true},
		{"point interval near miss", 0.4001, 0.4, 0.4, false},
		{"full interval always hits", 0.9999, 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, net := Settle(tt.trueRate, tt.lower, tt.upper, 90, 350)
			assert.Equal(t, tt.wantHit, hit)
			if tt.wantHit {
				assert.Equal(t, 90, net)
			} else {
				assert.Equal(t, 90-350, net)
			}
		})
	}
}

func TestSettleNetCanGoNegative(t *testing.T) {
	_, net := Settle(0.9, 0.1, 0.2, 10, 600)
	assert.Equal(t, -590, net)
}
