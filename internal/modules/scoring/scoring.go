// Package scoring implements the policy pricing and settlement rules. Both
// functions are pure: price depends only on the claimed interval and tier,
// settlement only on the hidden true rate. Grading depends on this
// determinism, so nothing in here touches randomness or clock.
package scoring

import (
	"math"

	"github.com/mr-valente/quacktuaries/internal/domain"
)

// Width validates the claimed interval and returns its width U - L.
// A zero-width interval is legal: it prices at the maximum multiplier and in
// practice always misses.
func Width(lower, upper float64) (float64, error) {
	if lower < 0 || upper > 1 || lower > upper {
		return 0, domain.ErrInvalidInterval
	}
	return upper - lower, nil
}

// Price computes the premium for a policy of the given width at the given
// tier: floor(scale * (1-w)^2 * bonus). The floor is applied once, after all
// multiplications, truncating toward zero. A full-width interval [0,1] is
// worth exactly 0 at any tier.
func Price(width float64, scale int, tier domain.ConfidenceTier) int {
	return int(math.Trunc(float64(scale) * (1 - width) * (1 - width) * tier.Bonus))
}

// Settle grades a sold policy against the batch's true rate. Boundary
// equality counts as a hit. Net is the premium on a hit, premium minus the
// tier penalty on a miss.
func Settle(trueRate, lower, upper float64, premium, penalty int) (hit bool, net int) {
	hit = lower <= trueRate && trueRate <= upper
	if hit {
		return true, premium
	}
	return false, premium - penalty
}
