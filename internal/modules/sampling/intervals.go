package sampling

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// stdNormal is the N(0,1) used for interval quantiles. Quantile lookups are
// deterministic, so no source is attached.
var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// PointEstimate returns the cumulative defect-rate estimate x/n, or 0 when
// no samples have been taken.
func PointEstimate(n, x int) float64 {
	if n == 0 {
		return 0
	}
	return float64(x) / float64(n)
}

// WilsonInterval returns the Wilson score interval for a binomial proportion
// at the given confidence level. It behaves sensibly at extreme counts where
// the plain Wald interval collapses, which is why it backs the player-facing
// suggestions. With no data the whole unit interval is returned.
func WilsonInterval(n, x int, level float64) (lower, upper float64) {
	if n == 0 {
		return 0, 1
	}

	z := stdNormal.Quantile((1 + level) / 2)
	nf := float64(n)
	phat := float64(x) / nf

	denom := 1 + z*z/nf
	center := (phat + z*z/(2*nf)) / denom
	half := z * math.Sqrt(phat*(1-phat)/nf+z*z/(4*nf*nf)) / denom

	return clamp01(center - half), clamp01(center + half)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
