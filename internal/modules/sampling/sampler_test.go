package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinomialBounds(t *testing.T) {
	s := New(42)

	for i := 0; i < 200; i++ {
		x, err := s.Binomial(0.3, 50)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, x, 0)
		assert.LessOrEqual(t, x, 50)
	}
}

func TestBinomialDegenerateRates(t *testing.T) {
	s := New(1)

	x, err := s.Binomial(0, 40)
	require.NoError(t, err)
	assert.Equal(t, 0, x)

	x, err = s.Binomial(1, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, x)
}

func TestBinomialRejectsBadInput(t *testing.T) {
	s := New(1)

	_, err := s.Binomial(0.5, 0)
	assert.Error(t, err)

	_, err = s.Binomial(-0.1, 10)
	assert.Error(t, err)

	_, err = s.Binomial(1.1, 10)
	assert.Error(t, err)
}

func TestBinomialReproducibleForFixedSeed(t *testing.T) {
	a := New(1234)
	b := New(1234)

	for i := 0; i < 50; i++ {
		xa, err := a.Binomial(0.42, 30)
		require.NoError(t, err)
		xb, err := b.Binomial(0.42, 30)
		require.NoError(t, err)
		assert.Equal(t, xa, xb)
	}
}

func TestBinomialRoughlyTracksRate(t *testing.T) {
	s := New(7)

	// Mean of many draws should land near n*p; wide tolerance keeps the
	// test deterministic under the fixed seed anyway.
	total := 0
	draws := 500
	for i := 0; i < draws; i++ {
		x, err := s.Binomial(0.2, 100)
		require.NoError(t, err)
		total += x
	}
	mean := float64(total) / float64(draws)
	assert.InDelta(t, 20.0, mean, 2.0)
}

func TestGenerateTrueRatesDeterministicAndBanded(t *testing.T) {
	ranges := [][2]float64{{0.1, 0.3}, {0.4, 0.6}, {0.7, 0.9}}

	a := GenerateTrueRates(12, 99, ranges)
	b := GenerateTrueRates(12, 99, ranges)
	require.Equal(t, a, b)

	c := GenerateTrueRates(12, 100, ranges)
	assert.NotEqual(t, a, c)

	for _, p := range a {
		assert.GreaterOrEqual(t, p, 0.1)
		assert.LessOrEqual(t, p, 0.9)
	}
}

func TestPointEstimate(t *testing.T) {
	assert.Equal(t, 0.0, PointEstimate(0, 0))
	assert.InDelta(t, 0.25, PointEstimate(40, 10), 1e-12)
}

func TestWilsonInterval(t *testing.T) {
	lo, hi := WilsonInterval(0, 0, 0.95)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = WilsonInterval(100, 30, 0.95)
	assert.Greater(t, hi, lo)
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1.0)

	// Point estimate sits inside its own interval
	assert.Less(t, lo, 0.3)
	assert.Greater(t, hi, 0.3)

	// Higher confidence widens the interval
	lo90, hi90 := WilsonInterval(100, 30, 0.90)
	assert.Greater(t, lo90, lo)
	assert.Less(t, hi90, hi)
}
