// Package sampling provides the statistical core of the game: binomial
// observation draws, hidden true-rate generation, and confidence interval
// helpers. All randomness flows through a per-session seeded source so that
// results are unpredictable to players but reproducible under a fixed seed.
package sampling

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws binomial observations from a seeded PCG source. The source
// is not safe for concurrent use, so draws are serialized internally.
type Sampler struct {
	mu  sync.Mutex
	src rand.Source
}

// New creates a sampler seeded from the session seed.
func New(seed uint64) *Sampler {
	return &Sampler{
		src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// Binomial draws x ~ Binomial(n, p), the number of defective units observed
// in a sample of size n from a batch with true defect rate p.
func (s *Sampler) Binomial(p float64, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("sample size must be positive, got %d", n)
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("true rate must be in [0, 1], got %v", p)
	}

	// Degenerate rates need no randomness
	if p == 0 {
		return 0, nil
	}
	if p == 1 {
		return n, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	x := int(distuv.Binomial{N: float64(n), P: p, Src: s.src}.Rand())
	if x < 0 {
		x = 0
	}
	if x > n {
		x = n
	}
	return x, nil
}

// GenerateTrueRates produces the hidden per-batch defect rates for a session.
// Rates are drawn uniformly from the difficulty bands in round-robin order,
// rounded to four decimals, then shuffled so band membership is not inferable
// from the batch index. Fully determined by the seed.
func GenerateTrueRates(count int, seed uint64, ranges [][2]float64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))

	rates := make([]float64, count)
	for i := 0; i < count; i++ {
		band := ranges[i%len(ranges)]
		rates[i] = scalar.Round(band[0]+rng.Float64()*(band[1]-band[0]), 4)
	}

	rng.Shuffle(len(rates), func(i, j int) {
		rates[i], rates[j] = rates[j], rates[i]
	})

	return rates
}
