package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr-valente/quacktuaries/internal/config"
	"github.com/mr-valente/quacktuaries/internal/domain"
	"github.com/mr-valente/quacktuaries/internal/modules/session"
)

func TestExpirySweepJob(t *testing.T) {
	registry := session.NewRegistry(session.RegistryOptions{
		Defaults: domain.SessionConfig{
			BatchCount:       1,
			MaxTurns:         5,
			InspectionBudget: 100,
			MinSample:        5,
			MaxSample:        50,
			PremiumScale:     120,
			ConfidenceTiers:  []domain.ConfidenceTier{{Level: 0.90, Bonus: 1.2, Penalty: 200}},
			TimeLimitSeconds: 1,
			PurchasePrices:   domain.PurchasePrices{TurnCost: 150, BudgetCost: 100, BudgetAmount: 100},
		},
		Presets:           map[string]config.DifficultyPreset{"easy": {PRanges: [][2]float64{{0, 0}}}},
		DefaultDifficulty: "easy",
		Log:               zerolog.Nop(),
	})

	// Started well past its one-second limit, so the sweep must end it.
	past := time.Now().UTC().Add(-time.Minute)
	s, err := registry.Create(registry.Defaults(), "easy", past)
	require.NoError(t, err)
	require.NoError(t, s.Start(past))

	job := NewExpirySweepJob(registry, zerolog.Nop())
	assert.Equal(t, "expiry_sweep", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, domain.PhaseEnded, s.Phase())

	// Second pass is a no-op.
	require.NoError(t, job.Run())
	assert.Equal(t, domain.PhaseEnded, s.Phase())
}

func TestSchedulerRunNow(t *testing.T) {
	sched := New(zerolog.Nop())
	registry := session.NewRegistry(session.RegistryOptions{
		Presets: map[string]config.DifficultyPreset{"easy": {PRanges: [][2]float64{{0, 0}}}},
		Log:     zerolog.Nop(),
	})
	job := NewExpirySweepJob(registry, zerolog.Nop())

	require.NoError(t, sched.AddJob("@every 5s", job))
	assert.NoError(t, sched.RunNow(job))
}
