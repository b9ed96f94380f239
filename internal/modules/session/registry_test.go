package session

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr-valente/quacktuaries/internal/config"
	"github.com/mr-valente/quacktuaries/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(RegistryOptions{
		Defaults: testConfig(),
		Presets: map[string]config.DifficultyPreset{
			"easy":   {PRanges: [][2]float64{{0.05, 0.15}}},
			"medium": {PRanges: [][2]float64{{0.02, 0.30}}},
		},
		DefaultDifficulty: "medium",
		Recorder:          &captureRecorder{},
		Log:               zerolog.Nop(),
	})
}

func TestRegistryCreateAndLookup(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Unix(3000, 0).UTC()

	s, err := r.Create(r.Defaults(), "", now)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseLobby, s.Phase())
	assert.Len(t, s.JoinCode(), 6)
	for _, c := range s.JoinCode() {
		assert.Contains(t, joinCodeAlphabet, string(c))
	}

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	got, err = r.GetByCode(strings.ToLower(s.JoinCode()))
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = r.GetByCode("NOPE42")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistryRejectsUnknownDifficulty(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create(r.Defaults(), "nightmare", time.Unix(3000, 0).UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRegistryRejectsInvalidConfig(t *testing.T) {
	r := newTestRegistry(t)

	cfg := r.Defaults()
	cfg.BatchCount = 0
	_, err := r.Create(cfg, "easy", time.Unix(3000, 0).UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRegistryDelete(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Unix(3000, 0).UTC()

	s, err := r.Create(r.Defaults(), "easy", now)
	require.NoError(t, err)

	require.NoError(t, r.Delete(s.ID()))
	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = r.GetByCode(s.JoinCode())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, r.Delete(s.ID()), domain.ErrSessionNotFound)
}

func TestRegistryListAndCounts(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Unix(3000, 0).UTC()

	a, err := r.Create(r.Defaults(), "easy", now)
	require.NoError(t, err)
	_, err = r.Create(r.Defaults(), "medium", now)
	require.NoError(t, err)
	require.NoError(t, a.Start(now))

	assert.Len(t, r.List(), 2)
	counts := r.CountByPhase()
	assert.Equal(t, 1, counts[domain.PhaseLobby])
	assert.Equal(t, 1, counts[domain.PhaseRunning])
}

func TestRegistrySweepExpired(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Unix(3000, 0).UTC()

	cfg := r.Defaults()
	cfg.TimeLimitSeconds = 30
	timed, err := r.Create(cfg, "easy", now)
	require.NoError(t, err)
	untimed, err := r.Create(r.Defaults(), "easy", now)
	require.NoError(t, err)
	require.NoError(t, timed.Start(now))
	require.NoError(t, untimed.Start(now))

	assert.Equal(t, 0, r.SweepExpired(now.Add(29*time.Second)))
	assert.Equal(t, 1, r.SweepExpired(now.Add(31*time.Second)))
	assert.Equal(t, domain.PhaseEnded, timed.Phase())
	assert.Equal(t, domain.PhaseRunning, untimed.Phase())
	assert.Equal(t, 0, r.SweepExpired(now.Add(60*time.Second)))
}

func TestGenerateJoinCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateJoinCode()
		require.NoError(t, err)
		require.Len(t, code, joinCodeLength)
		for _, c := range code {
			assert.NotContains(t, "01OI", string(c))
		}
	}
}

func TestRegistryCreateInstallsChangeHook(t *testing.T) {
	changed := make(chan string, 8)
	r := NewRegistry(RegistryOptions{
		Defaults:          testConfig(),
		Presets:           map[string]config.DifficultyPreset{"easy": {PRanges: [][2]float64{{0, 0}}}},
		DefaultDifficulty: "easy",
		OnSessionChange:   func(id string) { changed <- id },
		Log:               zerolog.Nop(),
	})

	now := time.Unix(1000, 0).UTC()
	s, err := r.Create(r.Defaults(), "easy", now)
	require.NoError(t, err)

	// The hook is live the moment the session is reachable, so even the very
	// first join is observed.
	_, err = s.Join("alice", "", now)
	require.NoError(t, err)

	select {
	case id := <-changed:
		assert.Equal(t, s.ID(), id)
	default:
		t.Fatal("join did not reach the change hook")
	}
}
