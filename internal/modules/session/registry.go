package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mr-valente/quacktuaries/internal/config"
	"github.com/mr-valente/quacktuaries/internal/domain"
)

// Join codes skip 0/O/1/I so they survive being read off a projector.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const joinCodeLength = 6

// Registry owns every live session, indexed by id and by join code.
type Registry struct {
	defaults   domain.SessionConfig
	presets    map[string]config.DifficultyPreset
	defaultDif string
	recorder   Recorder
	onChange   func(sessionID string)
	log        zerolog.Logger

	mu     sync.RWMutex
	byID   map[string]*Session
	byCode map[string]*Session
}

// RegistryOptions configures a Registry. OnSessionChange, when set, is
// installed on every session at creation, before the session is reachable
// through the registry.
type RegistryOptions struct {
	Defaults          domain.SessionConfig
	Presets           map[string]config.DifficultyPreset
	DefaultDifficulty string
	Recorder          Recorder
	OnSessionChange   func(sessionID string)
	Log               zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{
		defaults:   opts.Defaults,
		presets:    opts.Presets,
		defaultDif: opts.DefaultDifficulty,
		recorder:   opts.Recorder,
		onChange:   opts.OnSessionChange,
		log:        opts.Log.With().Str("component", "registry").Logger(),
		byID:       make(map[string]*Session),
		byCode:     make(map[string]*Session),
	}
}

// Defaults returns the configured default rule set, for handlers to apply
// per-request overrides against.
func (r *Registry) Defaults() domain.SessionConfig { return r.defaults }

// Presets returns the configured difficulty presets by name.
func (r *Registry) Presets() map[string]config.DifficultyPreset { return r.presets }

// DefaultDifficulty returns the preset name used when none is requested.
func (r *Registry) DefaultDifficulty() string { return r.defaultDif }

// Preset resolves a difficulty name, with the empty string selecting the
// default.
func (r *Registry) Preset(name string) (config.DifficultyPreset, bool) {
	if name == "" {
		name = r.defaultDif
	}
	preset, ok := r.presets[name]
	return preset, ok
}

// Create builds a new lobby-phase session under a fresh id and join code.
// An empty difficulty selects the registry default.
func (r *Registry) Create(cfg domain.SessionConfig, difficulty string, now time.Time) (*Session, error) {
	if difficulty == "" {
		difficulty = r.defaultDif
	}
	preset, ok := r.presets[difficulty]
	if !ok {
		return nil, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidConfig, difficulty)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.uniqueJoinCodeLocked()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	var onChange func()
	if r.onChange != nil {
		onChange = func() { r.onChange(id) }
	}
	s, err := New(cfg, Options{
		ID:       id,
		JoinCode: code,
		Seed:     randomSeed(),
		PRanges:  preset.PRanges,
		Recorder: r.recorder,
		OnChange: onChange,
		Log:      r.log,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	r.byID[s.ID()] = s
	r.byCode[s.JoinCode()] = s
	r.log.Info().
		Str("session_id", s.ID()).
		Str("join_code", s.JoinCode()).
		Str("difficulty", difficulty).
		Int("batches", cfg.BatchCount).
		Msg("Session created")
	return s, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// GetByCode returns the session with the given join code. Lookup is
// case-insensitive.
func (r *Registry) GetByCode(code string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session from the registry. The session itself is left
// untouched; in-flight handlers holding a reference finish normally.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.byID, id)
	delete(r.byCode, s.JoinCode())
	r.log.Info().Str("session_id", id).Msg("Session deleted")
	return nil
}

// List returns summaries of every registered session.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Summary, len(sessions))
	for i, s := range sessions {
		out[i] = s.Summary()
	}
	return out
}

// CountByPhase returns how many registered sessions are in each phase.
func (r *Registry) CountByPhase() map[domain.Phase]int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	counts := make(map[domain.Phase]int, 3)
	for _, s := range sessions {
		counts[s.Phase()]++
	}
	return counts
}

// SweepExpired ends every session whose time limit has elapsed and returns
// how many were ended. Run periodically by the scheduler.
func (r *Registry) SweepExpired(now time.Time) int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	ended := 0
	for _, s := range sessions {
		if s.SweepExpired(now) {
			ended++
			r.log.Info().Str("session_id", s.ID()).Msg("Session expired")
		}
	}
	return ended
}

// uniqueJoinCodeLocked generates a join code not currently in use; caller
// holds r.mu.
func (r *Registry) uniqueJoinCodeLocked() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := generateJoinCode()
		if err != nil {
			return "", err
		}
		if _, taken := r.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique join code")
}

func generateJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating join code: %w", err)
	}
	var b strings.Builder
	for _, c := range buf {
		b.WriteByte(joinCodeAlphabet[int(c)%len(joinCodeAlphabet)])
	}
	return b.String(), nil
}

func randomSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing means the platform is broken; fall back to time.
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(buf[:])
}
