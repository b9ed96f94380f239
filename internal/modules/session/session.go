// Package session implements the game session state machine: the lobby ->
// running -> ended lifecycle, the hidden batches, the players with their
// resource ledgers, and the validated inspect/sell/purchase actions.
//
// Concurrency model: the session's RWMutex guards phase and membership and is
// read-held for the full duration of every action, so a phase transition
// serializes against in-flight actions. Each player and each batch carries
// its own mutex; actions lock session(R) -> player -> batch, always in that
// order. Every action validates completely before its first mutation, which
// gives all-or-nothing semantics on every exit path.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mr-valente/quacktuaries/internal/domain"
	"github.com/mr-valente/quacktuaries/internal/modules/ledger"
	"github.com/mr-valente/quacktuaries/internal/modules/sampling"
)

// Recorder is the audit sink for executed actions. The engine never depends
// on it for live state; append failures are logged and swallowed.
type Recorder interface {
	Append(rec domain.ActionRecord) error
}

// batchState is one hidden estimand. The true rate is fixed at creation and
// never mutated; the locked flag is set permanently by the first successful
// sell on the batch.
type batchState struct {
	index    int
	trueRate float64

	mu       sync.Mutex
	locked   bool
	lockedBy string // player id of the seller
}

type inspectionTally struct {
	samples int
	defects int
}

// playerState is one participant's full state, guarded by its own mutex.
type playerState struct {
	id          string
	name        string
	rejoinToken string
	joinedAt    time.Time

	mu              sync.Mutex
	ledger          *ledger.Ledger
	tallies         map[int]*inspectionTally
	sold            map[int]struct{}
	turnsPurchased  int
	budgetPurchased int
}

// Session is one game instance.
type Session struct {
	id        string
	joinCode  string
	seed      uint64
	cfg       domain.SessionConfig
	createdAt time.Time

	log      zerolog.Logger
	sampler  *sampling.Sampler
	recorder Recorder
	onChange func() // fixed at creation, so reads need no lock

	mu        sync.RWMutex
	phase     domain.Phase
	startedAt time.Time
	endedAt   time.Time
	players   map[string]*playerState
	byName    map[string]*playerState
	batches   []*batchState
}

// Options carries the identity and randomness inputs the registry supplies
// at session creation.
type Options struct {
	ID       string
	JoinCode string
	Seed     uint64
	PRanges  [][2]float64 // difficulty bands for true-rate generation
	Recorder Recorder
	OnChange func() // invoked after committed actions and phase transitions
	Log      zerolog.Logger
	Now      time.Time
}

// New creates a session in the lobby phase. The hidden true rates are
// generated once from the seed and difficulty bands and are fixed for the
// session's lifetime.
func New(cfg domain.SessionConfig, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(opts.PRanges) == 0 {
		return nil, domain.ErrInvalidConfig
	}

	rates := sampling.GenerateTrueRates(cfg.BatchCount, opts.Seed, opts.PRanges)
	batches := make([]*batchState, cfg.BatchCount)
	for i, p := range rates {
		batches[i] = &batchState{index: i, trueRate: p}
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return &Session{
		id:        opts.ID,
		joinCode:  opts.JoinCode,
		seed:      opts.Seed,
		cfg:       cfg,
		createdAt: now,
		log:       opts.Log.With().Str("component", "session").Str("session_id", opts.ID).Logger(),
		sampler:   sampling.New(opts.Seed),
		recorder:  opts.Recorder,
		onChange:  opts.OnChange,
		phase:     domain.PhaseLobby,
		players:   make(map[string]*playerState),
		byName:    make(map[string]*playerState),
		batches:   batches,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// JoinCode returns the six-character join code.
func (s *Session) JoinCode() string { return s.joinCode }

// Config returns the session's rule set.
func (s *Session) Config() domain.SessionConfig { return s.cfg }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Start transitions lobby -> running.
func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.PhaseRunning:
		return domain.ErrSessionStarted
	case domain.PhaseEnded:
		return domain.ErrSessionEnded
	}

	s.phase = domain.PhaseRunning
	s.startedAt = now
	s.log.Info().Time("started_at", now).Msg("Session started")
	s.appendRecord(domain.ActionRecord{
		SessionID: s.id,
		Timestamp: now,
		Type:      domain.RecordSystem,
		Payload:   map[string]any{"message": "session started"},
	})
	s.notify()
	return nil
}

// End transitions running -> ended. Once ended the true rates become
// visible through RevealTrueRates and every action is rejected.
func (s *Session) End(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endLocked(now, "session ended")
}

func (s *Session) endLocked(now time.Time, reason string) error {
	switch s.phase {
	case domain.PhaseLobby:
		return domain.ErrSessionNotRunning
	case domain.PhaseEnded:
		return domain.ErrSessionEnded
	}

	s.phase = domain.PhaseEnded
	s.endedAt = now
	s.log.Info().Str("reason", reason).Msg("Session ended")
	s.appendRecord(domain.ActionRecord{
		SessionID: s.id,
		Timestamp: now,
		Type:      domain.RecordSystem,
		Payload:   map[string]any{"message": reason},
	})
	s.notify()
	return nil
}

// HasExpired reports whether the configured time limit has elapsed for a
// running session. The engine runs no clock of its own; callers poll this
// (the timer endpoint and the expiry sweep job both do).
func (s *Session) HasExpired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredLocked(now)
}

func (s *Session) expiredLocked(now time.Time) bool {
	if s.phase != domain.PhaseRunning || s.cfg.TimeLimitSeconds <= 0 {
		return false
	}
	return !now.Before(s.startedAt.Add(time.Duration(s.cfg.TimeLimitSeconds) * time.Second))
}

// SweepExpired ends the session if its time limit has elapsed. Returns true
// when this call performed the transition.
func (s *Session) SweepExpired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.expiredLocked(now) {
		return false
	}
	_ = s.endLocked(now, "time expired - session ended automatically")
	return true
}

// RemainingSeconds returns the seconds left on the session clock. The second
// return is false when the session has no time limit or has not started.
func (s *Session) RemainingSeconds(now time.Time) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg.TimeLimitSeconds <= 0 || s.startedAt.IsZero() {
		return 0, false
	}
	if s.phase == domain.PhaseEnded {
		return 0, true
	}
	remaining := int(s.startedAt.Add(time.Duration(s.cfg.TimeLimitSeconds) * time.Second).Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// JoinInfo is returned to a joining or rejoining player.
type JoinInfo struct {
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	RejoinToken string `json:"rejoin_token"`
	Rejoined    bool   `json:"rejoined"`
	TurnsLeft   int    `json:"turns_left"`
	BudgetLeft  int    `json:"budget_left"`
	Score       int    `json:"score"`
}

// Join adds a new player during the lobby, or re-admits an existing player
// presenting their rejoin token. New names cannot be claimed once the game
// is running, and nobody joins an ended session.
func (s *Session) Join(name, rejoinToken string, now time.Time) (JoinInfo, error) {
	if name == "" {
		return JoinInfo{}, domain.ErrPlayerNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == domain.PhaseEnded {
		return JoinInfo{}, domain.ErrSessionNotJoinable
	}

	if existing, ok := s.byName[name]; ok {
		if rejoinToken == "" || rejoinToken != existing.rejoinToken {
			return JoinInfo{}, domain.ErrDuplicateName
		}
		existing.mu.Lock()
		info := JoinInfo{
			PlayerID:    existing.id,
			Name:        existing.name,
			RejoinToken: existing.rejoinToken,
			Rejoined:    true,
			TurnsLeft:   existing.ledger.Turns(),
			BudgetLeft:  existing.ledger.Budget(),
			Score:       existing.ledger.Score(),
		}
		existing.mu.Unlock()
		return info, nil
	}

	if s.phase != domain.PhaseLobby {
		return JoinInfo{}, domain.ErrSessionNotJoinable
	}

	p := &playerState{
		id:          uuid.NewString(),
		name:        name,
		rejoinToken: uuid.NewString(),
		joinedAt:    now,
		ledger:      ledger.New(s.cfg.MaxTurns, s.cfg.InspectionBudget),
		tallies:     make(map[int]*inspectionTally),
		sold:        make(map[int]struct{}),
	}
	s.players[p.id] = p
	s.byName[name] = p

	s.log.Info().Str("player", name).Msg("Player joined")
	s.notify()

	return JoinInfo{
		PlayerID:    p.id,
		Name:        p.name,
		RejoinToken: p.rejoinToken,
		TurnsLeft:   p.ledger.Turns(),
		BudgetLeft:  p.ledger.Budget(),
		Score:       p.ledger.Score(),
	}, nil
}

// PlayerSnapshot is a read-only view of one player's resources.
type PlayerSnapshot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	TurnsLeft  int    `json:"turns_left"`
	BudgetLeft int    `json:"budget_left"`
	TurnsUsed  int    `json:"turns_used"`
	BudgetUsed int    `json:"budget_used"`
}

// PlayerState returns a snapshot of one player's resources.
func (s *Session) PlayerState(playerID string) (PlayerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return PlayerSnapshot{}, domain.ErrPlayerNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return s.snapshotLocked(p), nil
}

// snapshotLocked builds a snapshot; caller holds p.mu.
func (s *Session) snapshotLocked(p *playerState) PlayerSnapshot {
	return PlayerSnapshot{
		ID:         p.id,
		Name:       p.name,
		Score:      p.ledger.Score(),
		TurnsLeft:  p.ledger.Turns(),
		BudgetLeft: p.ledger.Budget(),
		TurnsUsed:  s.cfg.MaxTurns + p.turnsPurchased - p.ledger.Turns(),
		BudgetUsed: s.cfg.InspectionBudget + p.budgetPurchased - p.ledger.Budget(),
	}
}

// BatchBoard returns the player's view of every batch: cumulative tallies,
// lock status, and Wilson interval suggestions for each configured tier.
// Hidden true rates are never included.
func (s *Session) BatchBoard(playerID string) ([]domain.BatchBoardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	board := make([]domain.BatchBoardEntry, len(s.batches))
	for i, b := range s.batches {
		b.mu.Lock()
		locked := b.locked
		b.mu.Unlock()

		entry := domain.BatchBoardEntry{BatchIndex: i, Locked: locked}
		if _, soldIt := p.sold[i]; soldIt {
			entry.Sold = true
		}
		if tally, ok := p.tallies[i]; ok && tally.samples > 0 {
			entry.Inspected = true
			entry.TotalSamples = tally.samples
			entry.TotalDefects = tally.defects
			entry.Estimate = sampling.PointEstimate(tally.samples, tally.defects)
			for _, tier := range s.cfg.ConfidenceTiers {
				lo, hi := sampling.WilsonInterval(tally.samples, tally.defects, tier.Level)
				entry.Suggestions = append(entry.Suggestions, domain.IntervalSuggestion{
					Level: tier.Level,
					Lower: lo,
					Upper: hi,
				})
			}
		}
		board[i] = entry
	}
	return board, nil
}

// Leaderboard returns players ranked by score (descending), name breaking
// ties.
func (s *Session) Leaderboard() []domain.LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0, len(s.players))
	for _, p := range s.players {
		p.mu.Lock()
		snap := s.snapshotLocked(p)
		p.mu.Unlock()
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:   snap.ID,
			Name:       snap.Name,
			Score:      snap.Score,
			TurnsUsed:  snap.TurnsUsed,
			BudgetUsed: snap.BudgetUsed,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RevealTrueRates returns the hidden per-batch rates. Permitted only once
// the session has ended.
func (s *Session) RevealTrueRates() (map[int]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.phase != domain.PhaseEnded {
		return nil, domain.ErrSessionNotEnded
	}

	rates := make(map[int]float64, len(s.batches))
	for _, b := range s.batches {
		rates[b.index] = b.trueRate
	}
	return rates, nil
}

// Summary is a transport-friendly view of the session.
type Summary struct {
	ID          string               `json:"id"`
	JoinCode    string               `json:"join_code"`
	Phase       domain.Phase         `json:"phase"`
	CreatedAt   time.Time            `json:"created_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	EndedAt     *time.Time           `json:"ended_at,omitempty"`
	PlayerCount int                  `json:"player_count"`
	Config      domain.SessionConfig `json:"config"`
}

// Summary returns a snapshot of the session's lifecycle state.
func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		ID:          s.id,
		JoinCode:    s.joinCode,
		Phase:       s.phase,
		CreatedAt:   s.createdAt,
		PlayerCount: len(s.players),
		Config:      s.cfg,
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		sum.StartedAt = &t
	}
	if !s.endedAt.IsZero() {
		t := s.endedAt
		sum.EndedAt = &t
	}
	return sum
}

// ensureRunningLocked rejects actions unless the session is running and its
// clock has not run out. Caller holds at least a read lock.
func (s *Session) ensureRunningLocked(now time.Time) error {
	switch s.phase {
	case domain.PhaseLobby:
		return domain.ErrSessionNotRunning
	case domain.PhaseEnded:
		return domain.ErrSessionEnded
	}
	if s.expiredLocked(now) {
		return domain.ErrSessionEnded
	}
	return nil
}

func (s *Session) batch(index int) (*batchState, error) {
	if index < 0 || index >= len(s.batches) {
		return nil, domain.ErrUnknownBatch
	}
	return s.batches[index], nil
}

func (s *Session) player(playerID string) (*playerState, error) {
	p, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return p, nil
}

// appendRecord hands a record to the audit sink. Failures must not affect
// the committed action, so they are logged and dropped.
func (s *Session) appendRecord(rec domain.ActionRecord) {
	if s.recorder == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := s.recorder.Append(rec); err != nil {
		s.log.Warn().Err(err).Str("type", rec.Type).Msg("Failed to append action record")
	}
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
