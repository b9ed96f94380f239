// Package domain holds the engine's core types: session configuration,
// confidence tiers, action results, and the game error taxonomy. The domain
// layer is pure - no transport, storage, or logging dependencies.
package domain

import (
	"fmt"
	"sort"
	"time"
)

// Phase is the lifecycle state of a game session.
// Transitions are monotonic: lobby -> running -> ended.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)

// ConfidenceTier is one claimable confidence level with its premium bonus
// multiplier and miss penalty. Tiers are configured per session as an ordered
// list rather than fixed branches, so a session may offer any number of levels.
type ConfidenceTier struct {
	Level   float64 `json:"level"`   // e.g. 0.90
	Bonus   float64 `json:"bonus"`   // premium multiplier, e.g. 1.2
	Penalty int     `json:"penalty"` // score deduction on a miss
}

// PurchasePrices holds the score cost of mid-game resource purchases.
type PurchasePrices struct {
	TurnCost     int `json:"turn_cost"`     // score cost of one extra turn
	BudgetCost   int `json:"budget_cost"`   // score cost of extra inspection budget
	BudgetAmount int `json:"budget_amount"` // budget units gained per purchase
}

// SessionConfig is the full rule set for one game session, fixed at creation.
type SessionConfig struct {
	BatchCount               int              `json:"batch_count"`
	MaxTurns                 int              `json:"max_turns"`
	InspectionBudget         int              `json:"inspection_budget"`
	MinSample                int              `json:"min_sample"`
	MaxSample                int              `json:"max_sample"`
	PremiumScale             int              `json:"premium_scale"`
	ConfidenceTiers          []ConfidenceTier `json:"confidence_tiers"`
	TimeLimitSeconds         int              `json:"time_limit_seconds"` // 0 = no limit
	RequireInspectBeforeSell bool             `json:"require_inspect_before_sell"`
	PurchasePrices           PurchasePrices   `json:"purchase_prices"`
}

// Validate checks the configuration invariants at session-creation time.
// Tier levels must be strictly ascending and unique so lookup by level is
// unambiguous.
func (c SessionConfig) Validate() error {
	if c.BatchCount < 1 {
		return fmt.Errorf("%w: batch count must be >= 1", ErrInvalidConfig)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("%w: max turns must be >= 1", ErrInvalidConfig)
	}
	if c.InspectionBudget < 1 {
		return fmt.Errorf("%w: inspection budget must be >= 1", ErrInvalidConfig)
	}
	if c.MinSample < 1 || c.MaxSample < c.MinSample {
		return fmt.Errorf("%w: need 1 <= min sample <= max sample", ErrInvalidConfig)
	}
	if c.PremiumScale < 1 {
		return fmt.Errorf("%w: premium scale must be >= 1", ErrInvalidConfig)
	}
	if len(c.ConfidenceTiers) == 0 {
		return fmt.Errorf("%w: at least one confidence tier required", ErrInvalidConfig)
	}
	if !sort.SliceIsSorted(c.ConfidenceTiers, func(i, j int) bool {
		return c.ConfidenceTiers[i].Level < c.ConfidenceTiers[j].Level
	}) {
		return fmt.Errorf("%w: confidence tiers must be in ascending level order", ErrInvalidConfig)
	}
	for i, tier := range c.ConfidenceTiers {
		if tier.Level <= 0 || tier.Level >= 1 {
			return fmt.Errorf("%w: tier level %v outside (0, 1)", ErrInvalidConfig, tier.Level)
		}
		if i > 0 && tier.Level == c.ConfidenceTiers[i-1].Level {
			return fmt.Errorf("%w: duplicate tier level %v", ErrInvalidConfig, tier.Level)
		}
		if tier.Bonus <= 0 {
			return fmt.Errorf("%w: tier %v bonus must be > 0", ErrInvalidConfig, tier.Level)
		}
		if tier.Penalty < 0 {
			return fmt.Errorf("%w: tier %v penalty must be >= 0", ErrInvalidConfig, tier.Level)
		}
	}
	if c.TimeLimitSeconds < 0 {
		return fmt.Errorf("%w: time limit must be >= 0", ErrInvalidConfig)
	}
	if c.PurchasePrices.TurnCost < 1 || c.PurchasePrices.BudgetCost < 1 || c.PurchasePrices.BudgetAmount < 1 {
		return fmt.Errorf("%w: purchase prices and amounts must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// TierByLevel looks up a configured tier by its confidence level.
func (c SessionConfig) TierByLevel(level float64) (ConfidenceTier, bool) {
	for _, tier := range c.ConfidenceTiers {
		if tier.Level == level {
			return tier, true
		}
	}
	return ConfidenceTier{}, false
}

// PurchaseKind identifies what a purchase action buys.
type PurchaseKind string

const (
	PurchaseTurn   PurchaseKind = "turn"
	PurchaseBudget PurchaseKind = "budget"
)

// InspectResult is the outcome of one committed inspect action.
type InspectResult struct {
	BatchIndex   int     `json:"batch_index"`
	SampleSize   int     `json:"sample_size"`
	Defects      int     `json:"defects"`
	TotalSamples int     `json:"total_samples"`
	TotalDefects int     `json:"total_defects"`
	Estimate     float64 `json:"estimate"` // cumulative x_total / n_total
	TurnsLeft    int     `json:"turns_left"`
	BudgetLeft   int     `json:"budget_left"`
}

// SellResult is the outcome of one committed sell action. The hidden true
// rate is deliberately absent; it becomes visible only through the post-game
// reveal.
type SellResult struct {
	BatchIndex int     `json:"batch_index"`
	Confidence float64 `json:"confidence"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Width      float64 `json:"width"`
	Premium    int     `json:"premium"`
	Penalty    int     `json:"penalty"`
	Hit        bool    `json:"hit"`
	Net        int     `json:"net"`
	NewScore   int     `json:"new_score"`
	TurnsLeft  int     `json:"turns_left"`
}

// PurchaseResult is the outcome of one committed purchase action.
type PurchaseResult struct {
	Kind      PurchaseKind `json:"kind"`
	Cost      int          `json:"cost"`
	Amount    int          `json:"amount"`
	NewScore  int          `json:"new_score"`
	NewTurns  int          `json:"new_turns"`
	NewBudget int          `json:"new_budget"`
}

// LeaderboardEntry is one row of a session leaderboard, ordered by score.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	TurnsUsed  int    `json:"turns_used"`
	BudgetUsed int    `json:"budget_used"`
}

// BatchBoardEntry is a player's view of one batch: cumulative inspection
// tallies plus suggested intervals. True rates are never exposed here.
type BatchBoardEntry struct {
	BatchIndex   int                  `json:"batch_index"`
	TotalSamples int                  `json:"total_samples"`
	TotalDefects int                  `json:"total_defects"`
	Inspected    bool                 `json:"inspected"`
	Sold         bool                 `json:"sold"`
	Locked       bool                 `json:"locked"`
	Estimate     float64              `json:"estimate"`
	Suggestions  []IntervalSuggestion `json:"suggestions,omitempty"`
}

// IntervalSuggestion is a Wilson score interval for one configured tier,
// offered to the player as a starting point for their claim.
type IntervalSuggestion struct {
	Level float64 `json:"level"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Action record types stored in the audit trail.
const (
	RecordInspect  = "INSPECT"
	RecordSell     = "SELL"
	RecordPurchase = "PURCHASE"
	RecordSystem   = "SYSTEM"
)

// ActionRecord is one immutable audit entry for an executed action. The
// engine's live state never depends on it; collaborators use it for history
// display and post-game export.
type ActionRecord struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	PlayerID   string         `json:"player_id,omitempty"`
	Timestamp  time.Time      `json:"ts"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	DeltaScore int            `json:"delta_score"`
}
