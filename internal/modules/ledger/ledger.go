// Package ledger tracks one player's scarce resources for one session:
// turns remaining, inspection budget remaining, and score. Turns and budget
// are invariantly non-negative; every deduction is checked before it is
// applied, and paired deductions land atomically (both or neither). Score is
// a signed integer with no floor.
//
// A Ledger is not self-locking: the owning session serializes access through
// its per-player mutex, so all methods here assume that lock is held.
package ledger

import "github.com/mr-valente/quacktuaries/internal/domain"

// Ledger holds one player's resource state.
type Ledger struct {
	turns  int
	budget int
	score  int
}

// New creates a ledger with the session's starting allowances.
func New(turns, budget int) *Ledger {
	return &Ledger{turns: turns, budget: budget}
}

// Turns returns the turns remaining.
func (l *Ledger) Turns() int { return l.turns }

// Budget returns the inspection budget remaining.
func (l *Ledger) Budget() int { return l.budget }

// Score returns the current score.
func (l *Ledger) Score() int { return l.score }

// CanAfford reports whether a deduction of the given turns and budget would
// keep both balances non-negative. Pure check, no mutation.
func (l *Ledger) CanAfford(turns, budget int) bool {
	return l.turns >= turns && l.budget >= budget
}

// Spend deducts turns and budget together. If either balance would go
// negative, nothing is deducted.
func (l *Ledger) Spend(turns, budget int) error {
	if !l.CanAfford(turns, budget) {
		return domain.ErrInsufficientResources
	}
	l.turns -= turns
	l.budget -= budget
	return nil
}

// AdjustScore adds delta to the score. Delta may be negative and the score
// may go arbitrarily far below zero.
func (l *Ledger) AdjustScore(delta int) {
	l.score += delta
}

// PurchaseTurn exchanges score for one extra turn.
func (l *Ledger) PurchaseTurn(cost int) error {
	if l.score < cost {
		return domain.ErrInsufficientScore
	}
	l.score -= cost
	l.turns++
	return nil
}

// PurchaseBudget exchanges score for extra inspection budget.
func (l *Ledger) PurchaseBudget(cost, amount int) error {
	if l.score < cost {
		return domain.ErrInsufficientScore
	}
	l.score -= cost
	l.budget += amount
	return nil
}
