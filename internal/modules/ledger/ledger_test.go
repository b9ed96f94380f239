package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr-valente/quacktuaries/internal/domain"
)

func TestSpendDeductsBoth(t *testing.T) {
	l := New(10, 200)

	require.NoError(t, l.Spend(1, 30))
	assert.Equal(t, 9, l.Turns())
	assert.Equal(t, 170, l.Budget())
}

func TestSpendIsAllOrNothing(t *testing.T) {
	l := New(1, 10)

	// Enough turns, not enough budget: neither balance moves.
	err := l.Spend(1, 20)
	assert.ErrorIs(t, err, domain.ErrInsufficientResources)
	assert.Equal(t, 1, l.Turns())
	assert.Equal(t, 10, l.Budget())

	// Enough budget, no turns left.
	require.NoError(t, l.Spend(1, 5))
	err = l.Spend(1, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientResources)
	assert.Equal(t, 0, l.Turns())
	assert.Equal(t, 5, l.Budget())
}

func TestCanAffordDoesNotMutate(t *testing.T) {
	l := New(3, 50)

	assert.True(t, l.CanAfford(1, 50))
	assert.False(t, l.CanAfford(4, 0))
	assert.Equal(t, 3, l.Turns())
	assert.Equal(t, 50, l.Budget())
}

func TestAdjustScoreHasNoFloor(t *testing.T) {
	l := New(1, 1)

	l.AdjustScore(90)
	assert.Equal(t, 90, l.Score())

	l.AdjustScore(-600)
	assert.Equal(t, -510, l.Score())
}

func TestPurchaseTurn(t *testing.T) {
	l := New(0, 0)
	l.AdjustScore(150)

	require.NoError(t, l.PurchaseTurn(150))
	assert.Equal(t, 0, l.Score())
	assert.Equal(t, 1, l.Turns())

	err := l.PurchaseTurn(150)
	assert.ErrorIs(t, err, domain.ErrInsufficientScore)
	assert.Equal(t, 0, l.Score())
	assert.Equal(t, 1, l.Turns())
}

func TestPurchaseBudget(t *testing.T) {
	l := New(0, 20)
	l.AdjustScore(99)

	err := l.PurchaseBudget(100, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientScore)
	assert.Equal(t, 99, l.Score())
	assert.Equal(t, 20, l.Budget())

	l.AdjustScore(1)
	require.NoError(t, l.PurchaseBudget(100, 100))
	assert.Equal(t, 0, l.Score())
	assert.Equal(t, 120, l.Budget())
}
