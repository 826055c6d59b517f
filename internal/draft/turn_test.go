package draft

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTurn_Wraps(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	order := []uuid.UUID{a, b, c}

	filled := map[uuid.UUID]int{a: 0, b: 1, c: 0}
	eligible := func(m uuid.UUID) bool { return filled[m] < 1 }

	// After c (index 2), the scan wraps to a.
	next, done := nextTurn(order, 2, eligible)
	require.False(t, done)
	assert.Equal(t, 0, next)

	// After a, b is full so c is next.
	next, done = nextTurn(order, 0, eligible)
	require.False(t, done)
	assert.Equal(t, 2, next)
}

func TestNextTurn_SkipsFullMembers(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	order := []uuid.UUID{a, b}

	filled := map[uuid.UUID]int{a: 2, b: 1}
	next, done := nextTurn(order, 0, func(m uuid.UUID) bool { return filled[m] < 2 })
	require.False(t, done)
	assert.Equal(t, 1, next)
}

func TestNextTurn_Complete(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	order := []uuid.UUID{a, b}

	next, done := nextTurn(order, 1, func(uuid.UUID) bool { return false })
	assert.True(t, done)
	assert.Equal(t, -1, next)
}

func TestNextTurn_CurrentMemberEligibleAgain(t *testing.T) {
	// A single-member order must hand the turn back to the same member.
	a := uuid.New()
	order := []uuid.UUID{a}

	next, done := nextTurn(order, 0, func(uuid.UUID) bool { return true })
	require.False(t, done)
	assert.Equal(t, 0, next)
}

func TestBuildSnakeOrder(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	got := BuildSnakeOrder([]uuid.UUID{a, b, c}, 3)
	want := []uuid.UUID{a, b, c, c, b, a, a, b, c}
	assert.Equal(t, want, got)
}

func TestBuildSnakeOrder_Degenerate(t *testing.T) {
	assert.Nil(t, BuildSnakeOrder(nil, 2))
	assert.Nil(t, BuildSnakeOrder([]uuid.UUID{uuid.New()}, 0))
}
