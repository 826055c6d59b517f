package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewoo/marketdraft/internal/draft"
	"github.com/ewoo/marketdraft/internal/model"
	"github.com/ewoo/marketdraft/internal/pricecache"
)

func newEngine(t *testing.T) (*Engine, *pricecache.Cache) {
	t.Helper()
	cache := pricecache.New(8)
	return NewEngine(Config{Multiplier: 1000}, cache, nil), cache
}

func pickEvent(session, member uuid.UUID, position int, asset string, price int) draft.PickEvent {
	return draft.PickEvent{
		Pick: model.Pick{
			ID:          uuid.New(),
			SessionID:   session,
			MemberID:    member,
			Slot:        1,
			AssetID:     asset,
			PriceAtPick: price,
		},
		Position: position,
	}
}

func TestEngine_ContributionFromDelta(t *testing.T) {
	e, cache := newEngine(t)
	session, member := uuid.New(), uuid.New()

	e.OnPickCommitted(pickEvent(session, member, 0, "X", 100))
	cache.Update(model.PriceTick{AssetID: "X", Price: 110, Seq: 1})

	entries := e.Entries(session)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(10), entries[0].Points)
	assert.False(t, entries[0].Unpriced)

	// Price falls below the baseline: contribution goes negative.
	cache.Update(model.PriceTick{AssetID: "X", Price: 95, Seq: 2})
	entries = e.Entries(session)
	assert.Equal(t, int64(-5), entries[0].Points)
}

func TestEngine_MultiplierScalesPoints(t *testing.T) {
	cache := pricecache.New(8)
	e := NewEngine(Config{Multiplier: 2000}, cache, nil)
	session, member := uuid.New(), uuid.New()

	e.OnPickCommitted(pickEvent(session, member, 0, "X", 100))
	cache.Update(model.PriceTick{AssetID: "X", Price: 110, Seq: 1})

	entries := e.Entries(session)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(20), entries[0].Points)
}

func TestEngine_DuplicateTickDoesNotDoubleCount(t *testing.T) {
	e, cache := newEngine(t)
	session, member := uuid.New(), uuid.New()

	e.OnPickCommitted(pickEvent(session, member, 0, "X", 100))

	cache.Update(model.PriceTick{AssetID: "X", Price: 110, Seq: 1})
	cache.Update(model.PriceTick{AssetID: "X", Price: 110, Seq: 1})

	entries := e.Entries(session)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(10), entries[0].Points)

	// Scoring is a pure function of (baseline, latest), so even a direct
	// replay of the same tick computes the same value.
	e.onTick(model.PriceTick{AssetID: "X", Price: 110, Seq: 1})
	entries = e.Entries(session)
	assert.Equal(t, int64(10), entries[0].Points)
}

func TestEngine_UnpricedPickBackfillsBaseline(t *testing.T) {
	e, cache := newEngine(t)
	session, member := uuid.New(), uuid.New()

	e.OnPickCommitted(pickEvent(session, member, 0, "X", model.PriceUnpriced))

	entries := e.Entries(session)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Unpriced)
	assert.Zero(t, entries[0].Points)

	// First applied tick becomes the baseline, scoring zero.
	cache.Update(model.PriceTick{AssetID: "X", Price: 200, Seq: 1})
	entries = e.Entries(session)
	assert.False(t, entries[0].Unpriced)
	assert.Zero(t, entries[0].Points)

	// Movement from the backfilled baseline scores normally.
	cache.Update(model.PriceTick{AssetID: "X", Price: 230, Seq: 2})
	entries = e.Entries(session)
	assert.Equal(t, int64(30), entries[0].Points)
}

func TestEngine_PickAfterCachedPriceUsesNewerTick(t *testing.T) {
	e, cache := newEngine(t)
	session, member := uuid.New(), uuid.New()

	// The cache already moved past the pick snapshot before the engine
	// heard about the pick.
	cache.Update(model.PriceTick{AssetID: "X", Price: 120, Seq: 3})
	e.OnPickCommitted(pickEvent(session, member, 0, "X", 100))

	entries := e.Entries(session)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(20), entries[0].Points)
}

func TestEngine_NoSubscriptionForUndraftedAssets(t *testing.T) {
	e, cache := newEngine(t)
	session, member := uuid.New(), uuid.New()

	e.OnPickCommitted(pickEvent(session, member, 0, "X", 100))

	// A tick for an undrafted asset never creates scoring state.
	cache.Update(model.PriceTick{AssetID: "Y", Price: 500, Seq: 1})

	entries := e.Entries(session)
	require.Len(t, entries, 1)
	assert.Equal(t, "X", entries[0].AssetID)

	e.mu.Lock()
	_, subscribedY := e.subs["Y"]
	e.mu.Unlock()
	assert.False(t, subscribedY)
}

func TestEngine_LeaderboardOrderAndTieBreak(t *testing.T) {
	e, cache := newEngine(t)
	session := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	e.OnPickCommitted(pickEvent(session, a, 0, "X", 100))
	e.OnPickCommitted(pickEvent(session, b, 1, "Y", 100))
	e.OnPickCommitted(pickEvent(session, c, 2, "Z", 100))

	cache.Update(model.PriceTick{AssetID: "X", Price: 110, Seq: 1}) // a: +10
	cache.Update(model.PriceTick{AssetID: "Y", Price: 130, Seq: 1}) // b: +30
	cache.Update(model.PriceTick{AssetID: "Z", Price: 110, Seq: 1}) // c: +10, ties a

	rows := e.Leaderboard(session)
	require.Len(t, rows, 3)

	assert.Equal(t, b, rows[0].MemberID)
	assert.Equal(t, int64(30), rows[0].Total)

	// a and c tie on points; a drafted earlier and ranks ahead.
	assert.Equal(t, a, rows[1].MemberID)
	assert.Equal(t, c, rows[2].MemberID)
}

func TestEngine_MemberTotalSumsContributions(t *testing.T) {
	e, cache := newEngine(t)
	session, member := uuid.New(), uuid.New()

	e.OnPickCommitted(pickEvent(session, member, 0, "X", 100))
	e.OnPickCommitted(pickEvent(session, member, 0, "Y", 50))

	cache.Update(model.PriceTick{AssetID: "X", Price: 110, Seq: 1})
	cache.Update(model.PriceTick{AssetID: "Y", Price: 45, Seq: 1})

	rows := e.Leaderboard(session)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10-5), rows[0].Total)
}

// noopSubscriber satisfies draft.AssetSubscriber for wiring tests.
type noopSubscriber struct{}

func (noopSubscriber) Subscribe(assetIDs []string)   {}
func (noopSubscriber) Unsubscribe(assetIDs []string) {}

func TestEngine_AbortClearsScoringState(t *testing.T) {
	e, cache := newEngine(t)

	orch := draft.NewOrchestrator(draft.Config{}, cache, noopSubscriber{}, nil, nil)
	orch.AddPickListener(e)

	a := uuid.New()
	id, err := orch.StartSession(uuid.New(), []uuid.UUID{a}, 2, []string{"X", "Y"}, nil)
	require.NoError(t, err)

	_, err = orch.SubmitPick(id, a, "X")
	require.NoError(t, err)
	require.Len(t, e.Entries(id), 1)

	// Abort reaches the engine through the listener registration alone.
	require.NoError(t, orch.Abort(id))

	assert.Empty(t, e.Entries(id))
	e.mu.Lock()
	_, subscribedX := e.subs["X"]
	e.mu.Unlock()
	assert.False(t, subscribedX)
}

func TestEngine_RemoveSessionUnsubscribes(t *testing.T) {
	e, cache := newEngine(t)
	s1, s2 := uuid.New(), uuid.New()
	m1, m2 := uuid.New(), uuid.New()

	e.OnPickCommitted(pickEvent(s1, m1, 0, "X", 100))
	e.OnPickCommitted(pickEvent(s1, m1, 0, "Y", 100))
	e.OnPickCommitted(pickEvent(s2, m2, 0, "Y", 100))

	e.RemoveSession(s1)

	assert.Empty(t, e.Entries(s1))

	// Y is still drafted by s2 and keeps scoring; X is fully released.
	cache.Update(model.PriceTick{AssetID: "Y", Price: 120, Seq: 1})
	entries := e.Entries(s2)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(20), entries[0].Points)

	e.mu.Lock()
	_, subscribedX := e.subs["X"]
	_, subscribedY := e.subs["Y"]
	e.mu.Unlock()
	assert.False(t, subscribedX)
	assert.True(t, subscribedY)
}
