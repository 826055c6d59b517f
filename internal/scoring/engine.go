package scoring

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewoo/marketdraft/internal/draft"
	"github.com/ewoo/marketdraft/internal/model"
	"github.com/ewoo/marketdraft/internal/pricecache"
)

// Config holds scoring parameters.
type Config struct {
	// Multiplier scales price deltas into points, fixed-point with a /1000
	// divisor: 1000 means one point per price unit of movement.
	Multiplier int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Multiplier: 1000}
}

// Engine derives fantasy points from price movement of drafted assets. It
// subscribes to cache changes only for assets that appear in a committed
// pick, so a tick for an undrafted asset never triggers a recompute.
//
// Scoring is a pure function of (baseline, latest price): reapplying a tick
// or reading at any moment yields the same totals, never an accumulation
// over tick history.
type Engine struct {
	cfg    Config
	cache  *pricecache.Cache
	logger *slog.Logger

	mu        sync.Mutex
	byAsset   map[string][]*pickScore
	bySession map[uuid.UUID][]*pickScore
	subs      map[string]int // asset id → cache subscription id
}

// pickScore is one pick's scoring state.
type pickScore struct {
	sessionID uuid.UUID
	memberID  uuid.UUID
	assetID   string
	position  int   // draft order position, leaderboard tie-break
	baseline  int   // price at pick; model.PriceUnpriced until backfilled
	points    int64 // current contribution
	updatedAt int64
}

// NewEngine creates a scoring engine reading prices from cache.
func NewEngine(cfg Config, cache *pricecache.Cache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Multiplier == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:       cfg,
		cache:     cache,
		logger:    logger,
		byAsset:   make(map[string][]*pickScore),
		bySession: make(map[uuid.UUID][]*pickScore),
		subs:      make(map[string]int),
	}
}

// OnPickCommitted registers a pick's baseline and ensures the engine is
// subscribed to the asset's price changes. Implements draft.PickListener.
func (e *Engine) OnPickCommitted(ev draft.PickEvent) {
	pick := ev.Pick

	ps := &pickScore{
		sessionID: pick.SessionID,
		memberID:  pick.MemberID,
		assetID:   pick.AssetID,
		position:  ev.Position,
		baseline:  pick.PriceAtPick,
		updatedAt: time.Now().UnixMicro(),
	}

	e.mu.Lock()
	e.byAsset[pick.AssetID] = append(e.byAsset[pick.AssetID], ps)
	e.bySession[pick.SessionID] = append(e.bySession[pick.SessionID], ps)

	if _, ok := e.subs[pick.AssetID]; !ok {
		assetID := pick.AssetID
		e.subs[assetID] = e.cache.SubscribeChanges(assetID, func(tick model.PriceTick) {
			e.onTick(tick)
		})
	}
	e.mu.Unlock()

	// The cache may already hold a price newer than the pick snapshot.
	if tick, ok := e.cache.Latest(pick.AssetID); ok {
		e.onTick(tick)
	}
}

// onTick recomputes every pick contribution referencing the ticked asset.
func (e *Engine) onTick(tick model.PriceTick) {
	now := time.Now().UnixMicro()

	e.mu.Lock()
	for _, ps := range e.byAsset[tick.AssetID] {
		if ps.baseline == model.PriceUnpriced {
			// First applied tick after an unpriced commit becomes the baseline.
			ps.baseline = tick.Price
			ps.points = 0
			ps.updatedAt = now
			continue
		}
		ps.points = e.contribution(ps.baseline, tick.Price)
		ps.updatedAt = now
	}
	e.mu.Unlock()
}

// contribution maps a price delta to points. Monotonic in the delta's
// direction and deterministic.
func (e *Engine) contribution(baseline, latest int) int64 {
	return int64(latest-baseline) * e.cfg.Multiplier / 1000
}

// Entries returns the current score entries for a session.
func (e *Engine) Entries(sessionID uuid.UUID) []model.ScoreEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	scores := e.bySession[sessionID]
	out := make([]model.ScoreEntry, 0, len(scores))
	for _, ps := range scores {
		out = append(out, model.ScoreEntry{
			SessionID: ps.sessionID,
			MemberID:  ps.memberID,
			AssetID:   ps.assetID,
			Points:    ps.points,
			Unpriced:  ps.baseline == model.PriceUnpriced,
			UpdatedAt: ps.updatedAt,
		})
	}
	return out
}

// Leaderboard returns members ordered by total points descending, ties broken
// by draft order position. The view is consistent with the latest applied
// cache state at call time.
func (e *Engine) Leaderboard(sessionID uuid.UUID) []model.LeaderboardRow {
	e.mu.Lock()

	totals := make(map[uuid.UUID]*model.LeaderboardRow)
	for _, ps := range e.bySession[sessionID] {
		row, ok := totals[ps.memberID]
		if !ok {
			row = &model.LeaderboardRow{MemberID: ps.memberID, Position: ps.position}
			totals[ps.memberID] = row
		}
		row.Total += ps.points
	}
	e.mu.Unlock()

	rows := make([]model.LeaderboardRow, 0, len(totals))
	for _, row := range totals {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Position < rows[j].Position
	})
	return rows
}

// OnSessionAborted drops the aborted session's scoring state. Implements
// draft.SessionListener, so registering the engine as a pick listener is
// enough for abort cleanup to happen automatically.
func (e *Engine) OnSessionAborted(sessionID uuid.UUID) {
	e.RemoveSession(sessionID)
}

// RemoveSession drops a session's scoring state and unsubscribes assets no
// other session's picks still reference.
func (e *Engine) RemoveSession(sessionID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := e.bySession[sessionID]
	delete(e.bySession, sessionID)

	for _, ps := range removed {
		kept := e.byAsset[ps.assetID][:0]
		for _, other := range e.byAsset[ps.assetID] {
			if other.sessionID != sessionID {
				kept = append(kept, other)
			}
		}
		if len(kept) == 0 {
			delete(e.byAsset, ps.assetID)
			if id, ok := e.subs[ps.assetID]; ok {
				e.cache.Unsubscribe(ps.assetID, id)
				delete(e.subs, ps.assetID)
			}
		} else {
			e.byAsset[ps.assetID] = kept
		}
	}
}
