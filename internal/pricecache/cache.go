package pricecache

import (
	"sync"

	"github.com/ewoo/marketdraft/internal/model"
)

// Cache holds the latest applied price tick per asset plus a bounded trailing
// history. Updates are gated on the upstream sequence number: a tick older
// than the cached one is discarded, so the cache holds the most-recent-by-
// sequence value rather than the most-recently-received one.
type Cache struct {
	historyDepth int

	mu     sync.RWMutex
	assets map[string]*assetEntry
}

// assetEntry is the per-asset state. Each entry has its own locks so updates
// for different assets proceed fully in parallel.
type assetEntry struct {
	// deliverMu serializes apply+notify per asset so two ticks for the same
	// asset are never delivered to subscribers out of application order.
	deliverMu sync.Mutex

	mu      sync.Mutex
	latest  model.PriceTick
	hasTick bool
	history []model.PriceTick // ring of the last historyDepth applied ticks

	subMu   sync.Mutex
	subs    map[int]func(model.PriceTick)
	nextSub int
}

// New creates a cache retaining up to historyDepth trailing ticks per asset.
func New(historyDepth int) *Cache {
	if historyDepth < 1 {
		historyDepth = 1
	}
	return &Cache{
		historyDepth: historyDepth,
		assets:       make(map[string]*assetEntry),
	}
}

// entry returns the per-asset entry, creating it if absent.
func (c *Cache) entry(assetID string) *assetEntry {
	c.mu.RLock()
	e, ok := c.assets[assetID]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.assets[assetID]; ok {
		return e
	}
	e = &assetEntry{subs: make(map[int]func(model.PriceTick))}
	c.assets[assetID] = e
	return e
}

// Update applies the tick if its sequence is newer than the cached one.
// Returns true if the update was applied. Subscribers are notified only for
// applied updates, never for discarded out-of-order ticks.
func (c *Cache) Update(tick model.PriceTick) bool {
	e := c.entry(tick.AssetID)

	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	e.mu.Lock()
	if e.hasTick && tick.Seq <= e.latest.Seq {
		e.mu.Unlock()
		return false
	}
	e.latest = tick
	e.hasTick = true
	e.history = append(e.history, tick)
	if len(e.history) > c.historyDepth {
		e.history = e.history[len(e.history)-c.historyDepth:]
	}
	e.mu.Unlock()

	e.notify(tick)
	return true
}

// Latest returns the most recent applied tick for the asset, if any.
func (c *Cache) Latest(assetID string) (model.PriceTick, bool) {
	c.mu.RLock()
	e, ok := c.assets[assetID]
	c.mu.RUnlock()
	if !ok {
		return model.PriceTick{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest, e.hasTick
}

// History returns up to historyDepth trailing applied ticks for the asset,
// oldest first.
func (c *Cache) History(assetID string) []model.PriceTick {
	c.mu.RLock()
	e, ok := c.assets[assetID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.PriceTick, len(e.history))
	copy(out, e.history)
	return out
}

// SubscribeChanges registers fn to be invoked at most once per applied update
// for the asset. Returns a subscription id for Unsubscribe. Callbacks run on
// the updating goroutine; they must not block.
func (c *Cache) SubscribeChanges(assetID string, fn func(model.PriceTick)) int {
	e := c.entry(assetID)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return id
}

// Unsubscribe removes a change subscription. Unknown ids are a no-op, so the
// call is idempotent.
func (c *Cache) Unsubscribe(assetID string, id int) {
	c.mu.RLock()
	e, ok := c.assets[assetID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	e.subMu.Lock()
	delete(e.subs, id)
	e.subMu.Unlock()
}

// notify invokes all subscribers for an applied tick. Caller holds deliverMu.
func (e *assetEntry) notify(tick model.PriceTick) {
	e.subMu.Lock()
	fns := make([]func(model.PriceTick), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(tick)
	}
}
