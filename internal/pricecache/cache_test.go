package pricecache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewoo/marketdraft/internal/model"
)

func tick(asset string, price int, seq int64) model.PriceTick {
	return model.PriceTick{AssetID: asset, Price: price, Seq: seq}
}

func TestCache_UpdateAndLatest(t *testing.T) {
	c := New(8)

	_, ok := c.Latest("X")
	assert.False(t, ok)

	assert.True(t, c.Update(tick("X", 100, 1)))

	got, ok := c.Latest("X")
	require.True(t, ok)
	assert.Equal(t, 100, got.Price)
	assert.Equal(t, int64(1), got.Seq)
}

func TestCache_DiscardsOutOfOrder(t *testing.T) {
	c := New(8)

	require.True(t, c.Update(tick("X", 100, 5)))

	// Older sequence arrives late; the cache keeps most-recent-by-sequence.
	assert.False(t, c.Update(tick("X", 90, 3)))

	got, ok := c.Latest("X")
	require.True(t, ok)
	assert.Equal(t, 100, got.Price)
	assert.Equal(t, int64(5), got.Seq)
}

func TestCache_SameSequenceIsIdempotent(t *testing.T) {
	c := New(8)

	var notifications int
	c.SubscribeChanges("X", func(model.PriceTick) { notifications++ })

	require.True(t, c.Update(tick("X", 100, 1)))
	assert.False(t, c.Update(tick("X", 100, 1)))

	// The replay changed nothing: one notification, unchanged history.
	assert.Equal(t, 1, notifications)
	assert.Len(t, c.History("X"), 1)
}

func TestCache_HistoryBounded(t *testing.T) {
	c := New(3)

	for seq := int64(1); seq <= 10; seq++ {
		c.Update(tick("X", int(seq)*10, seq))
	}

	hist := c.History("X")
	require.Len(t, hist, 3)
	assert.Equal(t, int64(8), hist[0].Seq)
	assert.Equal(t, int64(10), hist[2].Seq)
}

func TestCache_NotifyOnlyAppliedUpdates(t *testing.T) {
	c := New(8)

	var got []int64
	c.SubscribeChanges("X", func(tk model.PriceTick) { got = append(got, tk.Seq) })

	c.Update(tick("X", 100, 1))
	c.Update(tick("X", 90, 1))  // duplicate, discarded
	c.Update(tick("X", 110, 2))
	c.Update(tick("X", 80, 1)) // stale, discarded

	assert.Equal(t, []int64{1, 2}, got)
}

func TestCache_SubscribersScopedPerAsset(t *testing.T) {
	c := New(8)

	var xCount, yCount int
	c.SubscribeChanges("X", func(model.PriceTick) { xCount++ })
	c.SubscribeChanges("Y", func(model.PriceTick) { yCount++ })

	c.Update(tick("X", 100, 1))
	c.Update(tick("X", 110, 2))
	c.Update(tick("Y", 50, 1))

	assert.Equal(t, 2, xCount)
	assert.Equal(t, 1, yCount)
}

func TestCache_UnsubscribeIdempotent(t *testing.T) {
	c := New(8)

	var count int
	id := c.SubscribeChanges("X", func(model.PriceTick) { count++ })

	c.Update(tick("X", 100, 1))
	c.Unsubscribe("X", id)
	c.Unsubscribe("X", id) // second call is a no-op
	c.Unsubscribe("Y", 99) // unknown asset is a no-op
	c.Update(tick("X", 110, 2))

	assert.Equal(t, 1, count)
}

func TestCache_ParallelAssetsIndependent(t *testing.T) {
	c := New(4)
	assets := []string{"A", "B", "C", "D"}

	var wg sync.WaitGroup
	for _, asset := range assets {
		wg.Add(1)
		go func(asset string) {
			defer wg.Done()
			for seq := int64(1); seq <= 100; seq++ {
				c.Update(tick(asset, int(seq), seq))
			}
		}(asset)
	}
	wg.Wait()

	for _, asset := range assets {
		got, ok := c.Latest(asset)
		require.True(t, ok, asset)
		assert.Equal(t, int64(100), got.Seq, asset)
	}
}

func TestCache_PerAssetDeliveryOrdered(t *testing.T) {
	c := New(4)

	var mu sync.Mutex
	var seqs []int64
	c.SubscribeChanges("X", func(tk model.PriceTick) {
		mu.Lock()
		seqs = append(seqs, tk.Seq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for s := base; s <= 200; s += 4 {
				c.Update(tick("X", int(s), s))
			}
		}(int64(i + 1))
	}
	wg.Wait()

	// Whatever subset was applied, subscribers saw strictly ascending
	// sequences: no reordering of two ticks for the same asset.
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seqs); i++ {
		require.Greater(t, seqs[i], seqs[i-1])
	}
}
