package engine

import (
	"context"
	"testing"
	"time"

	"pilotfish/internal/exchange"
	"pilotfish/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupCache_SuppressesWithinTTL(t *testing.T) {
	cache := NewDedupCache(memory.NewStore(), DedupSettings{TTL: 5 * time.Minute, TolerancePct: 0.5})
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	cache.now = fixedClock(base)

	ok, err := cache.ShouldSend(context.Background(), "BTCUSDT", exchange.SideBuy, "rsi-ma", 100)
	require.NoError(t, err)
	assert.True(t, ok, "first emission owns the key")

	ok, err = cache.ShouldSend(context.Background(), "BTCUSDT", exchange.SideBuy, "rsi-ma", 100)
	require.NoError(t, err)
	assert.False(t, ok, "repeat within the window is suppressed")

	// price inside the tolerance band maps to the same bucket
	ok, err = cache.ShouldSend(context.Background(), "BTCUSDT", exchange.SideBuy, "rsi-ma", 100.1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDedupCache_ExpiryReopensKey(t *testing.T) {
	cache := NewDedupCache(memory.NewStore(), DedupSettings{TTL: 5 * time.Minute, TolerancePct: 0.5})
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	cache.now = fixedClock(base)

	ok, err := cache.ShouldSend(context.Background(), "BTCUSDT", exchange.SideBuy, "rsi-ma", 100)
	require.NoError(t, err)
	require.True(t, ok)

	cache.now = fixedClock(base.Add(5*time.Minute + time.Second))
	ok, err = cache.ShouldSend(context.Background(), "BTCUSDT", exchange.SideBuy, "rsi-ma", 100)
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be claimed again")
}

func TestDedupCache_DistinctDimensionsDoNotCollide(t *testing.T) {
	cache := NewDedupCache(memory.NewStore(), DedupSettings{TTL: 5 * time.Minute, TolerancePct: 0.5})

	claims := []struct {
		symbol   string
		side     exchange.Side
		strategy string
		price    float64
	}{
		{"BTCUSDT", exchange.SideBuy, "rsi-ma", 100},
		{"BTCUSDT", exchange.SideSell, "rsi-ma", 100},
		{"ETHUSDT", exchange.SideBuy, "rsi-ma", 100},
		{"BTCUSDT", exchange.SideBuy, "breakout", 100},
		{"BTCUSDT", exchange.SideBuy, "rsi-ma", 110},
	}
	for _, c := range claims {
		ok, err := cache.ShouldSend(context.Background(), c.symbol, c.side, c.strategy, c.price)
		require.NoError(t, err)
		assert.True(t, ok, "%s/%s/%s@%v should be independent", c.symbol, c.side, c.strategy, c.price)
	}
}

func TestDedupCache_StoreIsAuthoritativeAfterRestart(t *testing.T) {
	st := memory.NewStore()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	first := NewDedupCache(st, DedupSettings{TTL: 5 * time.Minute, TolerancePct: 0.5})
	first.now = fixedClock(base)
	ok, err := first.ShouldSend(context.Background(), "BTCUSDT", exchange.SideBuy, "rsi-ma", 100)
	require.NoError(t, err)
	require.True(t, ok)

	// a fresh cache over the same store starts with an empty memory map
	second := NewDedupCache(st, DedupSettings{TTL: 5 * time.Minute, TolerancePct: 0.5})
	second.now = fixedClock(base.Add(time.Minute))
	ok, err = second.ShouldSend(context.Background(), "BTCUSDT", exchange.SideBuy, "rsi-ma", 100)
	require.NoError(t, err)
	assert.False(t, ok, "persisted key survives a restart")
}

func TestDedupCache_PurgeRemovesExpiredKeys(t *testing.T) {
	st := memory.NewStore()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	cache := NewDedupCache(st, DedupSettings{TTL: time.Minute, TolerancePct: 0.5})
	cache.now = fixedClock(base)

	_, err := cache.ShouldSend(context.Background(), "BTCUSDT", exchange.SideBuy, "rsi-ma", 100)
	require.NoError(t, err)

	cache.now = fixedClock(base.Add(2 * time.Minute))
	cache.Purge(context.Background())

	cache.mu.Lock()
	remaining := len(cache.mem)
	cache.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestDedupKeyFor_GeometricBuckets(t *testing.T) {
	a := DedupKeyFor("BTCUSDT", exchange.SideBuy, "rsi-ma", 100, 0.5)
	b := DedupKeyFor("BTCUSDT", exchange.SideBuy, "rsi-ma", 100.2, 0.5)
	c := DedupKeyFor("BTCUSDT", exchange.SideBuy, "rsi-ma", 101, 0.5)
	assert.Equal(t, a, b, "prices within the tolerance share a bucket")
	assert.NotEqual(t, a, c, "prices outside the tolerance do not")
}
