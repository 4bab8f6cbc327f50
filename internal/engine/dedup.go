package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"pilotfish/internal/exchange"
	"pilotfish/internal/logger"
	"pilotfish/internal/store"
	"pilotfish/internal/store/model"
)

// DedupSettings control the suppression window and how coarsely prices are
// bucketed when deriving keys.
type DedupSettings struct {
	TTL          time.Duration
	TolerancePct float64
}

func (s DedupSettings) withDefaults() DedupSettings {
	if s.TTL <= 0 {
		s.TTL = 5 * time.Minute
	}
	if s.TolerancePct <= 0 {
		s.TolerancePct = 0.5
	}
	return s
}

// DedupCache suppresses repeat notifications within a TTL window. The
// persisted table is authoritative; the in-memory map is a fast path that
// tolerates being empty after a restart.
type DedupCache struct {
	store    store.Store
	settings DedupSettings
	now      func() time.Time

	mu  sync.Mutex
	mem map[string]time.Time // key -> expiry
}

func NewDedupCache(st store.Store, settings DedupSettings) *DedupCache {
	return &DedupCache{
		store:    st,
		settings: settings.withDefaults(),
		now:      time.Now,
		mem:      make(map[string]time.Time),
	}
}

// DedupKeyFor buckets price geometrically so the tolerance stays relative
// to the price level.
func DedupKeyFor(symbol string, side exchange.Side, strategyKey string, price, tolerancePct float64) string {
	bucket := int64(0)
	if price > 0 && tolerancePct > 0 {
		width := math.Log1p(tolerancePct / 100)
		if width > 0 {
			bucket = int64(math.Floor(math.Log(price) / width))
		}
	}
	return fmt.Sprintf("%s|%s|%s|%d", symbol, side, strategyKey, bucket)
}

// ShouldSend atomically checks and records the key. True means the caller
// owns this emission; false is a successful no-op, not an error.
func (c *DedupCache) ShouldSend(ctx context.Context, symbol string, side exchange.Side, strategyKey string, price float64) (bool, error) {
	key := DedupKeyFor(symbol, side, strategyKey, price, c.settings.TolerancePct)
	now := c.now()

	c.mu.Lock()
	if exp, ok := c.mem[key]; ok && now.Before(exp) {
		c.mu.Unlock()
		logger.Debugf("dedup: suppressed %s (memory hit)", key)
		return false, nil
	}
	c.mu.Unlock()

	uow, err := c.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	existing, err := uow.Dedup().Find(ctx, key, now.Unix())
	if err != nil {
		_ = uow.Rollback()
		return false, err
	}
	if existing != nil {
		_ = uow.Rollback()
		c.remember(key, time.Unix(existing.ExpiresAtUnix, 0))
		logger.Debugf("dedup: suppressed %s (store hit)", key)
		return false, nil
	}
	expiry := now.Add(c.settings.TTL)
	if err := uow.Dedup().Insert(ctx, &model.DedupKeyModel{
		Key:           key,
		ExpiresAtUnix: expiry.Unix(),
		CreatedAtUnix: now.Unix(),
	}); err != nil {
		_ = uow.Rollback()
		return false, err
	}
	if err := uow.Commit(); err != nil {
		return false, err
	}
	c.remember(key, expiry)
	return true, nil
}

// Purge drops expired rows and memory entries; called periodically by the
// cycle loop.
func (c *DedupCache) Purge(ctx context.Context) {
	now := c.now()
	c.mu.Lock()
	for k, exp := range c.mem {
		if !now.Before(exp) {
			delete(c.mem, k)
		}
	}
	c.mu.Unlock()

	uow, err := c.store.Begin(ctx)
	if err != nil {
		logger.Warnf("dedup purge: begin failed: %v", err)
		return
	}
	n, err := uow.Dedup().PurgeExpired(ctx, now.Unix())
	if err != nil {
		_ = uow.Rollback()
		logger.Warnf("dedup purge failed: %v", err)
		return
	}
	if err := uow.Commit(); err != nil {
		logger.Warnf("dedup purge commit failed: %v", err)
		return
	}
	if n > 0 {
		logger.Debugf("dedup purge removed %d expired keys", n)
	}
}

func (c *DedupCache) remember(key string, expiry time.Time) {
	c.mu.Lock()
	c.mem[key] = expiry
	c.mu.Unlock()
}
