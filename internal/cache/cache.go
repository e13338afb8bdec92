package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/pkg/logger"
	"github.com/wonny/uvscan/pkg/metrics"
)

// FetchFunc produces a snapshot on a cache miss
type FetchFunc func(ctx context.Context) (*contracts.FinancialSnapshot, error)

// Cache is the two-tier snapshot store: a bounded in-memory fast
// tier plus a larger persistent tier, with single-flight collapsing
// of concurrent fetches for the same key.
// ⭐ SSOT: 스냅샷 캐싱은 여기서만
type Cache struct {
	fast  *fastTier
	store Store
	group singleflight.Group

	logger  *logger.Logger
	metrics *metrics.Recorder
}

// New creates a two-tier cache over the given persistent store
func New(fastCapacity int, store Store, m *metrics.Recorder, log *logger.Logger) *Cache {
	return &Cache{
		fast:    newFastTier(fastCapacity),
		store:   store,
		logger:  log,
		metrics: m,
	}
}

// Get looks the key up in the fast tier first, then the persistent
// tier. A persistent-tier hit is promoted into the fast tier.
// Expired entries are treated as absent.
func (c *Cache) Get(ctx context.Context, key string) (*contracts.FinancialSnapshot, bool) {
	if snap, ok := c.fast.get(key); ok {
		c.recordOp("fast", "hit")
		return snap, true
	}
	c.recordOp("fast", "miss")

	snap, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Persistent tier read failed")
		c.recordOp("persistent", "miss")
		return nil, false
	}
	if !found {
		c.recordOp("persistent", "miss")
		return nil, false
	}
	c.recordOp("persistent", "hit")

	// Promote. The persistent tier has already rejected expired rows,
	// so a short fast-tier window is enough before re-consulting it.
	c.fast.set(key, snap, time.Now().Add(promotedTTL))
	return snap, true
}

// Set writes the value to both tiers, persistent first
func (c *Cache) Set(ctx context.Context, key string, snap *contracts.FinancialSnapshot, ttl time.Duration) {
	expireAt := time.Now().Add(ttl)
	if err := c.store.Set(ctx, key, snap, expireAt); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Persistent tier write failed")
	}
	c.fast.set(key, snap, expireAt)
}

// Delete removes the key from both tiers
func (c *Cache) Delete(ctx context.Context, key string) {
	c.fast.delete(key)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Persistent tier delete failed")
	}
}

// GetOrFetch returns the cached snapshot, or runs fn exactly once per
// key across concurrent callers. Waiters join the in-flight fetch
// instead of issuing duplicate provider calls; a successful result
// populates both tiers before any caller returns.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fn FetchFunc) (*contracts.FinancialSnapshot, error) {
	if snap, ok := c.Get(ctx, key); ok {
		return snap, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Re-check: the previous flight may have filled the cache
		// between our miss and joining the group.
		if snap, ok := c.Get(ctx, key); ok {
			return snap, nil
		}

		snap, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, snap, ttl)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*contracts.FinancialSnapshot), nil
	}
}

// FastLen returns the fast tier entry count (stats/tests)
func (c *Cache) FastLen() int {
	return c.fast.len()
}

// Close closes the persistent tier
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) recordOp(tier, result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheOp(tier, result)
	}
}

// promotedTTL bounds how long a promoted entry lives in the fast tier
// before the persistent tier is consulted again for freshness.
const promotedTTL = 10 * time.Minute
