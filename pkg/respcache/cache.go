package respcache

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-saleschat-be/internal/apperror"
	"ai-saleschat-be/pkg/events"

	"golang.org/x/sync/singleflight"
)

// Publisher fans invalidations out to sibling instances. Nil is fine
// for single-process deployments.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Cache fronts expensive model/search calls with a TTL + tag store.
// Backend failures degrade to always-miss: caching is a performance
// optimization, never a correctness dependency.
type Cache struct {
	store      Store
	publisher  Publisher
	defaultTTL time.Duration
	logger     *log.Logger
	group      singleflight.Group
}

func NewCache(store Store, publisher Publisher, defaultTTL time.Duration, logger *log.Logger) *Cache {
	return &Cache{
		store:      store,
		publisher:  publisher,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Get returns (value, true) on a hit. Expired entries and backend
// errors both read as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Printf("[CACHE] backend unavailable on get, degrading to miss: %v", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	if !entry.ExpiresAt.After(time.Now()) {
		// Expired but not yet swept: a miss, not a stale hit. Removal
		// is left to the periodic sweep so reads stay side-effect-light.
		return nil, false
	}
	return entry.Value, true
}

func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	entry := &Entry{
		Value:          value,
		Tags:           tags,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}
	if err := c.store.Set(ctx, key, entry); err != nil {
		c.logger.Printf("[CACHE] backend unavailable on put, skipping: %v", err)
	}
}

// GetOrCompute collapses concurrent misses for the same key into a
// single in-flight computation; late arrivals wait for the shared
// result instead of recomputing. The bool reports whether the value
// came from the cache or a flight another caller started.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, tags []string, compute func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, true, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// Re-check: the previous flight may have populated the slot
		// between our miss and acquiring the flight.
		if value, ok := c.Get(ctx, key); ok {
			return value, nil
		}
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(ctx, key, value, ttl, tags)
		return value, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), shared, nil
}

// Invalidate removes every entry sharing the tag in one pass and
// publishes the invalidation for sibling instances. Remote convergence
// is eventually consistent: a sibling may serve its local copy for the
// brief window until the event lands.
func (c *Cache) Invalidate(ctx context.Context, tag string) (int, error) {
	removed, err := c.store.DeleteByTag(ctx, tag)
	if err != nil {
		c.logger.Printf("[CACHE] invalidate %q failed: %v", tag, err)
		return 0, fmt.Errorf("%w: %v", apperror.ErrCacheBackendUnavailable, err)
	}
	c.logger.Printf("[CACHE] invalidated tag %q, removed %d entries", tag, removed)

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, events.NewCacheInvalidated(tag, removed)); err != nil {
			c.logger.Printf("[CACHE] failed to publish invalidation for %q: %v", tag, err)
		}
	}
	return removed, nil
}

// Flush drops everything, the admin escape hatch.
func (c *Cache) Flush(ctx context.Context) (int, error) {
	removed, err := c.store.Flush(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperror.ErrCacheBackendUnavailable, err)
	}
	c.logger.Printf("[CACHE] flushed %d entries", removed)

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, events.NewCacheFlushed(removed)); err != nil {
			c.logger.Printf("[CACHE] failed to publish flush: %v", err)
		}
	}
	return removed, nil
}

// StartSweeper runs the periodic expiry sweep until ctx is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n, err := c.store.Sweep(ctx, now); err != nil {
					c.logger.Printf("[CACHE] sweep failed: %v", err)
				} else if n > 0 {
					c.logger.Printf("[CACHE] sweep removed %d expired entries", n)
				}
			}
		}
	}()
}
