// Package sessionuser caches reduced, read-only views of authenticated users
// and bridges the cache into the user store lifecycle.
package sessionuser

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Stats is a point in time snapshot of cache counters
type Stats struct {
	Entries       int    `json:"entries"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Adds          uint64 `json:"adds"`
	Invalidations uint64 `json:"invalidations"`
	Purged        uint64 `json:"purged"`
}

// Cache is a concurrency safe identity keyed cache with purge based expiry.
//
// Get never checks the TTL. Entries older than the TTL stay visible until
// Purge removes them, so callers wanting strict expiry run RunPurger.
// A zero TTL disables expiry, so SetTTL(0) followed by Purge keeps every
// entry; use Clear to drop all entries at once.
type Cache[V any] struct {
	name    string
	now     func() time.Time
	logger  interfaces.Logger
	metrics interfaces.Metrics

	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration

	hits          atomic.Uint64
	misses        atomic.Uint64
	adds          atomic.Uint64
	invalidations atomic.Uint64
	purged        atomic.Uint64
}

// Option configures a Cache
type Option func(*cacheOptions)

type cacheOptions struct {
	name    string
	now     func() time.Time
	logger  interfaces.Logger
	metrics interfaces.Metrics
}

// WithClock replaces the wall clock, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *cacheOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics reports cache counters to m
func WithMetrics(m interfaces.Metrics) Option {
	return func(o *cacheOptions) {
		o.metrics = m
	}
}

// WithLogger sets the logger used by the purger
func WithLogger(l interfaces.Logger) Option {
	return func(o *cacheOptions) {
		o.logger = l
	}
}

// WithName sets the cache label used in metrics
func WithName(name string) Option {
	return func(o *cacheOptions) {
		o.name = name
	}
}

// NewCache creates an empty cache
func NewCache[V any](cfg Config, opts ...Option) *Cache[V] {
	o := cacheOptions{
		name: "sessionuser",
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}

	return &Cache[V]{
		name:    o.name,
		now:     o.now,
		logger:  o.logger,
		metrics: o.metrics,
		entries: make(map[string]entry[V]),
		ttl:     ttl,
	}
}

// Add stores value under key, replacing any previous entry and resetting
// its insertion time.
func (c *Cache[V]) Add(key string, value V) {
	now := c.now()

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, insertedAt: now}
	n := len(c.entries)
	c.mu.Unlock()

	c.adds.Add(1)
	c.count("adds", 1)
	c.gauge(n)
}

// Get returns the value stored under key
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		c.count("misses", 1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	c.count("hits", 1)
	return e.value, true
}

// GetAll returns every stored value in no particular order
func (c *Cache[V]) GetAll() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	values := make([]V, 0, len(c.entries))
	for _, e := range c.entries {
		values = append(values, e.value)
	}
	return values
}

// Invalidate removes the entry for key. Absent keys are ignored.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	n := len(c.entries)
	c.mu.Unlock()

	if ok {
		c.invalidations.Add(1)
		c.count("invalidations", 1)
		c.gauge(n)
	}
}

// Purge removes every entry whose insertion time plus TTL lies before now
// and returns how many were removed. A zero TTL removes nothing.
func (c *Cache[V]) Purge() int {
	now := c.now()

	c.mu.Lock()
	if c.ttl == 0 {
		c.mu.Unlock()
		return 0
	}
	removed := 0
	for k, e := range c.entries {
		if e.insertedAt.Add(c.ttl).Before(now) {
			delete(c.entries, k)
			removed++
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.purged.Add(uint64(removed))
		c.count("purged", float64(removed))
		c.gauge(n)
	}
	return removed
}

// Clear removes all entries regardless of age and returns how many were
// removed
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	removed := len(c.entries)
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()

	if removed > 0 {
		c.invalidations.Add(uint64(removed))
		c.count("invalidations", float64(removed))
		c.gauge(0)
	}
	return removed
}

// SetTTL changes the expiry used by subsequent purges. Negative values are
// treated as zero.
func (c *Cache[V]) SetTTL(ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// TTL returns the current expiry
func (c *Cache[V]) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// Len returns the number of stored entries
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the current counters
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Entries:       c.Len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Adds:          c.adds.Load(),
		Invalidations: c.invalidations.Load(),
		Purged:        c.purged.Load(),
	}
}

// RunPurger calls Purge every interval until ctx is done
func (c *Cache[V]) RunPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			removed := c.Purge()
			if c.metrics != nil {
				c.metrics.Timer("sessionuser_cache_purge_duration_ms",
					float64(time.Since(start).Microseconds())/1000, map[string]string{"cache": c.name})
			}
			if removed > 0 && c.logger != nil {
				c.logger.Debug("Purged expired session users", map[string]interface{}{
					"cache":   c.name,
					"removed": removed,
				})
			}
		}
	}
}

func (c *Cache[V]) count(op string, n float64) {
	if c.metrics == nil {
		return
	}
	c.metrics.Counter("sessionuser_cache_"+op+"_total", n, map[string]string{"cache": c.name})
}

func (c *Cache[V]) gauge(n int) {
	if c.metrics == nil {
		return
	}
	c.metrics.Gauge("sessionuser_cache_entries", float64(n), map[string]string{"cache": c.name})
}
