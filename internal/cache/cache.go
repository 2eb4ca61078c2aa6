// Package cache is a keyed TTL response cache with substring pattern
// invalidation. It is a correctness-neutral accelerator in front of read
// paths; nothing persists through it.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
	Items    int     `json:"items"`
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache stores values under endpoint+params keys with per-entry TTL.
// Call Close to stop the background eviction goroutine.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	hits    int64
	misses  int64

	now  func() time.Time
	done chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache and starts its eviction loop.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.evictLoop()
	return c
}

// Key builds the cache key for an endpoint and its parameters. Params are
// sorted so equivalent requests share one key.
func Key(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, name := range names {
		fmt.Fprintf(&b, "&%s=%s", name, params[name])
	}
	return b.String()
}

// Get returns the cached value for a key if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return e.value, true
}

// Set stores a value with the given TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// InvalidatePattern removes every key containing pattern as a substring
// and returns the number removed.
func (c *Cache) InvalidatePattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		if strings.Contains(k, pattern) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Stats returns hit/miss counters and the current item count.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{Hits: c.hits, Misses: c.misses, Items: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		s.HitRatio = float64(c.hits) / float64(total)
	}
	return s
}

// Close stops the background eviction goroutine.
func (c *Cache) Close() {
	close(c.done)
}

// evictLoop removes expired entries every minute.
func (c *Cache) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}
