package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Rate-limit keys carry a class prefix before the first colon: "user:<id>"
// for session traffic, "addr:<ip>" for anonymous requests, "partner:<id>"
// for sequencing callbacks. Each class can run at its own rate, so partner
// machines are not throttled to interactive-session limits.
type classLimit struct {
	rate  float64 // tokens added per second
	burst float64 // bucket capacity
}

type entry struct {
	tokens float64
	seen   time.Time
}

// Buckets idle longer than this are dropped by the sweep loop.
const idleEviction = 10 * time.Minute

// MemoryLimiter is an in-process token bucket limiter with per-class limits.
type MemoryLimiter struct {
	def     classLimit
	classes map[string]classLimit // keyed by class prefix, fixed after New

	mu      sync.Mutex
	entries map[string]*entry

	quit chan struct{}
	once sync.Once
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClassLimit overrides the rate and burst for one key class.
func WithClassLimit(class string, rate float64, burst int) MemoryOption {
	return func(m *MemoryLimiter) {
		m.classes[class] = classLimit{rate: rate, burst: float64(burst)}
	}
}

// NewMemoryLimiter creates a limiter with the given default rate (sustained
// requests per second per key) and burst. A sweep goroutine drops idle
// buckets once a minute; call Close to stop it.
func NewMemoryLimiter(rate float64, burst int, opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		def:     classLimit{rate: rate, burst: float64(burst)},
		classes: make(map[string]classLimit),
		entries: make(map[string]*entry),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweep()
	return m
}

// Allow consumes one token from the bucket for key. A new key starts with a
// full bucket for its class.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	lim := m.limitFor(key)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{tokens: lim.burst, seen: now}
		m.entries[key] = e
	} else {
		e.tokens = min(lim.burst, e.tokens+now.Sub(e.seen).Seconds()*lim.rate)
		e.seen = now
	}

	if e.tokens < 1 {
		return false, nil
	}
	e.tokens--
	return true, nil
}

func (m *MemoryLimiter) limitFor(key string) classLimit {
	if class, _, ok := strings.Cut(key, ":"); ok {
		if lim, found := m.classes[class]; found {
			return lim
		}
	}
	return m.def
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.once.Do(func() { close(m.quit) })
	return nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case now := <-ticker.C:
			m.dropIdle(now)
		}
	}
}

func (m *MemoryLimiter) dropIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if now.Sub(e.seen) > idleEviction {
			delete(m.entries, key)
		}
	}
}
