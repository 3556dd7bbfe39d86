// Package ratelimit implements sliding-window request limiting for the
// HTTP surface. The admin surface runs a tighter window than the public
// one. In-memory only; a multi-instance deployment would back this with
// Redis.
package ratelimit

import (
	"sync"
	"time"
)

// Limit pairs a request budget with its window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Default limits per surface.
var (
	PublicLimit = Limit{Requests: 100, Window: time.Minute}
	AdminLimit  = Limit{Requests: 10, Window: time.Minute}
)

// Result reports one limit decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Limiter tracks request timestamps per key over a sliding window, which
// avoids the burst-at-boundary problem of fixed windows.
type Limiter struct {
	mu      sync.Mutex
	limit   Limit
	windows map[string][]time.Time
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New builds a limiter enforcing the given limit per key.
func New(limit Limit, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request for key and reports whether it fits the
// window.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.limit.Window)
	window := l.windows[key]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept)+1 > l.limit.Requests {
		l.windows[key] = kept
		resetAt := now.Add(l.limit.Window)
		if len(kept) > 0 {
			resetAt = kept[0].Add(l.limit.Window)
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Limit: l.limit.Requests}
	}

	kept = append(kept, now)
	l.windows[key] = kept
	return Result{
		Allowed:   true,
		Remaining: l.limit.Requests - len(kept),
		ResetAt:   kept[0].Add(l.limit.Window),
		Limit:     l.limit.Requests,
	}
}

// Reset clears the window for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}
