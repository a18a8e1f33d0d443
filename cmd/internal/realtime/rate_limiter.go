package realtime

import (
	"sync"
	"time"
)

// RateLimiter is a per-connection sliding-window limiter. It keeps the
// timestamps of the last limit accepted events in a ring.
type RateLimiter struct {
	mu     sync.Mutex
	ring   []time.Time
	head   int
	count  int
	window time.Duration
}

// NewRateLimiter constructs a RateLimiter; non-positive inputs fall back to
// the package defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		ring:   make([]time.Time, limit),
		window: window,
	}
}

// Allow reports whether an event at now is permitted, and records it if so.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cut := now.Add(-r.window)
	for r.count > 0 && !r.ring[r.head].After(cut) {
		r.head = (r.head + 1) % len(r.ring)
		r.count--
	}

	if r.count == len(r.ring) {
		return false
	}
	r.ring[(r.head+r.count)%len(r.ring)] = now
	r.count++
	return true
}
