package queue

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-user sliding window: at most count accepted
// requests within window. A token-bucket limiter would smooth bursts
// instead of bounding them, which is the wrong shape for "N messages per
// half minute per chatter", so the window is tracked explicitly.
type RateLimiter struct {
	mu     sync.Mutex
	count  int
	window time.Duration
	seen   map[string][]time.Time
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing count requests per window per
// user. count <= 0 disables limiting.
func NewRateLimiter(count int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		count:  count,
		window: window,
		seen:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records an attempt for userID and reports whether it fits the
// window. Rejected attempts are not recorded.
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count <= 0 {
		return true
	}

	now := r.now()
	cutoff := now.Add(-r.window)

	kept := r.seen[userID][:0]
	for _, t := range r.seen[userID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.count {
		r.seen[userID] = kept
		return false
	}

	r.seen[userID] = append(kept, now)
	return true
}

// SetLimit swaps the limit parameters at runtime. Existing window history
// is kept, so tightening the limit applies to requests already counted.
func (r *RateLimiter) SetLimit(count int, window time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = count
	r.window = window
}

// Prune drops window history older than the current window. Called
// periodically so long-gone users do not accumulate.
func (r *RateLimiter) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	for id, times := range r.seen {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(r.seen, id)
		} else {
			r.seen[id] = kept
		}
	}
}
