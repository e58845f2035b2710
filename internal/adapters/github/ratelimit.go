package github

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// RateLimiter allows at most max requests in any sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	window   time.Duration
	max      int
	requests []time.Time
}

// NewRateLimiter returns a limiter of max requests per window. max <= 0 disables limiting.
func NewRateLimiter(max int, window time.Duration, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{clock: clk, window: window, max: max, requests: make([]time.Time, 0, max)}
}

// Allow records a request and returns true if the window has room.
func (r *RateLimiter) Allow() bool {
	ok, _ := r.reserve()
	return ok
}

// reserve returns false and the time until the oldest request leaves the window when full.
func (r *RateLimiter) reserve() (bool, time.Duration) {
	if r == nil || r.max <= 0 {
		return true, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	cutoff := now.Add(-r.window)
	kept := r.requests[:0]
	for _, t := range r.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.requests = kept

	if len(r.requests) < r.max {
		r.requests = append(r.requests, now)
		return true, 0
	}
	return false, r.requests[0].Sub(cutoff)
}

// Wait blocks until a request is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, wait := r.reserve()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(wait):
		}
	}
}
