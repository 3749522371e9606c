package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls evenly so that no more than a fixed number
// proceed per minute. The market data API enforces a per-minute request
// quota; even pacing stays under it without bursting.
type RateLimiter struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewRateLimiter returns a limiter that admits perMinute calls per minute.
// A perMinute of zero or less disables pacing entirely.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// Wait blocks until the caller's turn comes up or ctx is cancelled. The
// first call always proceeds immediately.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.interval == 0 {
		return nil
	}

	rl.mu.Lock()
	now := time.Now()
	if rl.next.Before(now) {
		rl.next = now
	}
	wait := rl.next.Sub(now)
	rl.next = rl.next.Add(rl.interval)
	rl.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
