package util

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, giving up after maxAttempts failures and
// returning the last error. Attempts are spaced by a backoff that starts at
// baseDelay and doubles after every failure. A cancelled context aborts the
// backoff wait and returns the context's error instead.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	backoff := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}
