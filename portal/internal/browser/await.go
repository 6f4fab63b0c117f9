package browser

import (
	"context"
	"time"
)

// Await polls cond every interval until it returns true or timeout passes.
// The condition is checked once immediately. Await never blocks past
// timeout and returns false when ctx is cancelled.
func Await(ctx context.Context, interval, timeout time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond()
		case <-ticker.C:
			if cond() {
				return true
			}
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
