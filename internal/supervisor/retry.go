package supervisor

import (
	"context"
	"time"
)

// withRetry calls fn until it succeeds, waiting delay between attempts. A
// negative maxRetries retries until ctx is done.
func withRetry(ctx context.Context, maxRetries int, delay time.Duration, onErr func(attempt int, err error), fn func(context.Context) error) error {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if maxRetries >= 0 && attempt >= maxRetries {
			return err
		}
		if onErr != nil {
			onErr(attempt, err)
		}
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
