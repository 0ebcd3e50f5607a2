package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Do runs fn under the policy, sleeping between attempts. retryable decides
// whether a failure is worth another attempt; a nil predicate retries every
// error. The context is honored both between attempts and for the final
// verdict, so a canceled stage deadline stops the loop immediately.
func Do(ctx context.Context, p Policy, op string, retryable func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying operation", slog.String("operation", op), slog.Int("attempt", attempt))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == p.MaxRetries {
			break
		}
		if err := sleep(ctx, p.Delay(attempt+1)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d retries: %w", op, p.MaxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
