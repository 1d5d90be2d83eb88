package llm

import (
	"context"
	"log/slog"
	"time"
)

// WithRetry runs fn up to maxAttempts times with linear backoff: attempt 1
// immediate, attempt 2 after baseDelay, attempt 3 after 2×baseDelay. The
// last error is returned when every attempt fails.
func WithRetry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func(ctx context.Context) (string, error)) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(attempt) * baseDelay
		slog.Warn("llm call failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
