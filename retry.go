package almanac

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// retryCall calls fn up to maxAttempts times, sleeping between transient
// failures with exponential backoff plus jitter. Permanent errors return
// immediately; a transient error that survives all attempts is returned
// as-is for the caller to record.
func retryCall[T any](ctx context.Context, maxAttempts int, base time.Duration, op string, logger *slog.Logger, fn func() (T, error)) (T, error) {
	var zero T
	var last error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil || !IsTransient(err) {
			return result, err
		}
		last = err
		logger.Warn("retrying transient error",
			"op", op,
			"attempt", i+1,
			"max_attempts", maxAttempts,
			"error", err)
		if i < maxAttempts-1 {
			timer := time.NewTimer(retryBackoff(base, i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	logger.Error("all retry attempts exhausted",
		"op", op,
		"attempts", maxAttempts,
		"error", last)
	return zero, last
}

// retryBackoff returns the delay for retry i (0-indexed).
// Exponential: base * 2^i, plus up to 50% random jitter.
func retryBackoff(base time.Duration, i int) time.Duration {
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp + jitter
}
