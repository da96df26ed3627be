package provider

import (
	"context"
	"time"
)

// RetryWithBackoff runs fn until it succeeds, returns a non-retryable error,
// or exhausts maxRetries additional attempts. backoff maps the attempt number
// (starting at 1) to the sleep before the next try.
func RetryWithBackoff(ctx context.Context, maxRetries int, isRetryable func(error) bool, fn func() error, backoff func(attempt int) time.Duration) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt + 1)):
		}
	}
	return lastErr
}

// LinearBackoff returns attempt*delay, the schedule used for stream opens.
func LinearBackoff(delay time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return delay * time.Duration(attempt)
	}
}

// ExponentialBackoff returns delay*2^(attempt-1).
func ExponentialBackoff(delay time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := delay
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	}
}
