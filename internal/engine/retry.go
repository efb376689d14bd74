package engine

import (
	"context"
	"time"
)

// RetryConfig controls the Execution Engine's per-iteration error
// retry policy, grounded on steveyegge-vc/internal/ai/supervisor.go's
// RetryConfig/retryWithBackoff (same field names and defaults; that
// code retries AI API calls, this retries whole iterations).
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig mirrors spec.md §4.5: up to 3 retries, base 2s,
// cap 60s exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// sleepBackoff waits out one retry interval, honoring ctx cancellation,
// and returns the next backoff duration to use.
func sleepBackoff(ctx context.Context, backoff time.Duration, cfg RetryConfig) (time.Duration, error) {
	select {
	case <-time.After(backoff):
		next := time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if next > cfg.MaxBackoff {
			next = cfg.MaxBackoff
		}
		return next, nil
	case <-ctx.Done():
		return backoff, ctx.Err()
	}
}
