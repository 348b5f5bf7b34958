package client

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ajitpratap0/tap-nomad/pkg/metrics"
	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

// RetryPolicy defines retry behavior for source API requests.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// ExecuteWithCondition runs fn, retrying with exponential backoff while
// shouldRetry accepts the failure. A rejection propagates the error as-is;
// exhausting all attempts wraps the last error as source unavailable.
func (rp *RetryPolicy) ExecuteWithCondition(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == rp.MaxAttempts-1 {
			break
		}

		metrics.RequestRetries.Inc()
		delay := rp.calculateDelay(attempt)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return taperrors.Wrap(ctx.Err(), taperrors.ErrorTypeCancelled, "retry cancelled")
		case <-timer.C:
		}
	}

	return taperrors.Wrap(lastErr, taperrors.ErrorTypeSourceUnavailable, "retries exhausted").
		WithDetail("attempts", rp.MaxAttempts)
}

// calculateDelay calculates the backoff delay for a given attempt.
func (rp *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))

	if delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	// Jitter keeps concurrent taps from thundering against a recovering API
	if rp.RandomizeFactor > 0 {
		delta := delay * rp.RandomizeFactor
		minDelay := delay - delta
		maxDelay := delay + delta
		delay = minDelay + (rand.Float64() * (maxDelay - minDelay))
	}

	return time.Duration(delay)
}

// GetDelay returns the delay for a specific attempt (for testing/preview).
func (rp *RetryPolicy) GetDelay(attempt int) time.Duration {
	return rp.calculateDelay(attempt)
}
