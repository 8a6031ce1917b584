package remote

import (
	"context"
	"math/rand"
	"time"

	"github.com/harun/memsync/internal/observability"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds retries of transient remote failures
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns the standard retry budget
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 4,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// delay returns the backoff before retry attempt n (0-based), doubling from
// BaseDelay with up to 25% jitter, capped at MaxDelay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

// withRetries runs call, retrying per policy on retryable failures.
// Contract errors and non-retryable remote failures surface immediately.
func withRetries(ctx context.Context, policy RetryPolicy, operation string, logger zerolog.Logger, call func() error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}

		if IsContractError(lastErr) || !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt >= policy.MaxRetries {
			return lastErr
		}

		wait := policy.delay(attempt)
		logger.Warn().
			Err(lastErr).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Transient remote failure, retrying")
		observability.RecordRemoteRetry(operation)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
