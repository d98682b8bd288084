package resilience

import (
	"context"
	"time"
)

// WithRetry runs op with exponential backoff (baseDelay, baseDelay*2, ...),
// recording each attempt's failure on counters under name. It makes one
// initial attempt plus up to maxRetries retries, then returns the last error.
func WithRetry(ctx context.Context, counters *FailureCounters, name string, maxRetries int, baseDelay time.Duration, op func(ctx context.Context) error) error {
	var lastErr error
	delay := baseDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if counters != nil {
				counters.RecordSuccess(name)
			}
			return nil
		}
		if counters != nil {
			counters.RecordFailure(name, lastErr)
		}
	}

	return lastErr
}

// WithFallback runs primary; on any failure it records the failure on
// counters under name and runs fallback instead. Fallback errors propagate
// unwrapped.
func WithFallback(counters *FailureCounters, name string, primary func() error, fallback func() error) error {
	if err := primary(); err != nil {
		if counters != nil {
			counters.RecordFailure(name, err)
		}
		return fallback()
	}
	if counters != nil {
		counters.RecordSuccess(name)
	}
	return nil
}
