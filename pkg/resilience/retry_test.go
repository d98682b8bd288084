package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryBackoffTiming(t *testing.T) {
	fc := NewFailureCounters(nil)
	var attempts []time.Time
	start := time.Now()

	err := WithRetry(context.Background(), fc, "stt.segment", 2, 10*time.Millisecond, func(ctx context.Context) error {
		attempts = append(attempts, time.Now())
		return errors.New("still failing")
	})

	if err == nil {
		t.Fatal("expected final error after exhausting retries")
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", len(attempts))
	}
	if attempts[1].Sub(start) < 10*time.Millisecond {
		t.Fatalf("second attempt fired before base delay elapsed")
	}
	if attempts[2].Sub(attempts[1]) < 20*time.Millisecond {
		t.Fatalf("third attempt did not honor doubled backoff")
	}
}

func TestWithRetrySucceedsAndResetsCounter(t *testing.T) {
	fc := NewFailureCounters(nil)
	calls := 0
	err := WithRetry(context.Background(), fc, "stt.segment", 5, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if fc.Count("stt.segment") != 0 {
		t.Fatalf("expected counter reset on success")
	}
}

func TestWithFallbackRunsFallbackOnPrimaryFailure(t *testing.T) {
	fc := NewFailureCounters(nil)
	fallbackCalled := false
	err := WithFallback(fc, "attention.llm", func() error {
		return errors.New("llm unreachable")
	}, func() error {
		fallbackCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fallbackCalled {
		t.Fatal("expected fallback to run")
	}
	if fc.Count("attention.llm") != 1 {
		t.Fatalf("expected primary failure recorded")
	}
}
