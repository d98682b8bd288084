package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

func TestCircuitBreakerTripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("stt", BreakerConfig{FailureThreshold: 3, ResetTimeout: 20 * time.Millisecond, HalfOpenProbeCount: 2}, nil)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED before threshold, got %s", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN at threshold, got %s", cb.State())
	}
}

func TestCircuitBreakerRejectsWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker("llm", BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour, HalfOpenProbeCount: 1}, nil)
	cb.RecordFailure()

	err := cb.Run(func() error { return nil })
	if !errors.Is(err, core.ErrCircuitOpen) {
		t.Fatalf("expected circuit-open error, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker("stt", BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond, HalfOpenProbeCount: 2}, nil)
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN")
	}

	time.Sleep(15 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN after reset timeout, got %s", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected still HALF_OPEN after 1/2 probes, got %s", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED after halfOpenProbeCount successes, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("stt", BreakerConfig{FailureThreshold: 1, ResetTimeout: 5 * time.Millisecond, HalfOpenProbeCount: 3}, nil)
	cb.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN")
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after half-open failure, got %s", cb.State())
	}
}
