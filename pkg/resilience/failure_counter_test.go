package resilience

import (
	"errors"
	"testing"
)

func TestFailureCountersWarnsOnceAtThreshold(t *testing.T) {
	fc := NewFailureCounters(nil)
	var warnings []Warning
	fc.OnWarning(func(w Warning) { warnings = append(warnings, w) })

	for i := 0; i < 5; i++ {
		fc.RecordFailure("stt.send", errors.New("boom"))
	}

	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %d", len(warnings))
	}
	if warnings[0].Operation != "stt.send" || warnings[0].Count != 3 {
		t.Fatalf("unexpected warning payload: %+v", warnings[0])
	}
}

func TestFailureCountersResetRearmsWarning(t *testing.T) {
	fc := NewFailureCounters(nil)
	var warnings int
	fc.OnWarning(func(w Warning) { warnings++ })

	for i := 0; i < 3; i++ {
		fc.RecordFailure("llm.complete", errors.New("x"))
	}
	fc.RecordSuccess("llm.complete")
	for i := 0; i < 3; i++ {
		fc.RecordFailure("llm.complete", errors.New("x"))
	}

	if warnings != 2 {
		t.Fatalf("expected warning to rearm after reset, got %d warnings", warnings)
	}
}
