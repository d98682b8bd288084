package corelog

import "testing"

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	l, err := New("not-a-level")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l == nil {
		t.Fatal("expected a non-nil logger")
	}
	l.Info("hello", "key", "value")
}

func TestNewDevelopmentNeverPanics(t *testing.T) {
	l := NewDevelopment()
	l.Debug("debug")
	l.Warn("warn")
	l.Error("error")
}
