package attention

import (
	"context"
	"errors"
	"testing"

	"github.com/hushcore/hushcore/pkg/core"
)

func transcript(text string) core.Transcript {
	return core.Transcript{ID: "t1", Text: text, IsPartial: false}
}

func TestVerdictTableKeyword(t *testing.T) {
	e := NewEngine(nil)
	e.AddKeyword("hey")

	v := e.Evaluate(context.Background(), transcript("hey there"), 0.7)
	if v.Kind != core.VerdictDefinitely {
		t.Fatalf("expected DEFINITELY_TO_ME, got %s", v.Kind)
	}
	if v.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %f", v.Confidence)
	}
}

func TestVerdictTablePatternOnly(t *testing.T) {
	e := NewEngine(nil)
	v := e.Evaluate(context.Background(), transcript("can you help?"), 0.7)
	if v.Kind != core.VerdictProbably {
		t.Fatalf("expected PROBABLY_TO_ME, got %s", v.Kind)
	}
	if v.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %f", v.Confidence)
	}
}

func TestVerdictTableNoIndicatorsIgnoredWithoutLLM(t *testing.T) {
	e := NewEngine(nil)
	v := e.Evaluate(context.Background(), transcript("the weather is nice today"), 0.7)
	if v.Kind != core.VerdictIgnore {
		t.Fatalf("expected IGNORE, got %s", v.Kind)
	}
}

type fakeLLM struct {
	directed   bool
	confidence float64
	reason     string
	err        error
	calls      int
}

func (f *fakeLLM) Query(ctx context.Context, prompt string) (bool, float64, string, error) {
	f.calls++
	return f.directed, f.confidence, f.reason, f.err
}

func TestLLMFallbackInvokedExactlyOnce(t *testing.T) {
	llm := &fakeLLM{directed: true, confidence: 0.9, reason: "addressed the listener"}
	e := NewEngine(llm)
	e.EnableLLM()
	e.SetUncertaintyThreshold(0.9) // force rule confidence below threshold

	v := e.Evaluate(context.Background(), transcript("nice day"), 1.0)
	if llm.calls != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", llm.calls)
	}
	if v.Kind != core.VerdictDefinitely {
		t.Fatalf("expected DEFINITELY_TO_ME from adjusted=0.9, got %s", v.Kind)
	}
	if !v.Explanation.LLMConsulted {
		t.Fatal("expected explanation to record LLM consultation")
	}
}

func TestLLMFailureSafety(t *testing.T) {
	llm := &fakeLLM{err: errors.New("timeout")}
	e := NewEngine(llm)
	e.EnableLLM()
	e.SetUncertaintyThreshold(0.9)

	var warned string
	e.OnWarning(func(kind, detail string) { warned = kind })

	v := e.Evaluate(context.Background(), transcript("nice day"), 1.0)
	if v.Kind != core.VerdictIgnore {
		t.Fatalf("expected IGNORE fallback on LLM error, got %s", v.Kind)
	}
	if warned != "llm_fallback" {
		t.Fatalf("expected llm_fallback warning, got %q", warned)
	}
}

func TestEachEvaluationPushesContextOnce(t *testing.T) {
	e := NewEngine(nil)
	e.Evaluate(context.Background(), transcript("one"), 0.7)
	e.Evaluate(context.Background(), transcript("two"), 0.7)
	if len(e.contextBuffer) != 2 {
		t.Fatalf("expected context buffer length 2, got %d", len(e.contextBuffer))
	}
}

func TestContextBufferBoundedToTen(t *testing.T) {
	e := NewEngine(nil)
	for i := 0; i < 15; i++ {
		e.Evaluate(context.Background(), transcript("filler text"), 0.7)
	}
	if len(e.contextBuffer) != contextBufferCap {
		t.Fatalf("expected context buffer capped at %d, got %d", contextBufferCap, len(e.contextBuffer))
	}
}

func TestParseDirectedVerdictRegexFallback(t *testing.T) {
	v, err := parseDirectedVerdict("I think directed=true and confidence=0.82 because reason=\"addressed\"")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Directed || v.Confidence != 0.82 {
		t.Fatalf("unexpected parsed verdict: %+v", v)
	}
}

func TestParseDirectedVerdictUnparseable(t *testing.T) {
	if _, err := parseDirectedVerdict("not json at all"); err == nil {
		t.Fatal("expected parse error for unparseable response")
	}
}
