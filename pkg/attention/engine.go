package attention

import (
	"context"
	"strings"
	"sync"

	"github.com/hushcore/hushcore/pkg/core"
	"github.com/hushcore/hushcore/pkg/resilience"
)

const contextBufferCap = 10

// Engine is the AttentionEngine (§4.4): classifies a final transcript into
// an AttentionVerdict via keyword match, pattern match, rule-based
// confidence, and an optional LLM fallback, in that order.
//
// Grounded on the teacher's ConversationSession (pkg/orchestrator/types.go)
// for the bounded, mutex-guarded context buffer shape — AddMessage's
// trim-to-MaxMessages logic is the direct ancestor of contextBuffer's
// bound-to-10 rule here.
type Engine struct {
	mu sync.RWMutex

	keywords map[string]struct{}
	userName string

	questionPatterns     []string
	directAddressPattern []string

	uncertaintyThreshold float64
	llmEnabled           bool
	llmClient            LLMClient

	contextBuffer []core.Transcript

	counters  *resilience.FailureCounters
	onWarning func(kind, detail string)
}

func NewEngine(llmClient LLMClient) *Engine {
	return &Engine{
		keywords:             make(map[string]struct{}),
		uncertaintyThreshold: 0.5,
		llmClient:            llmClient,
		counters:             resilience.NewFailureCounters(nil),
	}
}

func (e *Engine) OnWarning(fn func(kind, detail string)) {
	e.onWarning = fn
}

func (e *Engine) AddKeyword(keyword string) {
	k := normalize(keyword)
	if k == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keywords[k] = struct{}{}
}

// SetKeywords replaces the entire keyword set in one atomic snapshot, used
// by PUT /config to re-apply a fully-replaced configuration.
func (e *Engine) SetKeywords(keywords []string) {
	normalized := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		if nk := normalize(k); nk != "" {
			normalized[nk] = struct{}{}
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keywords = normalized
}

// Keywords returns a snapshot of the current keyword set.
func (e *Engine) Keywords() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.keywords))
	for k := range e.keywords {
		out = append(out, k)
	}
	return out
}

// Counters exposes the engine's own LLM-fallback failure counter; cmd/server
// mirrors it into the failure-counter gauge at /metrics. The control API's
// /errors endpoint does not include it.
func (e *Engine) Counters() *resilience.FailureCounters { return e.counters }

func (e *Engine) RemoveKeyword(keyword string) {
	k := normalize(keyword)
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.keywords, k)
}

func (e *Engine) SetUserName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userName = normalize(name)
}

func (e *Engine) AddQuestionPattern(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.questionPatterns = append(e.questionPatterns, pattern)
}

func (e *Engine) AddDirectAddressPattern(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.directAddressPattern = append(e.directAddressPattern, pattern)
}

func (e *Engine) SetUncertaintyThreshold(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uncertaintyThreshold = t
}

func (e *Engine) EnableLLM()  { e.mu.Lock(); e.llmEnabled = true; e.mu.Unlock() }
func (e *Engine) DisableLLM() { e.mu.Lock(); e.llmEnabled = false; e.mu.Unlock() }

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Evaluate classifies one final transcript. Callers must never pass a
// partial transcript — the decision rules assume stable text.
func (e *Engine) Evaluate(ctx context.Context, transcript core.Transcript, sensitivity float64) core.AttentionVerdict {
	text := strings.TrimSpace(transcript.Text)
	lower := strings.ToLower(text)

	e.mu.RLock()
	keywords := make([]string, 0, len(e.keywords))
	for k := range e.keywords {
		keywords = append(keywords, k)
	}
	userName := e.userName
	questionPatterns := append([]string(nil), e.questionPatterns...)
	directPatterns := append([]string(nil), e.directAddressPattern...)
	threshold := e.uncertaintyThreshold
	llmEnabled := e.llmEnabled
	llmClient := e.llmClient
	history := append([]core.Transcript(nil), e.contextBuffer...)
	e.mu.RUnlock()

	defer e.pushContext(transcript)

	if matched := matchKeywords(lower, keywords, userName); len(matched) > 0 {
		return core.AttentionVerdict{
			Kind:       core.VerdictDefinitely,
			Confidence: 0.95,
			Explanation: core.VerdictExplanation{
				MatchedKeywords: matched,
			},
		}
	}

	if matched := matchPatterns(text, lower, userName, questionPatterns, directPatterns); len(matched) > 0 {
		return core.AttentionVerdict{
			Kind:       core.VerdictProbably,
			Confidence: 0.7,
			Explanation: core.VerdictExplanation{
				MatchedPatterns: matched,
			},
		}
	}

	ruleConfidence := ruleBasedConfidence(text, lower)
	ignoreVerdict := core.AttentionVerdict{
		Kind:       core.VerdictIgnore,
		Confidence: 1 - ruleConfidence,
	}

	if ruleConfidence >= threshold || !llmEnabled || llmClient == nil {
		return ignoreVerdict
	}

	verdict, err := e.consultLLM(ctx, text, history, sensitivity)
	if err != nil {
		e.counters.RecordFailure("attention.llm", err)
		if e.onWarning != nil {
			e.onWarning("llm_fallback", err.Error())
		}
		ignoreVerdict.Explanation.LLMConsulted = true
		ignoreVerdict.Explanation.LLMReason = "llm unavailable: " + err.Error()
		return ignoreVerdict
	}
	e.counters.RecordSuccess("attention.llm")
	return verdict
}

func (e *Engine) pushContext(t core.Transcript) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contextBuffer = append(e.contextBuffer, t)
	if len(e.contextBuffer) > contextBufferCap {
		e.contextBuffer = e.contextBuffer[len(e.contextBuffer)-contextBufferCap:]
	}
}
