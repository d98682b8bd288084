package attention

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

// LLMClient is the AttentionEngine's fallback consultation seam (§4.4 step
// 4, §6.5). Implementations must honor ctx's deadline.
type LLMClient interface {
	Query(ctx context.Context, prompt string) (directed bool, confidence float64, reason string, err error)
}

// OllamaClient speaks the Ollama generate API shape named in spec.md §6.5:
// request {model, prompt, stream:false, options:{temperature, num_predict}},
// response {response: string} where the string itself must contain a JSON
// object {directed, confidence, reason}.
//
// Grounded on the teacher's pkg/providers/llm/openai.go HTTP-call shape
// (context-aware request, bearer/no-auth header, JSON decode into an
// anonymous result struct) — adapted from OpenAI's chat-completions
// envelope to Ollama's single-string generate envelope, since no example
// repo ships a literal Ollama API client.
type OllamaClient struct {
	endpoint string
	model    string
	timeout  time.Duration
	client   *http.Client
}

func NewOllamaClient(endpoint, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OllamaClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		timeout:  timeout,
		client:   &http.Client{},
	}
}

type ollamaRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// directedVerdict is the {directed, confidence, reason} object the prompt
// asks the model to embed in its response string.
type directedVerdict struct {
	Directed   bool    `json:"directed"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (c *OllamaClient) Query(ctx context.Context, prompt string) (bool, float64, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := ollamaRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": 0.1,
			"num_predict": 100,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return false, 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return false, 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, 0, "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, 0, "", fmt.Errorf("ollama error (status %d)", resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, 0, "", err
	}

	verdict, err := parseDirectedVerdict(out.Response)
	if err != nil {
		return false, 0, "", err
	}
	return verdict.Directed, verdict.Confidence, verdict.Reason, nil
}

var jsonObjectPattern = regexp.MustCompile(`\{[^{}]*\}`)

var directedFieldPattern = regexp.MustCompile(`"?directed"?\s*[:=]\s*(true|false)`)
var confidenceFieldPattern = regexp.MustCompile(`"?confidence"?\s*[:=]\s*([0-9]*\.?[0-9]+)`)
var reasonFieldPattern = regexp.MustCompile(`"?reason"?\s*[:=]\s*"([^"]*)"`)

// parseDirectedVerdict extracts {directed, confidence, reason} from the
// model's response text. A strict JSON object is tried first; a permissive
// regex extraction is the fallback for models that wrap the object in prose
// or use unquoted keys. Unparseable responses yield the documented error.
func parseDirectedVerdict(response string) (directedVerdict, error) {
	if m := jsonObjectPattern.FindString(response); m != "" {
		var v directedVerdict
		if err := json.Unmarshal([]byte(m), &v); err == nil {
			return v, nil
		}
	}

	directedMatch := directedFieldPattern.FindStringSubmatch(response)
	confidenceMatch := confidenceFieldPattern.FindStringSubmatch(response)
	if directedMatch == nil || confidenceMatch == nil {
		return directedVerdict{}, fmt.Errorf("could not parse")
	}

	confidence, err := strconv.ParseFloat(confidenceMatch[1], 64)
	if err != nil {
		return directedVerdict{}, fmt.Errorf("could not parse")
	}

	v := directedVerdict{
		Directed:   directedMatch[1] == "true",
		Confidence: confidence,
	}
	if reasonMatch := reasonFieldPattern.FindStringSubmatch(response); reasonMatch != nil {
		v.Reason = reasonMatch[1]
	}
	return v, nil
}

// consultLLM builds the sliding-window prompt (current text plus up to the
// last 5 final transcripts) and maps the adjusted confidence to a verdict
// kind per spec.md §4.4 step 4.
func (e *Engine) consultLLM(ctx context.Context, text string, history []core.Transcript, sensitivity float64) (core.AttentionVerdict, error) {
	prompt := buildPrompt(text, history)

	_, confidence, reason, err := e.llmClient.Query(ctx, prompt)
	if err != nil {
		return core.AttentionVerdict{}, err
	}

	// Per spec.md §6.5/§4.4 step 4, the mapping is driven by the adjusted
	// confidence alone; `directed` is part of the model's wire contract but
	// not a separate gate on top of the confidence thresholds.
	adjusted := confidence * sensitivity
	var kind core.VerdictKind
	switch {
	case adjusted >= 0.8:
		kind = core.VerdictDefinitely
	case adjusted >= 0.5:
		kind = core.VerdictProbably
	default:
		kind = core.VerdictIgnore
	}

	return core.AttentionVerdict{
		Kind:       kind,
		Confidence: adjusted,
		Explanation: core.VerdictExplanation{
			LLMConsulted: true,
			LLMReason:    reason,
		},
	}, nil
}

func buildPrompt(text string, history []core.Transcript) string {
	var b strings.Builder
	b.WriteString("Determine whether the following utterance is directed at the listener.\n")
	if len(history) > 0 {
		b.WriteString("Recent context:\n")
		start := 0
		if len(history) > 5 {
			start = len(history) - 5
		}
		for _, h := range history[start:] {
			b.WriteString("- ")
			b.WriteString(h.Text)
			b.WriteString("\n")
		}
	}
	b.WriteString("Utterance: \"")
	b.WriteString(text)
	b.WriteString("\"\n")
	b.WriteString(`Respond with a JSON object {"directed": bool, "confidence": 0..1, "reason": string}.`)
	return b.String()
}
