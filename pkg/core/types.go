package core

import "time"

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// AudioFrame is one inbound chunk of mono 16-bit LE PCM at 16kHz. Immutable
// after entry into the pipeline.
type AudioFrame struct {
	Samples   []int16
	ArrivedAt time.Time
	ClientID  string
}

func (f AudioFrame) Size() int {
	return len(f.Samples)
}

// VerdictKind is the AttentionEngine's classification of a final transcript.
type VerdictKind string

const (
	VerdictIgnore       VerdictKind = "IGNORE"
	VerdictProbably     VerdictKind = "PROBABLY_TO_ME"
	VerdictDefinitely   VerdictKind = "DEFINITELY_TO_ME"
)

// VerdictExplanation records why the engine reached a verdict.
type VerdictExplanation struct {
	MatchedKeywords []string
	MatchedPatterns []string
	LLMConsulted    bool
	LLMReason       string
}

type AttentionVerdict struct {
	Kind        VerdictKind
	Confidence  float64
	Explanation VerdictExplanation
}

// CommandType is the listener-side action a VolumeCommand requests.
type CommandType string

const (
	CommandDim     CommandType = "DIM"
	CommandRestore CommandType = "RESTORE"
)

type VolumeCommand struct {
	Type          CommandType
	Timestamp     time.Time
	TriggerReason VerdictKind
	Confidence    float64
}

// Transcript is one unit of STT output. Partial transcripts are forwarded to
// clients but never reach the AttentionEngine; only finals do.
type Transcript struct {
	ID             string
	Text           string
	Confidence     float64
	Timestamp      time.Time
	IsPartial      bool
	AudioSegmentID string
}

// MatchResult is the VoiceFilter's verdict on a single audio frame.
type MatchResult struct {
	IsMatch    bool
	Confidence float64
	ProfileID  string
}
