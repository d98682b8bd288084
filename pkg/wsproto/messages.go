package wsproto

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tags every JSON frame exchanged over the client channel
// (§6.1). Implementations must parse strictly: an unrecognized tag is
// logged and dropped rather than guessed at, per spec.md §9's note on
// replacing the source's loosely-typed JSON with a parsed tagged variant.
type MessageType string

const (
	TypeHeartbeat    MessageType = "heartbeat"
	TypeConfig       MessageType = "config"
	TypeAck          MessageType = "ack"
	TypeTranscript   MessageType = "transcript"
	TypeVolumeAction MessageType = "volume_action"
)

// Envelope is the minimal shape every JSON message shares: {type, timestamp}
// plus an opaque payload decoded according to Type.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	ClientID  string          `json:"clientId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ClientMessage is the strictly-typed result of parsing one inbound JSON
// frame. Config is populated only when Type is TypeConfig; a heartbeat
// carries no payload.
type ClientMessage struct {
	Type      MessageType
	Timestamp time.Time
	Config    json.RawMessage // present iff Type == TypeConfig
}

// ErrUnknownType marks a frame whose tag this protocol version does not
// recognize. Callers log and drop rather than treat it as fatal.
var ErrUnknownType = fmt.Errorf("unknown message type")

// ParseClient strictly decodes one inbound text frame.
func ParseClient(raw []byte) (ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientMessage{}, err
	}

	switch env.Type {
	case TypeHeartbeat:
		return ClientMessage{Type: TypeHeartbeat, Timestamp: env.Timestamp}, nil
	case TypeConfig:
		return ClientMessage{Type: TypeConfig, Timestamp: env.Timestamp, Config: env.Payload}, nil
	default:
		return ClientMessage{}, ErrUnknownType
	}
}

// AckPayload is the connect-acknowledgement payload (§6.1, P1).
type AckPayload struct {
	ClientID string `json:"clientId"`
	Status   string `json:"status"`
}

// TranscriptPayload mirrors core.Transcript's wire shape.
type TranscriptPayload struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	Timestamp      string  `json:"timestamp"`
	IsPartial      bool    `json:"isPartial"`
	AudioSegmentID string  `json:"audioSegmentId"`
}

// VolumeActionPayload mirrors core.VolumeCommand's wire shape. Type here is
// the wire vocabulary ("LOWER_VOLUME"/"RESTORE_VOLUME"), distinct from the
// internal core.CommandType ("DIM"/"RESTORE").
type VolumeActionPayload struct {
	Type          string  `json:"type"`
	Timestamp     string  `json:"timestamp"`
	TriggerReason string  `json:"triggerReason"`
	Confidence    float64 `json:"confidence"`
}

func NewAck(clientID string) Envelope {
	return newEnvelope(TypeAck, AckPayload{ClientID: clientID, Status: "connected"})
}

func NewHeartbeat() Envelope {
	return Envelope{Type: TypeHeartbeat, Timestamp: time.Now()}
}

func NewTranscript(p TranscriptPayload) Envelope {
	return newEnvelope(TypeTranscript, p)
}

func NewVolumeAction(p VolumeActionPayload, clientID string) Envelope {
	e := newEnvelope(TypeVolumeAction, p)
	e.ClientID = clientID
	return e
}

func newEnvelope(t MessageType, payload interface{}) Envelope {
	raw, _ := json.Marshal(payload)
	return Envelope{Type: t, Timestamp: time.Now(), Payload: raw}
}
