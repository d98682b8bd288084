package wsproto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

func TestParseClientHeartbeat(t *testing.T) {
	raw := []byte(`{"type":"heartbeat","timestamp":"2026-01-01T00:00:00Z"}`)
	msg, err := ParseClient(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeHeartbeat {
		t.Fatalf("expected heartbeat, got %s", msg.Type)
	}
}

func TestParseClientConfigCarriesPayload(t *testing.T) {
	raw := []byte(`{"type":"config","payload":{"volume":0.5},"timestamp":"2026-01-01T00:00:00Z"}`)
	msg, err := ParseClient(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeConfig || len(msg.Config) == 0 {
		t.Fatalf("expected config payload to survive parsing, got %+v", msg)
	}
}

func TestParseClientUnknownTypeIsDropped(t *testing.T) {
	raw := []byte(`{"type":"self_destruct","timestamp":"2026-01-01T00:00:00Z"}`)
	_, err := ParseClient(raw)
	if err != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	original := core.Transcript{
		ID:             "t-1",
		Text:           "hello",
		Confidence:     0.87,
		Timestamp:      time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		IsPartial:      false,
		AudioSegmentID: "seg-1",
	}

	payload := TranscriptToPayload(original)
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded TranscriptPayload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if decoded != payload {
		t.Fatalf("expected round-trip equality, got %+v vs %+v", decoded, payload)
	}
}

func TestVolumeCommandWireVocabulary(t *testing.T) {
	p := VolumeCommandToPayload(core.VolumeCommand{
		Type:          core.CommandDim,
		Timestamp:     time.Now(),
		TriggerReason: core.VerdictDefinitely,
		Confidence:    0.95,
	})
	if p.Type != "LOWER_VOLUME" {
		t.Fatalf("expected LOWER_VOLUME, got %s", p.Type)
	}
}
