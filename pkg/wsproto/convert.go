package wsproto

import (
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

// TranscriptToPayload converts a core.Transcript to its wire shape, using
// RFC3339 (ISO-8601) with nanosecond precision for the timestamp per spec.md
// §6.1, so no part of the timestamp is lost on the wire.
func TranscriptToPayload(t core.Transcript) TranscriptPayload {
	return TranscriptPayload{
		ID:             t.ID,
		Text:           t.Text,
		Confidence:     t.Confidence,
		Timestamp:      t.Timestamp.UTC().Format(time.RFC3339Nano),
		IsPartial:      t.IsPartial,
		AudioSegmentID: t.AudioSegmentID,
	}
}

// commandWireType maps the internal DIM/RESTORE vocabulary to the wire
// vocabulary named in spec.md §6.1.
func commandWireType(t core.CommandType) string {
	switch t {
	case core.CommandDim:
		return "LOWER_VOLUME"
	case core.CommandRestore:
		return "RESTORE_VOLUME"
	default:
		return string(t)
	}
}

// VolumeCommandToPayload converts a core.VolumeCommand to its wire shape.
func VolumeCommandToPayload(c core.VolumeCommand) VolumeActionPayload {
	return VolumeActionPayload{
		Type:          commandWireType(c.Type),
		Timestamp:     c.Timestamp.UTC().Format(time.RFC3339),
		TriggerReason: string(c.TriggerReason),
		Confidence:    c.Confidence,
	}
}
