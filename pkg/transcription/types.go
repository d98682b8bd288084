package transcription

import "context"

// STTSession is one open streaming connection to an external speech-to-text
// backend. Send forwards raw PCM; Close releases the underlying transport.
type STTSession interface {
	Send(ctx context.Context, pcm []byte) error
	Close() error
}

// STTHandlers are registered with a provider before a session is opened, so
// no transcript can arrive before the bridge is ready to receive it.
type STTHandlers struct {
	// OnTranscript fires for every event the backend produces, carrying the
	// external contract's three fields (§6.4): transcript text, confidence,
	// and whether the result is final.
	OnTranscript func(text string, confidence float64, isFinal bool)

	// OnClosed fires when the session ends, whether cleanly or due to a
	// transport error. err is the error that ended the session's read loop;
	// DeepgramStreamProvider passes it even when the bridge itself closed the
	// session.
	OnClosed func(err error)
}

// STTProvider opens streaming sessions against an external STT backend. The
// handlers argument must be wired to the session before any audio is
// forwarded, which is what this interface shape guarantees: Open cannot
// return a session without also having received the callbacks.
type STTProvider interface {
	Open(ctx context.Context, handlers STTHandlers) (STTSession, error)
}
