package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
)

// DeepgramStreamProvider opens a live streaming session against Deepgram's
// websocket listen endpoint. Grounded on the teacher's LokutorTTS.getConn /
// StreamSynthesize dial-and-read-loop shape (pkg/providers/tts/lokutor.go),
// adapted from a text-to-speech request/response stream to an inbound
// audio-in / transcript-out stream, and from the teacher's batch
// DeepgramSTT.Transcribe (pkg/providers/stt/deepgram.go) for the host and
// auth-header conventions of the real API.
type DeepgramStreamProvider struct {
	apiKey string
	host   string
	model  string
}

func NewDeepgramStreamProvider(apiKey string) *DeepgramStreamProvider {
	return &DeepgramStreamProvider{
		apiKey: apiKey,
		host:   "api.deepgram.com",
		model:  "nova-2",
	}
}

type deepgramSession struct {
	conn *websocket.Conn
}

func (p *DeepgramStreamProvider) Open(ctx context.Context, handlers STTHandlers) (STTSession, error) {
	u := url.URL{
		Scheme:   "wss",
		Host:     p.host,
		Path:     "/v1/listen",
		RawQuery: fmt.Sprintf("model=%s&encoding=linear16&sample_rate=16000&channels=1", p.model),
	}

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: map[string][]string{
			"Authorization": {"Token " + p.apiKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to deepgram: %w", err)
	}

	sess := &deepgramSession{conn: conn}
	go sess.readLoop(ctx, handlers)
	return sess, nil
}

// deepgramEvent is Deepgram's streaming transcript envelope, trimmed to the
// three fields the external STT contract (spec §6.4) depends on.
type deepgramEvent struct {
	IsFinal bool `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramSession) readLoop(ctx context.Context, handlers STTHandlers) {
	for {
		msgType, payload, err := s.conn.Read(ctx)
		if err != nil {
			if handlers.OnClosed != nil {
				handlers.OnClosed(err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var ev deepgramEvent
		if jsonErr := json.Unmarshal(payload, &ev); jsonErr != nil {
			continue
		}
		if len(ev.Channel.Alternatives) == 0 {
			continue
		}
		alt := ev.Channel.Alternatives[0]
		if handlers.OnTranscript != nil {
			handlers.OnTranscript(alt.Transcript, alt.Confidence, ev.IsFinal)
		}
	}
}

func (s *deepgramSession) Send(ctx context.Context, pcm []byte) error {
	return s.conn.Write(ctx, websocket.MessageBinary, pcm)
}

func (s *deepgramSession) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
