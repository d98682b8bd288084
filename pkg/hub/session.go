package hub

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hushcore/hushcore/pkg/core"
	"github.com/hushcore/hushcore/pkg/wsproto"
)

const (
	audioBufferCapacity = 128
	sendQueueCapacity   = 32
	heartbeatInterval   = 10 * time.Second
	heartbeatTimeout    = 30 * time.Second
	livenessCheckPeriod = 5 * time.Second

	// overflowWarningCooldown debounces the buffer-overflow warning to once
	// per burst rather than once per dropped frame (§4.1, §7 BufferOverflow).
	overflowWarningCooldown = 2 * time.Second
)

// ClientSession is one accepted connection's task set: a receive loop, a
// send loop, a heartbeat/liveness loop, and a single-consumer pipeline loop
// draining its bounded, drop-oldest audio buffer.
type ClientSession struct {
	id   string
	conn *websocket.Conn
	hub  *Hub

	ctx    context.Context
	cancel context.CancelFunc

	sendQueue   chan wsproto.Envelope
	audioBuffer chan core.AudioFrame

	mu             sync.Mutex
	lastActivity   time.Time
	lastOverflowAt time.Time

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id string, conn *websocket.Conn, h *Hub, ctx context.Context, cancel context.CancelFunc) *ClientSession {
	return &ClientSession{
		id:           id,
		conn:         conn,
		hub:          h,
		ctx:          ctx,
		cancel:       cancel,
		sendQueue:    make(chan wsproto.Envelope, sendQueueCapacity),
		audioBuffer:  make(chan core.AudioFrame, audioBufferCapacity),
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}
}

func (s *ClientSession) ID() string { return s.id }

// start launches the session's task set and queues the connect-ack. The
// send loop picks it up immediately, comfortably inside the 500ms deadline
// P1 requires absent extreme contention.
func (s *ClientSession) start() {
	go s.sendLoop()
	go s.receiveLoop()
	go s.heartbeatLoop()
	go s.pipelineLoop()
	s.enqueueSend(wsproto.NewAck(s.id))
}

// Done is closed once the session has fully terminated and been removed
// from the hub's registry (P3).
func (s *ClientSession) Done() <-chan struct{} { return s.done }

func (s *ClientSession) touchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *ClientSession) idleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// receiveLoop processes frames in arrival order (P2); it is the audio
// buffer's single producer.
func (s *ClientSession) receiveLoop() {
	defer s.terminate()
	for {
		msgType, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return
		}
		s.touchActivity()

		switch msgType {
		case websocket.MessageBinary:
			s.pushAudio(core.AudioFrame{
				Samples:   decodePCM16(data),
				ArrivedAt: time.Now(),
				ClientID:  s.id,
			})
		case websocket.MessageText:
			msg, perr := wsproto.ParseClient(data)
			if perr != nil {
				s.hub.logger.Warn("dropping malformed or unknown client message", "clientId", s.id, "error", perr)
				continue
			}
			switch msg.Type {
			case wsproto.TypeConfig:
				if s.hub.onConfig != nil {
					s.hub.onConfig(s.id, msg.Config)
				}
			case wsproto.TypeHeartbeat:
				// touchActivity above already recorded the liveness signal.
			}
		}
	}
}

func decodePCM16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(data[2*i]) | int16(data[2*i+1])<<8
	}
	return out
}

// pushAudio is the bounded drop-oldest FIFO producer side: when full, the
// oldest frame is discarded to make room for the newest one. Overflow emits
// a warning, debounced to once per burst (§4.1, §7 BufferOverflow).
func (s *ClientSession) pushAudio(frame core.AudioFrame) {
	select {
	case s.audioBuffer <- frame:
		return
	default:
	}
	select {
	case <-s.audioBuffer:
	default:
	}
	select {
	case s.audioBuffer <- frame:
	default:
	}
	s.noteOverflow()
}

// noteOverflow reports a dropped frame to the hub's warning observer at most
// once per overflowWarningCooldown, so a sustained burst of drops produces
// one warning rather than one per frame.
func (s *ClientSession) noteOverflow() {
	s.mu.Lock()
	now := time.Now()
	fire := now.Sub(s.lastOverflowAt) >= overflowWarningCooldown
	if fire {
		s.lastOverflowAt = now
	}
	s.mu.Unlock()

	if fire {
		s.hub.emitWarning("buffer_overflow", "audio buffer capacity exceeded, oldest frame dropped")
	}
}

// pipelineLoop is the audio buffer's single consumer, forwarding frames to
// the hub's registered FrameHandler in arrival order.
func (s *ClientSession) pipelineLoop() {
	for {
		select {
		case frame := <-s.audioBuffer:
			if s.hub.onFrame != nil {
				s.hub.onFrame(frame)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// sendLoop is this client's single writer; send order is preserved because
// there is exactly one consumer draining sendQueue.
func (s *ClientSession) sendLoop() {
	for {
		select {
		case env := <-s.sendQueue:
			if err := wsjson.Write(s.ctx, s.conn, env); err != nil {
				s.terminate()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// enqueueSend is a non-blocking, drop-oldest send — a slow reader degrades
// to missing older status messages rather than stalling the whole hub.
func (s *ClientSession) enqueueSend(env wsproto.Envelope) {
	select {
	case s.sendQueue <- env:
		return
	default:
	}
	select {
	case <-s.sendQueue:
	default:
	}
	select {
	case s.sendQueue <- env:
	default:
	}
}

// heartbeatLoop sends periodic heartbeats and terminates the session if the
// peer has been silent for longer than heartbeatTimeout (P4).
func (s *ClientSession) heartbeatLoop() {
	ticker := time.NewTicker(livenessCheckPeriod)
	defer ticker.Stop()

	lastSent := time.Now()
	for {
		select {
		case <-ticker.C:
			if s.idleSince() > heartbeatTimeout {
				s.terminate()
				return
			}
			if time.Since(lastSent) >= heartbeatInterval {
				s.enqueueSend(wsproto.NewHeartbeat())
				lastSent = time.Now()
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// terminate is the session's idempotent shutdown path: cancel propagates to
// every loop, the socket is closed, the hub registry entry is removed, and
// the disconnect handler fires exactly once (P3).
func (s *ClientSession) terminate() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "")
		s.hub.remove(s.id)
		close(s.done)
		if s.hub.onDisconnect != nil {
			s.hub.onDisconnect(s.id)
		}
	})
}
