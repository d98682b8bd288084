package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/hushcore/hushcore/pkg/core"
	"github.com/hushcore/hushcore/pkg/wsproto"
)

// FrameHandler is invoked once per inbound audio frame, in arrival order,
// by the session's own single-consumer pipeline task (§5's single-producer
// single-consumer policy for the per-session audio buffer).
type FrameHandler func(core.AudioFrame)

// ConfigHandler is invoked for an inbound {"type":"config"} frame; the core
// pipeline does not interpret it (§6.1), it is only forwarded as an event.
type ConfigHandler func(clientID string, payload json.RawMessage)

// DisconnectHandler fires exactly once per session termination (P3).
type DisconnectHandler func(clientID string)

// WarningHandler is invoked at most once per overflow burst when a
// session's bounded audio buffer drops a frame (§4.1, §7 BufferOverflow).
type WarningHandler func(kind, detail string)

// Hub is the ConnectionHub (§4.1): it accepts client websocket connections,
// runs each as an independent per-session task set (receive/send/heartbeat/
// pipeline loops), and exposes send/broadcast so upstream components (the
// Dispatcher, the TranscriptionBridge) can deliver messages without ever
// being called back into — the unidirectional wiring spec.md §9 calls for.
//
// Grounded on the teacher's per-stream goroutine layout (ManagedStream: one
// stream per conversation, independent context, non-blocking event channel)
// generalized from one conversational stream per process to one
// ClientSession per accepted connection.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*ClientSession

	onFrame      FrameHandler
	onConfig     ConfigHandler
	onDisconnect DisconnectHandler
	onWarning    WarningHandler

	logger core.Logger
}

func New(logger core.Logger) *Hub {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Hub{
		sessions: make(map[string]*ClientSession),
		logger:   logger,
	}
}

func (h *Hub) OnFrame(fn FrameHandler)           { h.onFrame = fn }
func (h *Hub) OnConfig(fn ConfigHandler)         { h.onConfig = fn }
func (h *Hub) OnDisconnect(fn DisconnectHandler) { h.onDisconnect = fn }
func (h *Hub) OnWarning(fn WarningHandler)       { h.onWarning = fn }

// emitWarning forwards a session-level warning (e.g. audio buffer overflow)
// to the registered observer, same as the bridge's own OnWarning capability.
func (h *Hub) emitWarning(kind, detail string) {
	if h.onWarning != nil {
		h.onWarning(kind, detail)
	}
}

// Accept registers a newly-dialed connection as a ClientSession and starts
// its task set. The caller (an HTTP handler) has already performed
// websocket.Accept. ctx bounds the whole session's lifetime, so it must not
// be the request context: net/http cancels that as soon as the handler
// returns.
func (h *Hub) Accept(ctx context.Context, conn *websocket.Conn) *ClientSession {
	sessCtx, cancel := context.WithCancel(ctx)
	s := newSession(uuid.NewString(), conn, h, sessCtx, cancel)

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	s.start()
	return s
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// SendTo delivers one message to a specific client, returning false if no
// such session is currently registered.
func (h *Hub) SendTo(clientID string, env wsproto.Envelope) bool {
	h.mu.RLock()
	s, ok := h.sessions[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	s.enqueueSend(env)
	return true
}

// Broadcast delivers one message to every currently-connected client.
func (h *Hub) Broadcast(env wsproto.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.enqueueSend(env)
	}
}

// ActiveCount is the current connection count, surfaced by GET /health.
func (h *Hub) ActiveCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Terminate force-closes a specific session; it is a no-op if the session is
// already gone.
func (h *Hub) Terminate(clientID string) {
	h.mu.RLock()
	s, ok := h.sessions[clientID]
	h.mu.RUnlock()
	if ok {
		s.terminate()
	}
}
