package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hushcore/hushcore/pkg/core"
	"github.com/hushcore/hushcore/pkg/wsproto"
)

func newTestServer(t *testing.T, h *Hub) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		h.Accept(context.Background(), conn)
	}))
	wsURL := "ws" + srv.URL[len("http"):]
	return srv, wsURL
}

func TestHubDeliversAckWithinDeadline(t *testing.T) {
	h := New(nil)
	srv, wsURL := newTestServer(t, h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	start := time.Now()
	var env wsproto.Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	elapsed := time.Since(start)

	if env.Type != wsproto.TypeAck {
		t.Fatalf("expected ack, got %s", env.Type)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("ack delivered after %v, exceeds 500ms deadline", elapsed)
	}
}

func TestHubFrameArrivalOrderAndCount(t *testing.T) {
	h := New(nil)

	srv, wsURL := newTestServer(t, h)
	defer srv.Close()

	var received []int
	var recvMu sync.Mutex
	done := make(chan struct{})
	h.OnFrame(func(f core.AudioFrame) {
		recvMu.Lock()
		received = append(received, len(f.Samples))
		if len(received) == 3 {
			close(done)
		}
		recvMu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ack wsproto.Envelope
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		t.Fatalf("ack read failed: %v", err)
	}

	frames := [][]byte{
		make([]byte, 4),
		make([]byte, 8),
		make([]byte, 2),
	}
	for _, f := range frames {
		if err := conn.Write(ctx, websocket.MessageBinary, f); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frames")
	}

	recvMu.Lock()
	defer recvMu.Unlock()
	expected := []int{2, 4, 1}
	if len(received) != len(expected) {
		t.Fatalf("expected %d frames, got %d", len(expected), len(received))
	}
	for i := range expected {
		if received[i] != expected[i] {
			t.Fatalf("frame %d: expected %d samples, got %d", i, expected[i], received[i])
		}
	}
}

func TestHubCleanupOnDisconnect(t *testing.T) {
	h := New(nil)

	var disconnected int
	var mu sync.Mutex
	h.OnDisconnect(func(clientID string) {
		mu.Lock()
		disconnected++
		mu.Unlock()
	})

	srv, wsURL := newTestServer(t, h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	var ack wsproto.Envelope
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		t.Fatalf("ack read failed: %v", err)
	}
	if h.ActiveCount() != 1 {
		t.Fatalf("expected 1 active connection, got %d", h.ActiveCount())
	}

	conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		if h.ActiveCount() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if h.ActiveCount() != 0 {
		t.Fatal("expected session removed from registry after disconnect")
	}
	mu.Lock()
	defer mu.Unlock()
	if disconnected != 1 {
		t.Fatalf("expected exactly one disconnect event, got %d", disconnected)
	}
}

func TestHubAudioBufferOverflowEmitsWarning(t *testing.T) {
	h := New(nil)

	blocked := make(chan struct{})
	h.OnFrame(func(core.AudioFrame) {
		<-blocked
	})

	var warnings []string
	var mu sync.Mutex
	h.OnWarning(func(kind, detail string) {
		mu.Lock()
		warnings = append(warnings, kind)
		mu.Unlock()
	})

	srv, wsURL := newTestServer(t, h)
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ack wsproto.Envelope
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		t.Fatalf("ack read failed: %v", err)
	}

	for i := 0; i < audioBufferCapacity+20; i++ {
		if err := conn.Write(ctx, websocket.MessageBinary, []byte{byte(i), byte(i >> 8)}); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(warnings)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(warnings) == 0 {
		t.Fatal("expected at least one buffer_overflow warning")
	}
	for _, k := range warnings {
		if k != "buffer_overflow" {
			t.Fatalf("expected buffer_overflow warning, got %s", k)
		}
	}
}
