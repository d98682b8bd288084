package transcription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

// fakeProvider lets tests control open success/failure and drive transcript
// callbacks directly, without a real network dependency.
type fakeProvider struct {
	mu        sync.Mutex
	failOpen  bool
	opens     int
	sessions  []*fakeSession
	onOpened  func(h STTHandlers, s *fakeSession)
}

type fakeSession struct {
	mu       sync.Mutex
	closed   bool
	sendErr  error
	sent     [][]byte
	handlers STTHandlers
}

func (s *fakeSession) Send(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, pcm)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (p *fakeProvider) Open(ctx context.Context, handlers STTHandlers) (STTSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if p.failOpen {
		return nil, errors.New("stt unreachable")
	}
	sess := &fakeSession{handlers: handlers}
	p.sessions = append(p.sessions, sess)
	if p.onOpened != nil {
		p.onOpened(handlers, sess)
	}
	return sess, nil
}

func (p *fakeProvider) lastSession() *fakeSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

func TestBridgeLazyOpensOnFirstWrite(t *testing.T) {
	p := &fakeProvider{}
	b := NewBridge(p, nil)
	defer b.Close()

	if b.State() != StateIdle {
		t.Fatalf("expected IDLE before first write, got %s", b.State())
	}

	b.Write(context.Background(), []byte{1, 2, 3})
	waitFor(t, func() bool { return b.State() == StateConnected })

	p.mu.Lock()
	opens := p.opens
	p.mu.Unlock()
	if opens != 1 {
		t.Fatalf("expected exactly one open, got %d", opens)
	}
}

func TestBridgeDropsEmptyTranscripts(t *testing.T) {
	p := &fakeProvider{}
	b := NewBridge(p, nil)
	defer b.Close()

	var finals []core.Transcript
	b.OnFinal(func(tr core.Transcript) { finals = append(finals, tr) })

	b.Write(context.Background(), []byte{1})
	waitFor(t, func() bool { return p.lastSession() != nil })

	sess := p.lastSession()
	sess.handlers.OnTranscript("   ", 0.9, true)
	sess.handlers.OnTranscript("hello there", 0.9, true)

	waitFor(t, func() bool { return len(finals) == 1 })
	if finals[0].Text != "hello there" {
		t.Fatalf("unexpected transcript text: %q", finals[0].Text)
	}
	if finals[0].IsPartial {
		t.Fatal("expected final transcript to have IsPartial=false")
	}
}

func TestBridgePartialVsFinalRouting(t *testing.T) {
	p := &fakeProvider{}
	b := NewBridge(p, nil)
	defer b.Close()

	var partials, finals int
	b.OnPartial(func(core.Transcript) { partials++ })
	b.OnFinal(func(core.Transcript) { finals++ })

	b.Write(context.Background(), []byte{1})
	waitFor(t, func() bool { return p.lastSession() != nil })
	sess := p.lastSession()

	sess.handlers.OnTranscript("partial text", 0.5, false)
	sess.handlers.OnTranscript("final text", 0.9, true)

	waitFor(t, func() bool { return partials == 1 && finals == 1 })
}

func TestBridgeEnqueuesWhenOpenFails(t *testing.T) {
	p := &fakeProvider{failOpen: true}
	b := NewBridge(p, nil)
	defer b.Close()

	b.Write(context.Background(), []byte{1, 2})
	waitFor(t, func() bool { return b.QueueLen() >= 1 })
}

func TestBridgeQueueOverflowEmitsWarning(t *testing.T) {
	p := &fakeProvider{failOpen: true}
	b := NewBridge(p, nil)
	defer b.Close()

	var warnings []string
	var mu sync.Mutex
	b.OnWarning(func(kind, detail string) {
		mu.Lock()
		warnings = append(warnings, kind)
		mu.Unlock()
	})

	for i := 0; i < retryQueueCapacity+5; i++ {
		b.Write(context.Background(), []byte{byte(i)})
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, k := range warnings {
		if k == "queue_overflow" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected at least one queue_overflow warning")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
