package transcription

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hushcore/hushcore/pkg/core"
	"github.com/hushcore/hushcore/pkg/resilience"
)

type State string

const (
	StateIdle       State = "IDLE"
	StateConnecting State = "CONNECTING"
	StateConnected  State = "CONNECTED"
	StateClosing    State = "CLOSING"
	StateClosed     State = "CLOSED"
)

const (
	retryQueueCapacity = 100
	baseRetryDelay     = 1 * time.Second
	maxRetries         = 5
)

type retryItem struct {
	pcm        []byte
	retryCount int
}

// Bridge is the TranscriptionBridge: a lazily-opened streaming connection to
// an external STT backend, with a bounded retry queue absorbing send
// failures so transport hiccups never propagate to the audio pipeline.
//
// Grounded on the teacher's ManagedStream.startStreamingSTT / Write (stale
// generation counter, non-blocking forwarding) and LokutorTTS.getConn
// (lazy dial, drop connection reference on any read/write error).
type Bridge struct {
	mu         sync.Mutex
	state      State
	generation int
	session    STTSession
	segmentID  string

	queue []retryItem

	provider STTProvider
	breaker  *resilience.CircuitBreaker
	counters *resilience.FailureCounters
	logger   core.Logger

	onPartial func(core.Transcript)
	onFinal   func(core.Transcript)
	onWarning func(kind, detail string)

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	drainDone chan struct{}
}

func NewBridge(provider STTProvider, logger core.Logger) *Bridge {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		state:     StateIdle,
		provider:  provider,
		counters:  resilience.NewFailureCounters(logger),
		breaker:   resilience.NewCircuitBreaker("transcription.stt", resilience.DefaultBreakerConfig(), logger),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		drainDone: make(chan struct{}),
	}
	go b.drainQueue()
	return b
}

// OnPartial, OnFinal and OnWarning register the bridge's own observers.
// Call these before the first Write — they are themselves part of the
// handler-registration-before-open discipline documented on STTHandlers.
func (b *Bridge) OnPartial(fn func(core.Transcript)) { b.onPartial = fn }
func (b *Bridge) OnFinal(fn func(core.Transcript))   { b.onFinal = fn }
func (b *Bridge) OnWarning(fn func(kind, detail string)) {
	b.onWarning = fn
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Breaker and Counters expose the bridge's own resilience instances so the
// control API's /errors endpoint and the metrics poller can report on them
// without the bridge reaching back out to a process-wide singleton.
func (b *Bridge) Breaker() *resilience.CircuitBreaker    { return b.breaker }
func (b *Bridge) Counters() *resilience.FailureCounters { return b.counters }

// Write forwards one audio frame. If the session is not connected, the
// frame is enqueued for retry rather than blocking or erroring — transport
// errors never propagate to the caller (spec §4.3/§7 ExternalUnavailable).
func (b *Bridge) Write(ctx context.Context, pcm []byte) {
	if err := b.attemptSend(ctx, pcm); err != nil {
		b.enqueue(pcm)
	}
}

func (b *Bridge) attemptSend(ctx context.Context, pcm []byte) error {
	if err := b.ensureOpen(ctx); err != nil {
		b.counters.RecordFailure("transcription.stt", err)
		return err
	}

	b.mu.Lock()
	session := b.session
	b.mu.Unlock()
	if session == nil {
		return core.ErrExternalUnavailable
	}

	err := b.breaker.Run(func() error {
		return session.Send(ctx, pcm)
	})
	if err != nil {
		b.counters.RecordFailure("transcription.stt", err)
		b.logger.Warn("stt send failed", "error", err)
		return err
	}
	b.counters.RecordSuccess("transcription.stt")
	return nil
}

// ensureOpen lazily dials the external STT backend on first use, or after a
// prior session closed. Handlers are built and captured in this call before
// Open is invoked, so the provider can never produce a transcript the
// bridge isn't ready to route (resolves the race noted in spec.md §9).
func (b *Bridge) ensureOpen(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case StateConnected:
		b.mu.Unlock()
		return nil
	case StateConnecting:
		b.mu.Unlock()
		return core.ErrExternalUnavailable
	}
	b.state = StateConnecting
	b.generation++
	generation := b.generation
	b.mu.Unlock()

	segmentID := uuid.NewString()
	handlers := STTHandlers{
		OnTranscript: func(text string, confidence float64, isFinal bool) {
			b.handleTranscript(generation, segmentID, text, confidence, isFinal)
		},
		OnClosed: func(err error) {
			b.handleClosed(generation, err)
		},
	}

	session, err := b.provider.Open(ctx, handlers)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.generation != generation {
		// superseded by a concurrent open/close; discard this result.
		if session != nil {
			go session.Close()
		}
		return core.ErrExternalUnavailable
	}
	if err != nil {
		b.state = StateIdle
		return err
	}
	b.session = session
	b.segmentID = segmentID
	b.state = StateConnected
	return nil
}

// handleTranscript drops stale callbacks from a superseded session and
// forwards a non-empty trimmed transcript to the registered observers.
func (b *Bridge) handleTranscript(generation int, segmentID string, text string, confidence float64, isFinal bool) {
	b.mu.Lock()
	stale := b.generation != generation
	b.mu.Unlock()
	if stale {
		return
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	t := core.Transcript{
		ID:             uuid.NewString(),
		Text:           trimmed,
		Confidence:     confidence,
		Timestamp:      time.Now(),
		IsPartial:      !isFinal,
		AudioSegmentID: segmentID,
	}

	if isFinal {
		if b.onFinal != nil {
			b.onFinal(t)
		}
	} else if b.onPartial != nil {
		b.onPartial(t)
	}
}

// handleClosed reacts to an unexpected session close: the state returns to
// IDLE so the next Write re-enters CONNECTING, per the state machine's
// informational-CLOSED rule.
func (b *Bridge) handleClosed(generation int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.generation != generation {
		return
	}
	b.session = nil
	b.state = StateIdle
	if err != nil {
		b.logger.Warn("stt session closed", "error", err)
	}
}

func (b *Bridge) enqueue(pcm []byte) {
	b.mu.Lock()
	overflowed := false
	if len(b.queue) >= retryQueueCapacity {
		b.queue = b.queue[1:]
		overflowed = true
	}
	b.queue = append(b.queue, retryItem{pcm: pcm})
	b.mu.Unlock()

	if overflowed {
		b.emitWarning("queue_overflow", "retry queue capacity exceeded, oldest frame dropped")
	}
}

func (b *Bridge) emitWarning(kind, detail string) {
	if b.onWarning != nil {
		b.onWarning(kind, detail)
	}
}

// drainQueue is the retry queue's single consumer task. It backs off
// per-item (base · 2^retryCount) between attempts, matching P16.
func (b *Bridge) drainQueue() {
	defer close(b.drainDone)
	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			select {
			case <-time.After(25 * time.Millisecond):
				continue
			case <-b.ctx.Done():
				return
			}
		}
		item := b.queue[0]
		b.mu.Unlock()

		delay := baseRetryDelay * time.Duration(1<<uint(item.retryCount))
		select {
		case <-time.After(delay):
		case <-b.ctx.Done():
			return
		}

		err := b.attemptSend(b.ctx, item.pcm)

		b.mu.Lock()
		if len(b.queue) == 0 {
			// queue drained/replaced concurrently (shouldn't happen with a
			// single consumer, but guards against a racy Close).
			b.mu.Unlock()
			continue
		}
		if err == nil {
			b.queue = b.queue[1:]
			b.mu.Unlock()
			continue
		}

		item.retryCount++
		if item.retryCount >= maxRetries {
			b.queue = b.queue[1:]
			b.mu.Unlock()
			b.emitWarning("segment_discarded", "exceeded max retries, frame discarded")
			continue
		}
		b.queue[0] = item
		b.mu.Unlock()
	}
}

// Close tears down the bridge: the active session (if any) is closed and
// the retry worker stops. Idempotent.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.state = StateClosing
		session := b.session
		b.session = nil
		b.generation++
		b.mu.Unlock()

		if session != nil {
			err = session.Close()
		}

		b.cancel()
		<-b.drainDone

		b.mu.Lock()
		b.state = StateClosed
		b.mu.Unlock()
	})
	return err
}
