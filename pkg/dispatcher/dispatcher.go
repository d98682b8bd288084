package dispatcher

import (
	"sync"
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

type sessionState string

const (
	stateNormal sessionState = "normal"
	stateDimmed sessionState = "dimmed"
)

// Dispatcher is the Dispatcher & SilenceTimer (§4.5): it turns a stream of
// AttentionVerdicts into VolumeCommands, debouncing repeated DIM triggers
// and auto-restoring after a period of silence.
//
// Grounded on the teacher's ManagedStream for the single-mutex-guarded
// state-machine idiom (isSpeaking/isThinking booleans transitioned under
// one `mu sync.Mutex`, with timer-driven async work signaled via
// context.CancelFunc) — here a state enum and a cancelable timer replace
// the teacher's speaking/thinking flags and TTS/response cancels, and
// Emit is the injected send-command capability that lets this component
// reach ConnectionHub without ConnectionHub ever calling back into it
// (spec.md §9's unidirectional-wiring note).
type Dispatcher struct {
	mu sync.Mutex

	state           sessionState
	pendingTimer    *time.Timer
	timerGeneration int
	lastCommand     time.Time

	silenceTimeout time.Duration
	sensitivity    float64

	emit func(core.VolumeCommand)
}

func New(silenceTimeout time.Duration, sensitivity float64, emit func(core.VolumeCommand)) *Dispatcher {
	return &Dispatcher{
		state:          stateNormal,
		silenceTimeout: silenceTimeout,
		sensitivity:    sensitivity,
		emit:           emit,
	}
}

func (d *Dispatcher) SetSensitivity(s float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sensitivity = s
}

func (d *Dispatcher) SetSilenceTimeout(t time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silenceTimeout = t
}

func (d *Dispatcher) State() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.state)
}

// Handle applies the transition table in spec.md §4.5 to one verdict.
func (d *Dispatcher) Handle(v core.AttentionVerdict) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case stateNormal:
		switch v.Kind {
		case core.VerdictDefinitely:
			d.emitLocked(core.CommandDim, v.Kind, 0.95)
			d.state = stateDimmed
			d.restartTimerLocked()
		case core.VerdictProbably:
			if d.sensitivity > 0.5 {
				d.emitLocked(core.CommandDim, v.Kind, 0.7)
				d.state = stateDimmed
				d.restartTimerLocked()
			}
		case core.VerdictIgnore:
			// no emission, no timer change.
		}

	case stateDimmed:
		switch v.Kind {
		case core.VerdictDefinitely:
			d.restartTimerLocked()
		case core.VerdictProbably:
			if d.sensitivity > 0.5 {
				d.restartTimerLocked()
			}
		case core.VerdictIgnore:
			if d.pendingTimer == nil {
				d.startTimerLocked()
			}
		}
	}
}

// forceDim unconditionally emits a DIM, replacing any running timer with a
// fresh one, regardless of current state.
func (d *Dispatcher) ForceDim(confidence float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	d.emitLocked(core.CommandDim, core.VerdictDefinitely, confidence)
	d.state = stateDimmed
	d.startTimerLocked()
}

// forceRestore cancels the timer and, if dimmed, emits a RESTORE.
func (d *Dispatcher) ForceRestore() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	if d.state == stateDimmed {
		d.emitLocked(core.CommandRestore, core.VerdictIgnore, 1.0)
		d.state = stateNormal
	}
}

func (d *Dispatcher) startTimerLocked() {
	d.timerGeneration++
	generation := d.timerGeneration
	d.pendingTimer = time.AfterFunc(d.silenceTimeout, func() {
		d.onTimerExpired(generation)
	})
}

func (d *Dispatcher) restartTimerLocked() {
	d.stopTimerLocked()
	d.startTimerLocked()
}

func (d *Dispatcher) stopTimerLocked() {
	if d.pendingTimer != nil {
		d.pendingTimer.Stop()
		d.pendingTimer = nil
	}
	d.timerGeneration++
}

// onTimerExpired fires from time.AfterFunc's own goroutine. generation
// guards against a stale firing that raced a concurrent restart/stop — only
// the timer that is still current may transition state.
func (d *Dispatcher) onTimerExpired(generation int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if generation != d.timerGeneration {
		return
	}
	d.pendingTimer = nil
	if d.state != stateDimmed {
		return
	}
	d.emitLocked(core.CommandRestore, core.VerdictIgnore, 1.0)
	d.state = stateNormal
}

func (d *Dispatcher) emitLocked(kind core.CommandType, reason core.VerdictKind, confidence float64) {
	d.lastCommand = time.Now()
	if d.emit == nil {
		return
	}
	d.emit(core.VolumeCommand{
		Type:          kind,
		Timestamp:     d.lastCommand,
		TriggerReason: reason,
		Confidence:    confidence,
	})
}

// Close stops any pending timer without emitting a final command.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
}
