package resilience

import (
	"sync"
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

type BreakerState string

const (
	StateClosed   BreakerState = "CLOSED"
	StateOpen     BreakerState = "OPEN"
	StateHalfOpen BreakerState = "HALF_OPEN"
)

type BreakerConfig struct {
	FailureThreshold   int
	ResetTimeout       time.Duration
	HalfOpenProbeCount int
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:   5,
		ResetTimeout:       30 * time.Second,
		HalfOpenProbeCount: 3,
	}
}

// CircuitBreaker gates calls to a single named external operation. It is
// constructed per operation and injected, never kept as a package-level
// singleton, so a test double (or a second listener instance) can run
// without interfering with another's breaker state.
type CircuitBreaker struct {
	mu     sync.Mutex
	name   string
	cfg    BreakerConfig
	state  BreakerState
	fails  int
	probes int
	openAt time.Time
	logger core.Logger
}

func NewCircuitBreaker(name string, cfg BreakerConfig, logger core.Logger) *CircuitBreaker {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		state:  StateClosed,
		logger: logger,
	}
}

func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// currentStateLocked applies the OPEN -> HALF_OPEN timeout transition lazily,
// evaluated on read so the breaker never needs a background goroutine.
func (b *CircuitBreaker) currentStateLocked() BreakerState {
	if b.state == StateOpen && time.Since(b.openAt) >= b.cfg.ResetTimeout {
		b.state = StateHalfOpen
		b.probes = 0
	}
	return b.state
}

// Allow reports whether a call may proceed right now, transitioning OPEN to
// HALF_OPEN if the reset timeout has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked() != StateOpen
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case StateHalfOpen:
		b.probes++
		if b.probes >= b.cfg.HalfOpenProbeCount {
			b.state = StateClosed
			b.fails = 0
			b.probes = 0
			b.logger.Info("circuit closed", "operation", b.name)
		}
	case StateClosed:
		b.fails = 0
	}
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		b.fails++
		if b.fails >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.openAt = time.Now()
	b.fails = 0
	b.probes = 0
	b.logger.Warn("circuit opened", "operation", b.name)
}

// Run executes fn if the breaker allows it, recording the outcome. It returns
// ErrCircuitOpen without calling fn when the breaker is open.
func (b *CircuitBreaker) Run(fn func() error) error {
	if !b.Allow() {
		return core.ErrCircuitOpen
	}
	err := fn()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
