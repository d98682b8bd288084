package resilience

import (
	"strconv"
	"sync"
	"time"

	"github.com/hushcore/hushcore/pkg/core"
)

// Warning is emitted the first time a named operation's failure count
// crosses warnThreshold since its last reset.
type Warning struct {
	Operation string
	Count     int
	Message   string
	At        time.Time
}

type WarningHandler func(Warning)

const warnThreshold = 3

// FailureCounters tracks consecutive-failure counts per named operation and
// fires a Warning the first time a counter reaches warnThreshold. It is
// constructed explicitly and injected into callers rather than kept as a
// process-wide singleton, so tests (and multiple listener instances) can use
// independent counters.
type FailureCounters struct {
	mu       sync.Mutex
	counts   map[string]int
	warned   map[string]bool
	lastSeen map[string]time.Time
	logger   core.Logger
	onWarn   WarningHandler
}

func NewFailureCounters(logger core.Logger) *FailureCounters {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &FailureCounters{
		counts:   make(map[string]int),
		warned:   make(map[string]bool),
		lastSeen: make(map[string]time.Time),
		logger:   logger,
	}
}

// OnWarning registers the callback invoked when a counter crosses threshold.
func (f *FailureCounters) OnWarning(h WarningHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onWarn = h
}

func (f *FailureCounters) RecordFailure(operation string, err error) {
	f.mu.Lock()
	f.counts[operation]++
	f.lastSeen[operation] = time.Now()
	count := f.counts[operation]
	alreadyWarned := f.warned[operation]
	if count >= warnThreshold && !alreadyWarned {
		f.warned[operation] = true
	}
	handler := f.onWarn
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("operation failure recorded", "operation", operation, "count", count, "error", err)
	}

	if count >= warnThreshold && !alreadyWarned && handler != nil {
		handler(Warning{
			Operation: operation,
			Count:     count,
			Message:   "operation " + operation + " has failed " + strconv.Itoa(count) + " times",
			At:        time.Now(),
		})
	}
}

func (f *FailureCounters) RecordSuccess(operation string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[operation] = 0
	f.warned[operation] = false
}

// Count returns the current consecutive-failure count for operation.
func (f *FailureCounters) Count(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[operation]
}

// Snapshot returns a copy of all tracked counters, for the /errors endpoint.
func (f *FailureCounters) Snapshot() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out
}
