// Package metrics defines the process-wide Prometheus collectors exposed at
// GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hushcore_active_connections",
		Help: "Number of currently connected client sessions.",
	})

	FramesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hushcore_frames_received_total",
		Help: "Total inbound audio frames accepted by the ConnectionHub.",
	})

	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushcore_frames_dropped_total",
		Help: "Frames or segments dropped, by reason (buffer_overflow, queue_overflow, segment_discarded).",
	}, []string{"reason"})

	TranscriptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushcore_transcripts_total",
		Help: "Transcripts routed out of the TranscriptionBridge, by kind (partial, final).",
	}, []string{"kind"})

	AttentionVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushcore_attention_verdicts_total",
		Help: "AttentionEngine verdicts, by kind (IGNORE, PROBABLY_TO_ME, DEFINITELY_TO_ME).",
	}, []string{"kind"})

	LLMFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushcore_llm_fallback_total",
		Help: "LLM fallback consultations, by outcome (ok, error).",
	}, []string{"outcome"})

	VolumeCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushcore_volume_commands_total",
		Help: "VolumeCommands emitted by the Dispatcher, by type (DIM, RESTORE).",
	}, []string{"type"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hushcore_circuit_breaker_state",
		Help: "Circuit breaker state by name: 0=CLOSED, 1=HALF_OPEN, 2=OPEN.",
	}, []string{"name"})

	FailureCounterValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hushcore_failure_counter",
		Help: "Consecutive failure count by operation name.",
	}, []string{"operation"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushcore_http_requests_total",
		Help: "Total control-API HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hushcore_http_request_duration_seconds",
		Help:    "Control-API HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// CircuitStateValue maps a resilience.BreakerState name to the gauge's numeric
// encoding; kept here rather than in pkg/resilience so that package stays
// free of a metrics-library import.
func CircuitStateValue(name string) float64 {
	switch name {
	case "CLOSED":
		return 0
	case "HALF_OPEN":
		return 1
	case "OPEN":
		return 2
	default:
		return -1
	}
}
