// Package httpapi implements the HTTP control API (§6.2): health, live
// configuration, sensitivity/keyword tuning, voice profile management, and
// the failure/circuit-breaker error summary, alongside the Prometheus
// /metrics endpoint.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/hushcore/hushcore/pkg/config"
	"github.com/hushcore/hushcore/pkg/core"
	"github.com/hushcore/hushcore/pkg/metrics"
	"github.com/hushcore/hushcore/pkg/resilience"
	"github.com/hushcore/hushcore/pkg/voicefilter"
)

// ConfigStore is the capability the control API needs to read and replace
// the live configuration; cmd/server wires it to pkg/config plus whatever
// re-application the running components need (sensitivity, keywords, ...).
type ConfigStore interface {
	Get() config.Configuration
	Replace(config.Configuration) error
	SetSensitivity(level float64) error
	AddKeyword(keyword string) error
}

// StatusProvider reports process-wide health, surfaced at GET /health.
type StatusProvider interface {
	ActiveConnections() int
}

// Server wires chi + permissive CORS around the control API and the
// Prometheus handler. Grounded on the teacher-adjacent longregen-alicia
// server.go's router/Start/Stop shape, generalized to this service's own
// component set.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	store    ConfigStore
	status   StatusProvider
	profiles *voicefilter.Registry
	failures *resilience.FailureCounters
	breakers map[string]*resilience.CircuitBreaker
	logger   core.Logger
	startAt  time.Time
}

func New(
	store ConfigStore,
	status StatusProvider,
	profiles *voicefilter.Registry,
	failures *resilience.FailureCounters,
	breakers map[string]*resilience.CircuitBreaker,
	logger core.Logger,
) *Server {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	s := &Server{
		store:    store,
		status:   status,
		profiles: profiles,
		failures: failures,
		breakers: breakers,
		logger:   logger,
		startAt:  time.Now(),
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	})
	r.Use(c.Handler)
	r.Use(s.metricsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/config", s.handleGetConfig)
	r.Put("/config", s.handlePutConfig)
	r.Put("/config/sensitivity", s.handlePutSensitivity)
	r.Post("/config/keywords", s.handlePostKeyword)
	r.Get("/profiles", s.handleListProfiles)
	r.Delete("/profiles/{id}", s.handleDeleteProfile)
	r.Get("/errors", s.handleErrors)

	s.router = r
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("starting control API", "addr", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, http.StatusText(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeSuccess(w http.ResponseWriter, extra map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}
