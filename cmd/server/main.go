// Command server is hushcore's process entry point: it loads configuration,
// wires every pipeline component exactly once (unidirectionally, per
// spec.md §9 — the Dispatcher holds a send-command capability into the Hub,
// the Hub never calls back into the Dispatcher), and runs the websocket
// listener, the HTTP control API, and the metrics poller until terminated.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"github.com/hushcore/hushcore/pkg/attention"
	"github.com/hushcore/hushcore/pkg/config"
	"github.com/hushcore/hushcore/pkg/core"
	"github.com/hushcore/hushcore/pkg/corelog"
	"github.com/hushcore/hushcore/pkg/dispatcher"
	"github.com/hushcore/hushcore/pkg/httpapi"
	"github.com/hushcore/hushcore/pkg/hub"
	"github.com/hushcore/hushcore/pkg/metrics"
	"github.com/hushcore/hushcore/pkg/resilience"
	"github.com/hushcore/hushcore/pkg/transcription"
	"github.com/hushcore/hushcore/pkg/voicefilter"
	"github.com/hushcore/hushcore/pkg/wsproto"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration JSON file")
	profilesPath := flag.String("profiles", "profiles.json", "path to the voice profile registry JSON file")
	logLevel := flag.String("log-level", "info", "zap log level (debug, info, warn, error)")
	flag.Parse()

	logger, err := corelog.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	app, err := newApplication(cfg, *configPath, *profilesPath, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Run(rootCtx)
}

// application owns every wired pipeline component for one listener.
type application struct {
	logger core.Logger

	cfgPath      string
	profilesPath string

	store *configStore

	hub        *hub.Hub
	filter     *voicefilter.Filter
	bridge     *transcription.Bridge
	engine     *attention.Engine
	dispatcher *dispatcher.Dispatcher

	httpServer *httpapi.Server
}

func newApplication(cfg config.Configuration, cfgPath, profilesPath string, logger core.Logger) (*application, error) {
	registry := voicefilter.NewRegistry(cfg.Sensitivity)
	if err := loadProfiles(profilesPath, registry, logger); err != nil {
		return nil, err
	}
	filter := voicefilter.NewFilter(registry)

	var llmClient attention.LLMClient
	if cfg.LLMEnabled {
		llmClient = attention.NewOllamaClient(cfg.LLMEndpoint, cfg.LLMModel, 10*time.Second)
	}
	engine := attention.NewEngine(llmClient)
	engine.SetKeywords(cfg.Keywords)
	engine.SetUserName(cfg.UserName)
	if cfg.LLMEnabled {
		engine.EnableLLM()
	}

	h := hub.New(logger)

	disp := dispatcher.New(cfg.SilenceTimeout(), cfg.Sensitivity, func(cmd core.VolumeCommand) {
		metrics.VolumeCommandsTotal.WithLabelValues(string(cmd.Type)).Inc()
		h.Broadcast(wsproto.NewVolumeAction(wsproto.VolumeCommandToPayload(cmd), ""))
	})

	provider := transcription.NewDeepgramStreamProvider(cfg.STTAPIKey)
	bridge := transcription.NewBridge(provider, logger)

	store := &configStore{
		cfg:      cfg,
		path:     cfgPath,
		registry: registry,
		engine:   engine,
		disp:     disp,
	}

	app := &application{
		logger:       logger,
		cfgPath:      cfgPath,
		profilesPath: profilesPath,
		store:        store,
		hub:          h,
		filter:       filter,
		bridge:       bridge,
		engine:       engine,
		dispatcher:   disp,
	}
	app.wire()

	breakers := map[string]*resilience.CircuitBreaker{
		"transcription.stt": bridge.Breaker(),
	}
	app.httpServer = httpapi.New(store, hubStatus{h}, registry, bridge.Counters(), breakers, logger)

	return app, nil
}

// wire connects the pipeline's event edges exactly once, unidirectionally:
// Hub -> VoiceFilter -> Bridge -> Engine -> Dispatcher -> Hub. No component
// below the Hub ever calls back into one above it directly; each reaches
// upward only through the capability closures registered here.
func (a *application) wire() {
	a.hub.OnFrame(func(frame core.AudioFrame) {
		metrics.FramesReceivedTotal.Inc()
		pcm := encodePCM16(frame.Samples)

		match := a.filter.Match(pcm)
		if match.IsMatch {
			return
		}
		a.bridge.Write(context.Background(), pcm)
	})

	a.hub.OnConfig(func(clientID string, payload json.RawMessage) {
		a.logger.Debug("received client config event", "clientId", clientID, "payload", string(payload))
	})

	a.hub.OnDisconnect(func(clientID string) {
		a.logger.Info("client disconnected", "clientId", clientID)
		metrics.ActiveConnections.Set(float64(a.hub.ActiveCount()))
	})

	a.hub.OnWarning(func(kind, detail string) {
		a.logger.Warn("connection hub warning", "kind", kind, "detail", detail)
		metrics.FramesDroppedTotal.WithLabelValues(kind).Inc()
	})

	a.bridge.OnPartial(func(t core.Transcript) {
		metrics.TranscriptsTotal.WithLabelValues("partial").Inc()
		a.hub.Broadcast(wsproto.NewTranscript(wsproto.TranscriptToPayload(t)))
	})

	a.bridge.OnFinal(func(t core.Transcript) {
		metrics.TranscriptsTotal.WithLabelValues("final").Inc()
		a.hub.Broadcast(wsproto.NewTranscript(wsproto.TranscriptToPayload(t)))

		sensitivity := a.store.Get().Sensitivity
		verdict := a.engine.Evaluate(context.Background(), t, sensitivity)
		metrics.AttentionVerdictsTotal.WithLabelValues(string(verdict.Kind)).Inc()
		if verdict.Explanation.LLMConsulted {
			outcome := "ok"
			if strings.HasPrefix(verdict.Explanation.LLMReason, "llm unavailable: ") {
				outcome = "error"
			}
			metrics.LLMFallbackTotal.WithLabelValues(outcome).Inc()
		}
		a.dispatcher.Handle(verdict)
	})

	a.bridge.OnWarning(func(kind, detail string) {
		a.logger.Warn("transcription bridge warning", "kind", kind, "detail", detail)
		reason := kind
		if reason != "queue_overflow" && reason != "segment_discarded" {
			reason = "buffer_overflow"
		}
		metrics.FramesDroppedTotal.WithLabelValues(reason).Inc()
	})

	a.engine.OnWarning(func(kind, detail string) {
		a.logger.Warn("attention engine warning", "kind", kind, "detail", detail)
	})
}

// Run starts the websocket listener, the HTTP control API, and the metrics
// poller, blocking until ctx is canceled, then shuts everything down.
func (a *application) Run(ctx context.Context) {
	cfg := a.store.Get()

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			a.logger.Warn("websocket accept failed", "error", err)
			return
		}
		// Deliberately not r.Context(): net/http cancels the request context
		// the instant this handler returns, but Accept's task set must
		// outlive it. The session's own heartbeat/liveness loop, not this
		// handler's lifetime, governs when it ends.
		session := a.hub.Accept(ctx, conn)
		metrics.ActiveConnections.Set(float64(a.hub.ActiveCount()))
		a.logger.Info("client connected", "clientId", session.ID())
	})
	wsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WSPort),
		Handler: wsMux,
	}

	go func() {
		a.logger.Info("starting websocket listener", "addr", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("websocket listener failed", "error", err)
		}
	}()

	go func() {
		if err := a.httpServer.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("control API failed", "error", err)
		}
	}()

	stop := a.runMetricsPoller(ctx)

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = wsServer.Shutdown(shutdownCtx)
	_ = a.httpServer.Stop()
	_ = a.bridge.Close()
	a.dispatcher.Close()
	close(stop)

	if err := saveProfiles(a.profilesPath, a.filter.Registry()); err != nil {
		a.logger.Warn("failed to persist voice profiles", "error", err)
	}
}

// runMetricsPoller periodically mirrors the circuit breaker and failure
// counter state into the Prometheus gauges served at /metrics. /errors reads
// the breakers and counters directly, not these gauges.
func (a *application) runMetricsPoller(ctx context.Context) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.CircuitBreakerState.WithLabelValues("transcription.stt").Set(
					metrics.CircuitStateValue(string(a.bridge.Breaker().State())))
				for op, count := range a.bridge.Counters().Snapshot() {
					metrics.FailureCounterValue.WithLabelValues(op).Set(float64(count))
				}
				for op, count := range a.engine.Counters().Snapshot() {
					metrics.FailureCounterValue.WithLabelValues(op).Set(float64(count))
				}
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	return stop
}

func encodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

func loadProfiles(path string, registry *voicefilter.Registry, logger core.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, registry); err != nil {
		logger.Warn("failed to parse voice profile registry, starting empty", "path", path, "error", err)
		return nil
	}
	return nil
}

func saveProfiles(path string, registry *voicefilter.Registry) error {
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// configStore adapts the live cfg, VoiceProfile registry, AttentionEngine,
// and Dispatcher into the single httpapi.ConfigStore capability the control
// API needs — PUT /config re-applies every affected field atomically.
//
// cfg is read by the pipeline goroutine (bridge.OnFinal reads Get().
// Sensitivity for every final transcript) concurrently with writes from the
// control API's own goroutine, so every access is guarded by mu — an
// atomic-snapshot readers-writers discipline, per spec.md §5.
type configStore struct {
	mu       sync.RWMutex
	cfg      config.Configuration
	path     string
	registry *voicefilter.Registry
	engine   *attention.Engine
	disp     *dispatcher.Dispatcher
}

func (c *configStore) Get() config.Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *configStore) Replace(next config.Configuration) error {
	if next.Sensitivity < 0 || next.Sensitivity > 1 {
		return core.ErrInvalidInput
	}
	if next.SilenceTimeoutMs < 1000 {
		return core.ErrInvalidInput
	}
	if len(next.Keywords) == 0 {
		next.Keywords = append([]string(nil), config.DefaultKeywords...)
	}

	c.mu.Lock()
	c.cfg = next
	c.mu.Unlock()

	c.registry.SetSensitivity(next.Sensitivity)
	c.disp.SetSensitivity(next.Sensitivity)
	c.disp.SetSilenceTimeout(next.SilenceTimeout())
	c.engine.SetKeywords(next.Keywords)
	c.engine.SetUserName(next.UserName)
	if next.LLMEnabled {
		c.engine.EnableLLM()
	} else {
		c.engine.DisableLLM()
	}

	return config.Save(c.path, next)
}

func (c *configStore) SetSensitivity(level float64) error {
	if level < 0 || level > 1 {
		return core.ErrInvalidInput
	}
	c.mu.Lock()
	c.cfg.Sensitivity = level
	snapshot := c.cfg
	c.mu.Unlock()

	c.registry.SetSensitivity(level)
	c.disp.SetSensitivity(level)
	return config.Save(c.path, snapshot)
}

func (c *configStore) AddKeyword(keyword string) error {
	if keyword == "" {
		return core.ErrInvalidInput
	}
	c.engine.AddKeyword(keyword)

	c.mu.Lock()
	c.cfg.Keywords = c.engine.Keywords()
	snapshot := c.cfg
	c.mu.Unlock()

	return config.Save(c.path, snapshot)
}

// hubStatus adapts *hub.Hub to httpapi.StatusProvider.
type hubStatus struct{ h *hub.Hub }

func (s hubStatus) ActiveConnections() int { return s.h.ActiveCount() }
