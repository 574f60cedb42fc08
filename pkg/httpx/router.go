// Package httpx provides the operational HTTP surface (health, metrics and
// JSON helpers) shared by the hydrobench binaries.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc reports the health of one component; nil means up.
type HealthFunc func(ctx context.Context) error

// Router exposes /healthz, /metrics and any routes added with Handle.
type Router struct {
	mux                *http.ServeMux
	logger             *slog.Logger
	subsystem          string
	checksMu           sync.RWMutex
	checks             map[string]HealthFunc
	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

const (
	healthCheckTimeout = 2 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// New creates a router whose request metrics are labelled with subsystem.
func New(logger *slog.Logger, subsystem string) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		subsystem: subsystem,
		checks:    make(map[string]HealthFunc),
	}
	r.initMetrics()
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/healthz", r.instrument("/healthz", r.handleHealth))
	return r
}

// ServeHTTP satisfies http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// AddHealthCheck registers a component reported by /healthz.
func (r *Router) AddHealthCheck(name string, fn HealthFunc) {
	r.checksMu.Lock()
	defer r.checksMu.Unlock()
	r.checks[name] = fn
}

// Handle registers an instrumented handler. route is the metrics label.
func (r *Router) Handle(pattern, route string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.instrument(route, h))
}

// HandleRaw registers a handler without request metrics, for long-lived
// streams.
func (r *Router) HandleRaw(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()

	r.checksMu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]HealthFunc, 0, len(names))
	for _, name := range names {
		checks = append(checks, r.checks[name])
	}
	r.checksMu.RUnlock()

	status := "ok"
	components := make(map[string]any, len(names))
	for i, name := range names {
		if err := checks[i](ctx); err != nil {
			status = "degraded"
			components[name] = map[string]any{"status": "down", "error": err.Error()}
			continue
		}
		components[name] = map[string]any{"status": "up"}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, payload)
}

// WriteJSON writes a JSON response with status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError sends an error message.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
		logger.Info("http server stopped")
		return nil
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
