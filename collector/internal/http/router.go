// Package http exposes collector state and its live feed over HTTP.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/splax/hydrobench/collector/internal/orchestrator"
	"github.com/splax/hydrobench/collector/internal/ws"
	"github.com/splax/hydrobench/pkg/domain"
	"github.com/splax/hydrobench/pkg/httpx"
)

const defaultHeartbeat = 15 * time.Second

// StateSource is the read side of the collector.
type StateSource interface {
	Endpoints() []orchestrator.Endpoint
	Readings() []domain.Reading
	Summaries() []domain.MetricSummary
	CalculationAddress() (string, bool)
}

// Router wires HTTP endpoints to the collector.
type Router struct {
	*httpx.Router
	source    StateSource
	hub       *ws.Hub
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	heartbeat time.Duration
}

// New constructs the collector router. A nil hub leaves the live feed
// endpoints unmounted.
func New(logger *slog.Logger, source StateSource, hub *ws.Hub) *Router {
	r := &Router{
		Router:    httpx.New(logger, "collector"),
		source:    source,
		hub:       hub,
		logger:    logger,
		heartbeat: defaultHeartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	r.AddHealthCheck("endpoints", r.endpointsHealth)
	r.Handle("/endpoints", "/endpoints", r.handleEndpoints)
	r.Handle("/readings", "/readings", r.handleReadings)
	r.Handle("/summaries", "/summaries", r.handleSummaries)
	if hub != nil {
		r.HandleRaw("/stream", r.handleStream)
		r.HandleRaw("/events", r.handleEvents)
	}
	return r
}

func (r *Router) endpointsHealth(context.Context) error {
	for _, ep := range r.source.Endpoints() {
		if ep.Connected() {
			return nil
		}
	}
	return errors.New("no endpoint connected")
}

type calculationView struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
}

func (r *Router) handleEndpoints(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload := map[string]any{"endpoints": r.source.Endpoints()}
	if addr, connected := r.source.CalculationAddress(); addr != "" {
		payload["calculation"] = calculationView{Address: addr, Connected: connected}
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (r *Router) handleReadings(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := req.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	source := strings.TrimSpace(query.Get("source"))

	readings := r.source.Readings()
	if source != "" {
		filtered := readings[:0]
		for _, reading := range readings {
			if reading.SourceID == source {
				filtered = append(filtered, reading)
			}
		}
		readings = filtered
	}
	if limit > 0 && len(readings) > limit {
		readings = readings[len(readings)-limit:]
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"readings": readings, "count": len(readings)})
}

func (r *Router) handleSummaries(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"summaries": r.source.Summaries()})
}

func topicFrom(req *http.Request) (string, bool) {
	topic := strings.TrimSpace(req.URL.Query().Get("topic"))
	if topic == "" {
		topic = ws.TopicReadings
	}
	return topic, ws.ValidTopic(topic)
}

func (r *Router) handleStream(w http.ResponseWriter, req *http.Request) {
	topic, ok := topicFrom(req)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "topic must be readings or summaries")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, topic, r.logger)
	r.hub.Register(topic, client)
	go client.Keepalive(r.heartbeat)
	go func() {
		defer func() {
			r.hub.Unregister(topic, client)
			client.Close()
		}()
		client.Listen(3 * r.heartbeat)
	}()
}

func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	topic, ok := topicFrom(req)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "topic must be readings or summaries")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, topic, r.logger)
	r.hub.Register(topic, client)
	defer func() {
		r.hub.Unregister(topic, client)
		client.Close()
		client.Wait()
	}()

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
