package http

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/splax/hydrobench/collector/internal/orchestrator"
	"github.com/splax/hydrobench/collector/internal/ws"
	"github.com/splax/hydrobench/pkg/domain"
)

type stubSource struct {
	endpoints []orchestrator.Endpoint
	readings  []domain.Reading
	summaries []domain.MetricSummary
	calcAddr  string
}

func (s *stubSource) Endpoints() []orchestrator.Endpoint { return s.endpoints }
func (s *stubSource) Readings() []domain.Reading         { return append([]domain.Reading(nil), s.readings...) }
func (s *stubSource) Summaries() []domain.MetricSummary  { return s.summaries }
func (s *stubSource) CalculationAddress() (string, bool) { return s.calcAddr, s.calcAddr != "" }

func newTestRouter(t *testing.T, source *stubSource) (*Router, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub()
	t.Cleanup(hub.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, source, hub), hub
}

func waitForSubscriber(t *testing.T, hub *ws.Hub, topic string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers(topic) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no subscriber on %s", topic)
}

func TestHandleEndpoints(t *testing.T) {
	source := &stubSource{
		endpoints: []orchestrator.Endpoint{{ID: 1, Address: "127.0.0.1:50051", State: orchestrator.StateConnected}},
		calcAddr:  "127.0.0.1:8060",
	}
	router, _ := newTestRouter(t, source)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Endpoints   []orchestrator.Endpoint `json:"endpoints"`
		Calculation struct {
			Address   string `json:"address"`
			Connected bool   `json:"connected"`
		} `json:"calculation"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Endpoints) != 1 || payload.Endpoints[0].State != orchestrator.StateConnected {
		t.Fatalf("unexpected endpoints %+v", payload.Endpoints)
	}
	if payload.Calculation.Address != "127.0.0.1:8060" || !payload.Calculation.Connected {
		t.Fatalf("unexpected calculation %+v", payload.Calculation)
	}
}

func TestHandleReadingsFiltersAndLimits(t *testing.T) {
	source := &stubSource{readings: []domain.Reading{
		{SourceID: "a", Temperature: 10},
		{SourceID: "b", Temperature: 11},
		{SourceID: "a", Temperature: 12},
		{SourceID: "a", Temperature: 13},
	}}
	router, _ := newTestRouter(t, source)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings?source=a&limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Readings []domain.Reading `json:"readings"`
		Count    int              `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Count != 2 || payload.Readings[0].Temperature != 12 || payload.Readings[1].Temperature != 13 {
		t.Fatalf("unexpected readings %+v", payload.Readings)
	}
}

func TestHandleReadingsRejectsBadLimit(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readings?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleSummaries(t *testing.T) {
	source := &stubSource{summaries: []domain.MetricSummary{{SourceID: "A", MeanHumidity: 55}}}
	router, _ := newTestRouter(t, source)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summaries", nil))
	if !strings.Contains(rec.Body.String(), `"mean_humidity":55`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHealthRequiresConnectedEndpoint(t *testing.T) {
	source := &stubSource{endpoints: []orchestrator.Endpoint{{ID: 1, State: orchestrator.StateDisconnected}}}
	router, _ := newTestRouter(t, source)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	source.endpoints = append(source.endpoints, orchestrator.Endpoint{ID: 2, State: orchestrator.StateConnected})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStreamRejectsUnknownTopic(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})
	for _, path := range []string{"/stream?topic=nope", "/events?topic=nope"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestEventsStreamsBroadcasts(t *testing.T) {
	router, hub := newTestRouter(t, &stubSource{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events?topic=summaries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %s", ct)
	}

	waitForSubscriber(t, hub, ws.TopicSummaries)
	hub.Broadcast(ws.TopicSummaries, []byte(`{"ok":true}`))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if lines[0] != "event: summaries" || lines[1] != `data: {"ok":true}` {
		t.Fatalf("unexpected frame %q", lines)
	}
}

func TestStreamDeliversOverWebsocket(t *testing.T) {
	router, hub := newTestRouter(t, &stubSource{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream?topic=readings"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForSubscriber(t, hub, ws.TopicReadings)
	hub.Broadcast(ws.TopicReadings, []byte(`[1]`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(payload) != `[1]` {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestFeedEndpointsUnmountedWithoutHub(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := New(logger, &stubSource{}, nil)
	for _, path := range []string{"/stream", "/events"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summaries", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected summaries to stay available, got %d", rec.Code)
	}
}
