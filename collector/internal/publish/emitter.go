// Package publish pushes computed summaries to an external webhook.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/splax/hydrobench/pkg/config"
	"github.com/splax/hydrobench/pkg/domain"
)

const (
	defaultTimeout   = 5 * time.Second
	maxErrorBodySize = 4096
	// TokenHeader carries the optional shared token.
	TokenHeader = "X-Collector-Token"
)

// ErrUnauthorized indicates the webhook rejected the token.
var ErrUnauthorized = errors.New("summary webhook unauthorized")

// ErrInvalidArgument indicates the webhook rejected the payload.
var ErrInvalidArgument = errors.New("summary webhook invalid argument")

// ErrNotFound indicates the webhook URL does not exist.
var ErrNotFound = errors.New("summary webhook not found")

// Batch is the body posted to the webhook.
type Batch struct {
	Summaries  []domain.MetricSummary `json:"summaries"`
	ComputedAt time.Time              `json:"computed_at"`
}

// Emitter posts summary batches to a webhook URL.
type Emitter struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewEmitter creates an emitter for url. A nil client gets a default timeout.
func NewEmitter(url, token string, client *http.Client, logger *slog.Logger) (*Emitter, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil, errors.New("summary webhook url required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	} else if client.Timeout == 0 {
		client.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		url:    trimmed,
		token:  strings.TrimSpace(token),
		client: client,
		logger: logger.With("component", "publish"),
		now:    time.Now,
	}, nil
}

// FromConfig creates an emitter whose requests are bounded by cfg.Timeout.
func FromConfig(cfg config.PublishConfig, logger *slog.Logger) (*Emitter, error) {
	return NewEmitter(cfg.URL, cfg.Token, &http.Client{Timeout: cfg.Timeout}, logger)
}

// Emit posts summaries to the webhook.
func (e *Emitter) Emit(ctx context.Context, summaries []domain.MetricSummary) error {
	if e == nil {
		return errors.New("summary emitter not initialised")
	}
	if summaries == nil {
		summaries = []domain.MetricSummary{}
	}
	body, err := json.Marshal(Batch{Summaries: summaries, ComputedAt: e.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal summaries: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set(TokenHeader, e.token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return errorForStatus(resp)
	}
	return nil
}

// PublishReadings is a no-op; only summaries are pushed.
func (e *Emitter) PublishReadings(context.Context, []domain.Reading) {}

// PublishSummaries posts summaries and logs any failure.
func (e *Emitter) PublishSummaries(ctx context.Context, summaries []domain.MetricSummary) {
	if err := e.Emit(ctx, summaries); err != nil {
		e.logger.Warn("publish summaries failed", "url", e.url, "error", err)
		return
	}
	e.logger.Debug("summaries published", "url", e.url, "sources", len(summaries))
}

func errorForStatus(resp *http.Response) error {
	limited := io.LimitReader(resp.Body, maxErrorBodySize)
	buf, _ := io.ReadAll(limited)
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, summary)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, summary)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, summary)
	default:
		return fmt.Errorf("webhook request failed: %s", summary)
	}
}
