package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/splax/hydrobench/pkg/domain"
)

// Event is the frame sent to feed subscribers.
type Event struct {
	Topic string    `json:"topic"`
	At    time.Time `json:"at"`
	Data  any       `json:"data"`
}

// Feed publishes collector output on a Hub.
type Feed struct {
	hub    *Hub
	logger *slog.Logger
	now    func() time.Time
}

// NewFeed wraps hub.
func NewFeed(hub *Hub, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{hub: hub, logger: logger, now: time.Now}
}

// PublishReadings broadcasts newly collected readings.
func (f *Feed) PublishReadings(_ context.Context, readings []domain.Reading) {
	f.publish(TopicReadings, readings)
}

// PublishSummaries broadcasts the latest summaries.
func (f *Feed) PublishSummaries(_ context.Context, summaries []domain.MetricSummary) {
	f.publish(TopicSummaries, summaries)
}

func (f *Feed) publish(topic string, data any) {
	if f.hub.Subscribers(topic) == 0 {
		return
	}
	payload, err := json.Marshal(Event{Topic: topic, At: f.now().UTC(), Data: data})
	if err != nil {
		f.logger.Warn("encode feed event failed", "topic", topic, "error", err)
		return
	}
	f.hub.Broadcast(topic, payload)
}
