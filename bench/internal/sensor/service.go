// Package sensor synthesises readings for a bench endpoint.
package sensor

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/grpc/status"

	"github.com/splax/hydrobench/pkg/domain"
	"github.com/splax/hydrobench/pkg/hydrorpc"
)

// Service implements hydrorpc.BenchServer for one bench identity.
type Service struct {
	id     string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	random *rand.Rand
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for captured_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand overrides the random source.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) {
		if r != nil {
			s.random = r
		}
	}
}

// NewService constructs a Service reporting readings as id.
func NewService(id string, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		id:     id,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.random == nil {
		s.random = rand.New(rand.NewSource(s.now().UnixNano()))
	}
	return s
}

// ID returns the bench identity.
func (s *Service) ID() string {
	return s.id
}

// Sample draws a new reading.
func (s *Service) Sample() domain.Reading {
	s.mu.Lock()
	temperature := draw(s.random, domain.TemperatureMin, domain.TemperatureMax)
	humidity := draw(s.random, domain.HumidityMin, domain.HumidityMax)
	conductivity := draw(s.random, domain.ConductivityMin, domain.ConductivityMax)
	s.mu.Unlock()

	return domain.Reading{
		SourceID:     s.id,
		Temperature:  temperature,
		Humidity:     humidity,
		Conductivity: conductivity,
		CapturedAt:   s.now().UTC(),
	}
}

// SendData answers BenchService.SendData with a fresh reading.
func (s *Service) SendData(ctx context.Context, _ *hydrorpc.Empty) (*hydrorpc.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	reading := s.Sample()
	s.logger.Debug("reading sent",
		"temperature", reading.Temperature,
		"humidity", reading.Humidity,
		"conductivity", reading.Conductivity,
	)
	return hydrorpc.NewReading(reading), nil
}

// draw returns a value in [min, max) truncated to two decimals.
func draw(r *rand.Rand, min, max float64) float64 {
	v := math.Floor((min+r.Float64()*(max-min))*100) / 100
	if v >= max {
		v = max - 0.01
	}
	if v < min {
		v = min
	}
	return v
}
