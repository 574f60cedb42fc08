// Package aggregate groups readings by source and computes their summaries.
package aggregate

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/splax/hydrobench/calculation/internal/stats"
	"github.com/splax/hydrobench/pkg/domain"
	"github.com/splax/hydrobench/pkg/hydrorpc"
)

type group struct {
	sourceID     string
	temperature  []float64
	humidity     []float64
	conductivity []float64
}

// Compute returns one summary per source, in order of first appearance.
func Compute(readings []domain.Reading) []domain.MetricSummary {
	index := make(map[string]int)
	groups := make([]*group, 0)
	for _, r := range readings {
		i, ok := index[r.SourceID]
		if !ok {
			i = len(groups)
			index[r.SourceID] = i
			groups = append(groups, &group{sourceID: r.SourceID})
		}
		g := groups[i]
		g.temperature = append(g.temperature, r.Temperature)
		g.humidity = append(g.humidity, r.Humidity)
		g.conductivity = append(g.conductivity, r.Conductivity)
	}

	summaries := make([]domain.MetricSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, domain.MetricSummary{
			SourceID:           g.sourceID,
			MeanTemperature:    stats.Mean(g.temperature),
			MedianTemperature:  stats.Median(g.temperature),
			MeanHumidity:       stats.Mean(g.humidity),
			MedianHumidity:     stats.Median(g.humidity),
			MeanConductivity:   stats.Mean(g.conductivity),
			MedianConductivity: stats.Median(g.conductivity),
		})
	}
	return summaries
}

// Service implements hydrorpc.CalculationServer. It holds no per-call state.
type Service struct {
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ComputeMetrics validates the batch and returns the per-source summaries.
// An empty batch yields an empty result and doubles as a liveness probe.
func (s *Service) ComputeMetrics(ctx context.Context, in *hydrorpc.ReadingBatch) (*hydrorpc.SummaryBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	readings, err := in.Domain()
	if err != nil {
		s.logger.Warn("rejected reading batch", "error", err)
		return nil, status.Errorf(codes.InvalidArgument, "invalid batch: %v", err)
	}
	summaries := Compute(readings)
	if len(readings) > 0 {
		s.logger.Debug("computed summaries", "readings", len(readings), "sources", len(summaries))
	}
	return hydrorpc.NewSummaryBatch(summaries), nil
}
