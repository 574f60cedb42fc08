package hydrorpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/splax/hydrobench/pkg/domain"
)

// ErrMalformed marks a payload that is missing required fields or carries
// values that cannot be parsed.
var ErrMalformed = errors.New("malformed payload")

// Empty is the request of BenchService.SendData.
type Empty struct{}

// Reading is the wire form of domain.Reading. Metric fields are pointers so
// that an absent field can be told apart from a zero value.
type Reading struct {
	SourceID     string   `json:"source_id"`
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
	Conductivity *float64 `json:"conductivity"`
	// CapturedAt is an RFC 3339 timestamp.
	CapturedAt string `json:"captured_at,omitempty"`
}

// ReadingBatch is the request of CalculationService.ComputeMetrics.
type ReadingBatch struct {
	Readings []*Reading `json:"readings"`
}

// MetricSummary is the wire form of domain.MetricSummary.
type MetricSummary struct {
	SourceID           string  `json:"source_id"`
	MeanTemperature    float64 `json:"mean_temperature"`
	MedianTemperature  float64 `json:"median_temperature"`
	MeanHumidity       float64 `json:"mean_humidity"`
	MedianHumidity     float64 `json:"median_humidity"`
	MeanConductivity   float64 `json:"mean_conductivity"`
	MedianConductivity float64 `json:"median_conductivity"`
}

// SummaryBatch is the response of CalculationService.ComputeMetrics.
type SummaryBatch struct {
	Summaries []*MetricSummary `json:"summaries"`
}

// NewReading converts a domain reading to its wire form.
func NewReading(r domain.Reading) *Reading {
	temperature, humidity, conductivity := r.Temperature, r.Humidity, r.Conductivity
	out := &Reading{
		SourceID:     r.SourceID,
		Temperature:  &temperature,
		Humidity:     &humidity,
		Conductivity: &conductivity,
	}
	if !r.CapturedAt.IsZero() {
		out.CapturedAt = r.CapturedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// Validate checks that every required field is present.
func (r *Reading) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: reading is null", ErrMalformed)
	}
	if r.SourceID == "" {
		return fmt.Errorf("%w: source_id is required", ErrMalformed)
	}
	if r.Temperature == nil {
		return fmt.Errorf("%w: temperature is required", ErrMalformed)
	}
	if r.Humidity == nil {
		return fmt.Errorf("%w: humidity is required", ErrMalformed)
	}
	if r.Conductivity == nil {
		return fmt.Errorf("%w: conductivity is required", ErrMalformed)
	}
	return nil
}

// Domain validates r and converts it to a domain reading.
func (r *Reading) Domain() (domain.Reading, error) {
	if err := r.Validate(); err != nil {
		return domain.Reading{}, err
	}
	out := domain.Reading{
		SourceID:     r.SourceID,
		Temperature:  *r.Temperature,
		Humidity:     *r.Humidity,
		Conductivity: *r.Conductivity,
	}
	if r.CapturedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, r.CapturedAt)
		if err != nil {
			return domain.Reading{}, fmt.Errorf("%w: captured_at: %v", ErrMalformed, err)
		}
		out.CapturedAt = ts.UTC()
	}
	return out, nil
}

// NewReadingBatch converts readings to a request batch.
func NewReadingBatch(readings []domain.Reading) *ReadingBatch {
	batch := &ReadingBatch{Readings: make([]*Reading, 0, len(readings))}
	for _, r := range readings {
		batch.Readings = append(batch.Readings, NewReading(r))
	}
	return batch
}

// Domain converts every reading of the batch, reporting the first invalid index.
func (b *ReadingBatch) Domain() ([]domain.Reading, error) {
	if b == nil {
		return nil, nil
	}
	out := make([]domain.Reading, 0, len(b.Readings))
	for i, r := range b.Readings {
		converted, err := r.Domain()
		if err != nil {
			return nil, fmt.Errorf("readings[%d]: %w", i, err)
		}
		out = append(out, converted)
	}
	return out, nil
}

// NewSummaryBatch converts summaries to a response batch.
func NewSummaryBatch(summaries []domain.MetricSummary) *SummaryBatch {
	batch := &SummaryBatch{Summaries: make([]*MetricSummary, 0, len(summaries))}
	for _, s := range summaries {
		batch.Summaries = append(batch.Summaries, &MetricSummary{
			SourceID:           s.SourceID,
			MeanTemperature:    s.MeanTemperature,
			MedianTemperature:  s.MedianTemperature,
			MeanHumidity:       s.MeanHumidity,
			MedianHumidity:     s.MedianHumidity,
			MeanConductivity:   s.MeanConductivity,
			MedianConductivity: s.MedianConductivity,
		})
	}
	return batch
}

// Domain converts the batch to domain summaries, rejecting entries without a source.
func (b *SummaryBatch) Domain() ([]domain.MetricSummary, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: summary batch is null", ErrMalformed)
	}
	out := make([]domain.MetricSummary, 0, len(b.Summaries))
	for i, s := range b.Summaries {
		if s == nil || s.SourceID == "" {
			return nil, fmt.Errorf("%w: summaries[%d]: source_id is required", ErrMalformed, i)
		}
		out = append(out, domain.MetricSummary{
			SourceID:           s.SourceID,
			MeanTemperature:    s.MeanTemperature,
			MedianTemperature:  s.MedianTemperature,
			MeanHumidity:       s.MeanHumidity,
			MedianHumidity:     s.MedianHumidity,
			MeanConductivity:   s.MeanConductivity,
			MedianConductivity: s.MedianConductivity,
		})
	}
	return out, nil
}
