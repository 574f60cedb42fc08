package hydrorpc

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/splax/hydrobench/pkg/domain"
)

func TestReadingDomainRoundTrip(t *testing.T) {
	captured := time.Date(2025, time.March, 3, 10, 15, 0, 0, time.UTC)
	in := domain.Reading{SourceID: "bench-1", Temperature: 21.5, Humidity: 40, Conductivity: 0, CapturedAt: captured}

	wire := NewReading(in)
	if wire.CapturedAt != "2025-03-03T10:15:00Z" {
		t.Fatalf("unexpected captured_at %q", wire.CapturedAt)
	}
	out, err := wire.Domain()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestReadingValidateReportsMissingFields(t *testing.T) {
	v := 1.0
	cases := map[string]*Reading{
		"nil":          nil,
		"source":       {Temperature: &v, Humidity: &v, Conductivity: &v},
		"temperature":  {SourceID: "a", Humidity: &v, Conductivity: &v},
		"humidity":     {SourceID: "a", Temperature: &v, Conductivity: &v},
		"conductivity": {SourceID: "a", Temperature: &v, Humidity: &v},
	}
	for name, r := range cases {
		if err := r.Validate(); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestReadingZeroMetricIsPresent(t *testing.T) {
	zero := 0.0
	r := &Reading{SourceID: "a", Temperature: &zero, Humidity: &zero, Conductivity: &zero}
	if err := r.Validate(); err != nil {
		t.Fatalf("zero values must be accepted: %v", err)
	}
}

func TestReadingRejectsBadTimestamp(t *testing.T) {
	v := 1.0
	r := &Reading{SourceID: "a", Temperature: &v, Humidity: &v, Conductivity: &v, CapturedAt: "yesterday"}
	if _, err := r.Domain(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestReadingBatchDomainNamesIndex(t *testing.T) {
	batch := NewReadingBatch([]domain.Reading{{SourceID: "a"}})
	batch.Readings = append(batch.Readings, &Reading{SourceID: "b"})
	_, err := batch.Domain()
	if err == nil {
		t.Fatal("expected error for incomplete reading")
	}
	if got := err.Error(); !strings.HasPrefix(got, "readings[1]") {
		t.Fatalf("expected error to name readings[1], got %q", got)
	}
}

func TestSummaryBatchDomainRequiresSource(t *testing.T) {
	batch := &SummaryBatch{Summaries: []*MetricSummary{{SourceID: ""}}}
	if _, err := batch.Domain(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	var nilBatch *SummaryBatch
	if _, err := nilBatch.Domain(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for nil batch, got %v", err)
	}
}
