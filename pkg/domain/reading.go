package domain

import "time"

// Metric value ranges for synthetic readings. Lower bounds are inclusive,
// upper bounds exclusive.
const (
	TemperatureMin  = 10.0
	TemperatureMax  = 40.0
	HumidityMin     = 0.0
	HumidityMax     = 100.0
	ConductivityMin = 0.0
	ConductivityMax = 500.0
)

// Reading is one sample taken by a bench. Readings are immutable once produced.
type Reading struct {
	SourceID     string    `json:"source_id"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	Conductivity float64   `json:"conductivity"`
	CapturedAt   time.Time `json:"captured_at"`
}

// MetricSummary holds the per-source mean and median of every metric,
// rounded to two decimals.
type MetricSummary struct {
	SourceID           string  `json:"source_id"`
	MeanTemperature    float64 `json:"mean_temperature"`
	MedianTemperature  float64 `json:"median_temperature"`
	MeanHumidity       float64 `json:"mean_humidity"`
	MedianHumidity     float64 `json:"median_humidity"`
	MeanConductivity   float64 `json:"mean_conductivity"`
	MedianConductivity float64 `json:"median_conductivity"`
}
