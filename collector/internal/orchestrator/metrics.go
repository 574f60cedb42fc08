package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/hydrobench/pkg/hydrorpc"
)

var pollBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	metricsOnce    sync.Once
	pollsTotal     *prometheus.CounterVec
	pollDuration   prometheus.Histogram
	computesTotal  *prometheus.CounterVec
	endpointsGauge *prometheus.GaugeVec
	readingLogSize prometheus.Gauge
)

func initMetrics() {
	metricsOnce.Do(func() {
		pollsTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydrobench",
			Subsystem: "collector",
			Name:      "polls_total",
			Help:      "Endpoint polls by outcome kind",
		}, []string{"kind"}))
		computesTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydrobench",
			Subsystem: "collector",
			Name:      "computations_total",
			Help:      "Metric computations by outcome kind",
		}, []string{"kind"}))
		endpointsGauge = registerGaugeVec(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hydrobench",
			Subsystem: "collector",
			Name:      "endpoints",
			Help:      "Registered endpoints by connection state",
		}, []string{"state"}))

		histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hydrobench",
			Subsystem: "collector",
			Name:      "poll_duration_seconds",
			Help:      "Latency of endpoint polls",
			Buckets:   pollBuckets,
		})
		if err := prometheus.Register(histogram); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(prometheus.Histogram); ok {
					histogram = existing
				}
			}
		}
		pollDuration = histogram

		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydrobench",
			Subsystem: "collector",
			Name:      "reading_log_size",
			Help:      "Readings held in the collector log",
		})
		if err := prometheus.Register(gauge); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
					gauge = existing
				}
			}
		}
		readingLogSize = gauge
	})
}

func registerCounterVec(counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}

func registerGaugeVec(gauge *prometheus.GaugeVec) *prometheus.GaugeVec {
	if err := prometheus.Register(gauge); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing
			}
		}
	}
	return gauge
}

func recordPoll(kind hydrorpc.Kind) {
	initMetrics()
	pollsTotal.With(prometheus.Labels{"kind": string(kind)}).Inc()
}

func observePoll(d time.Duration) {
	initMetrics()
	pollDuration.Observe(d.Seconds())
}

func recordCompute(kind hydrorpc.Kind) {
	initMetrics()
	computesTotal.With(prometheus.Labels{"kind": string(kind)}).Inc()
}

func setGauges(total, connected, logSize int) {
	initMetrics()
	endpointsGauge.With(prometheus.Labels{"state": string(StateConnected)}).Set(float64(connected))
	endpointsGauge.With(prometheus.Labels{"state": "other"}).Set(float64(total - connected))
	readingLogSize.Set(float64(logSize))
}
