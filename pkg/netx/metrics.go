package netx

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce  sync.Once
	bindAttempts *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydrobench",
			Name:      "bind_attempts_total",
			Help:      "Port bind attempts by outcome",
		}, []string{"outcome"})
		if err := prometheus.Register(counter); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
					counter = existing
				}
			}
		}
		bindAttempts = counter
	})
}

func recordAttempt(outcome string) {
	initMetrics()
	bindAttempts.With(prometheus.Labels{"outcome": outcome}).Inc()
}
