package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine call Prometheus metrics, labelled by port, backend and operation.
var (
	EngineCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storaged",
			Name:      "engine_call_duration_seconds",
			Help:      "Storage engine call duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"port", "backend", "op"},
	)

	EngineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storaged",
			Name:      "engine_errors_total",
			Help:      "Storage engine call failures",
		},
		[]string{"port", "backend", "op", "kind"},
	)
)

var registerEngineOnce sync.Once

// RegisterEngineMetrics registers the engine metrics. Safe to call more than once.
func RegisterEngineMetrics() {
	registerEngineOnce.Do(func() {
		prometheus.MustRegister(EngineCallDuration)
		prometheus.MustRegister(EngineErrorsTotal)
	})
}

// ObserveEngineCall records one engine call. kind is empty on success,
// otherwise the error class ("timeout", "engine", ...).
func ObserveEngineCall(port, backend, op string, d time.Duration, kind string) {
	EngineCallDuration.WithLabelValues(port, backend, op).Observe(d.Seconds())
	if kind != "" {
		EngineErrorsTotal.WithLabelValues(port, backend, op, kind).Inc()
	}
}
