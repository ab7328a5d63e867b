package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/chatproxy/pkg/config"
)

// BackendMetrics tracks calls to upstream completion endpoints.
//
// Metrics:
//   - chatproxy_backend_errors_total{backend,code}
//   - chatproxy_backend_latency_seconds{backend}
//   - chatproxy_backend_health{backend}
type BackendMetrics struct {
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	health      *prometheus.GaugeVec
}

// NewBackendMetrics creates and registers backend metrics with the provided registry.
func NewBackendMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BackendMetrics {
	bm := &BackendMetrics{
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_errors_total",
				Help:      "Total number of failed backend calls by HTTP status",
			},
			[]string{"backend", "code"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_latency_seconds",
				Help:      "Time until the backend answered in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"backend"},
		),

		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_health",
				Help:      "Upstream health (1 = healthy, 0 = unhealthy)",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(bm.errorsTotal, bm.latency, bm.health)

	return bm
}

// RecordError records a failed backend call.
func (bm *BackendMetrics) RecordError(backend, code string) {
	bm.errorsTotal.WithLabelValues(backend, code).Inc()
}

// RecordLatency records the answer latency of a backend call.
func (bm *BackendMetrics) RecordLatency(backend string, latency time.Duration) {
	bm.latency.WithLabelValues(backend).Observe(latency.Seconds())
}

// UpdateHealth sets the health gauge of an upstream.
func (bm *BackendMetrics) UpdateHealth(backend string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	bm.health.WithLabelValues(backend).Set(value)
}
