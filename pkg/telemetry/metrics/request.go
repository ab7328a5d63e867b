package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/chatproxy/pkg/config"
)

// RequestMetrics tracks chat completion requests as seen by clients.
//
// Metrics:
//   - chatproxy_requests_total{backend,model,mode,code}
//   - chatproxy_request_duration_seconds{backend,mode}
//   - chatproxy_in_flight_requests
//   - chatproxy_stream_chunks_total{backend}
//   - chatproxy_stream_errors_total{backend}
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	streamChunks    *prometheus.CounterVec
	streamErrors    *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of chat completion requests by outcome",
			},
			[]string{"backend", "model", "mode", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of chat completion requests in seconds, including streaming",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"backend", "mode"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "in_flight_requests",
				Help:      "Number of chat completion requests currently being served",
			},
		),

		streamChunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_chunks_total",
				Help:      "Total number of SSE chunks relayed to clients",
			},
			[]string{"backend"},
		),

		streamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_errors_total",
				Help:      "Total number of streams terminated by a backend error",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.inFlight,
		rm.streamChunks,
		rm.streamErrors,
	)

	return rm
}

// RecordRequest records one finished request.
func (rm *RequestMetrics) RecordRequest(backend, model, mode, code string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(backend, model, mode, code).Inc()
	rm.requestDuration.WithLabelValues(backend, mode).Observe(duration.Seconds())
}

// RecordStream records the chunks of one stream and whether it ended with
// an error event.
func (rm *RequestMetrics) RecordStream(backend string, chunks int, failed bool) {
	rm.streamChunks.WithLabelValues(backend).Add(float64(chunks))
	if failed {
		rm.streamErrors.WithLabelValues(backend).Inc()
	}
}
