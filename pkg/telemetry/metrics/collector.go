package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/chatproxy/pkg/config"
)

// Collector owns every Prometheus metric exported by the proxy. A nil
// *Collector and a disabled one both accept calls and record nothing, so
// callers never need to guard.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	backendMetrics *BackendMetrics

	// models caps the distinct values of the model label.
	models *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one, so several collectors can coexist in
// tests.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}
	maxModels := cfg.MaxModelCardinality
	if maxModels <= 0 {
		maxModels = config.DefaultMaxModelCardinality
	}

	return &Collector{
		config:         cfg,
		registry:       registry,
		requestMetrics: NewRequestMetrics(cfg, registry),
		backendMetrics: NewBackendMetrics(cfg, registry),
		models:         NewCardinalityLimiter(maxModels),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRequest records a finished chat completion request.
//
// Parameters:
//   - backend: upstream that served the request ("" if none was reached)
//   - model: requested model
//   - mode: "stream" or "sync"
//   - status: HTTP status sent to the client
//   - duration: total handling time, including the whole stream
func (c *Collector) RecordRequest(backend, model, mode string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}

	if !c.models.Allow(model) {
		model = "other"
	}

	c.requestMetrics.RecordRequest(backendLabel(backend), model, mode, strconv.Itoa(status), duration)
}

// RequestStarted increments the in-flight gauge. Call RequestFinished when
// the request completes.
func (c *Collector) RequestStarted() {
	if !c.enabled() {
		return
	}
	c.requestMetrics.inFlight.Inc()
}

// RequestFinished decrements the in-flight gauge.
func (c *Collector) RequestFinished() {
	if !c.enabled() {
		return
	}
	c.requestMetrics.inFlight.Dec()
}

// RecordStream records the outcome of a relayed stream.
func (c *Collector) RecordStream(backend string, chunks int, failed bool) {
	if !c.enabled() {
		return
	}

	c.requestMetrics.RecordStream(backendLabel(backend), chunks, failed)
}

// RecordBackendError records a failed backend call by HTTP status. A zero
// status (network failure) is reported as "error".
func (c *Collector) RecordBackendError(backend string, status int) {
	if !c.enabled() {
		return
	}

	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	c.backendMetrics.RecordError(backendLabel(backend), code)
}

// RecordBackendLatency records the time until the backend answered (the
// headers of a stream, or the full body of a buffered response).
func (c *Collector) RecordBackendLatency(backend string, latency time.Duration) {
	if !c.enabled() {
		return
	}

	c.backendMetrics.RecordLatency(backendLabel(backend), latency)
}

// UpdateBackendHealth sets the health gauge of an upstream (1 healthy, 0 not).
func (c *Collector) UpdateBackendHealth(backend string, healthy bool) {
	if !c.enabled() {
		return
	}

	c.backendMetrics.UpdateHealth(backendLabel(backend), healthy)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func backendLabel(backend string) string {
	if backend == "" {
		return "none"
	}
	return backend
}

// CardinalityLimiter bounds the number of distinct values admitted for a
// label.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already known or still fits under the
// limit. Admitted values are remembered.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of admitted values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
