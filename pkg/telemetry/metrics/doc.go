// Package metrics provides Prometheus metrics for chatproxy.
//
// # Metrics
//
// Request metrics describe what clients observe: request counts by upstream,
// model, mode and status code, end-to-end duration (streams included), the
// number of requests in flight, and relayed stream chunks and stream errors.
//
// Backend metrics describe the upstreams: failed calls by status code,
// answer latency, and a health gauge fed by readiness checks.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle("/metrics", collector.Handler())
//
//	collector.RequestStarted()
//	defer collector.RequestFinished()
//	collector.RecordRequest("openai", "gpt-4o", "stream", 200, elapsed)
//
// # Cardinality
//
// The model label is client-controlled. Only the first MaxModelCardinality
// distinct models get their own series; later ones are folded into "other".
package metrics
