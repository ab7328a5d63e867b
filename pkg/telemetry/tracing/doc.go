// Package tracing provides OpenTelemetry tracing for chatproxy.
//
// Each chat request gets a server span from the tracing middleware, and each
// upstream call a client span from the HTTP backend. The W3C trace context
// is extracted from incoming requests and injected into upstream requests.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio      # always | never | ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
//
// Spans are exported over OTLP gRPC. Samplers are parent-based: an incoming
// sampled traceparent keeps the whole request sampled.
//
// With tracing disabled a no-op tracer is used, but the propagator is still
// installed so trace headers pass through to the upstream.
package tracing
