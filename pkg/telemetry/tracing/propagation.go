package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
)

// Propagator carries W3C trace context and baggage. It is also installed as
// the global propagator by New.
var Propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Extract returns ctx carrying the trace context found in headers
// (traceparent, tracestate, baggage). Without such headers ctx is returned
// unchanged.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return Propagator.Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context of ctx into headers, for outgoing
// requests.
func Inject(ctx context.Context, headers http.Header) {
	Propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}
