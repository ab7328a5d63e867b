// Package telemetry groups the observability packages of the proxy.
//
// # Components
//
//   - logging: slog-based structured logging with credential and PII
//     redaction and request-scoped attributes (request ID, model, backend)
//   - metrics: Prometheus request, stream and upstream metrics
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	logger, err := logging.New(logging.ConfigFrom(&cfg.Telemetry.Logging))
//	if err != nil {
//		return err
//	}
//	slog.SetDefault(logger.Slog())
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// Every component is safe to leave disabled: a nil metrics collector and a
// disabled tracer record nothing.
package telemetry
