// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server wraps its mux in this order, outermost first:
//
//	handler = Chain(mux,
//	    RecoveryMiddleware,
//	    RequestIDMiddleware,
//	    TracingMiddleware(tracer),
//	    LoggingMiddleware,
//	    CORSMiddleware(&cfg.Proxy.CORS),
//	)
//
// Recovery is outermost so that a panic anywhere below still produces a
// JSON 500. The request ID is assigned before tracing and logging so that
// both can attach it.
//
// # Streaming
//
// Wrapped response writers forward Flush and implement Unwrap, so handlers
// can stream Server-Sent Events through http.ResponseController without
// knowing which middleware sits above them.
package middleware
