// Package server provides the HTTP server of the chat-completions proxy.
//
// The server routes:
//
//	POST /v1/chat/completions   chat completions, buffered or streamed
//	GET  /health                liveness, always {"status":"ok"}
//	GET  /ready                 upstream readiness checks
//	GET  /version               build information
//	GET  /metrics               Prometheus metrics, when enabled
//
// Every route is wrapped in the middleware chain from pkg/proxy/middleware.
//
// # Basic Usage
//
//	router, err := backend.NewFromConfig(&cfg.Backend)
//	if err != nil {
//	    return err
//	}
//	srv, err := server.New(cfg, server.Options{Backend: router})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // returns after ctx is done and shutdown completes
//
// # Shutdown
//
// When the context passed to Start is canceled the listener is closed and
// in-flight requests, including open streams, get proxy.shutdown_timeout to
// finish. Connections still open after that are closed.
//
// The write timeout defaults to zero so long streams are not cut by the
// server itself.
package server
