// Package health serves the proxy's liveness, readiness and version
// endpoints.
//
// Liveness (/health) answers {"status":"ok"} whenever the process can serve
// HTTP and never touches a backend. Readiness (/ready) runs the checks
// registered on a Checker, one per upstream with a health path, each bounded
// by its own timeout:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("ollama", upstream.HealthCheck)
//	mux.Handle("/health", health.LivenessHandler())
//	mux.Handle("/ready", checker.ReadinessHandler())
//
// A degraded report is served with status 503 so orchestrators stop routing
// traffic until the upstream recovers.
package health
