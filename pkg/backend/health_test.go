package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{base: "http://127.0.0.1:11434/v1", path: "/api/version", want: "http://127.0.0.1:11434/api/version"},
		{base: "https://api.openai.com/v1/", path: "/v1/models", want: "https://api.openai.com/v1/models"},
		{base: "http://localhost:4000", path: "/health", want: "http://localhost:4000/health"},
	}

	for _, tt := range tests {
		got, err := healthURL(tt.base, tt.path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("healthURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestHTTPBackend_HealthCheck(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"version":"0.5.0"}`))
	}))
	defer srv.Close()

	cfg := testUpstream(srv.URL)
	cfg.HealthPath = "/api/version"
	b := NewHTTPBackend(cfg)

	if err := b.HealthCheck(context.Background()); err == nil {
		t.Error("expected failing health check")
	}

	healthy.Store(true)
	if err := b.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected passing health check, got %v", err)
	}
	if !b.IsHealthy() {
		t.Error("expected backend to be healthy")
	}
}

type flakyChecker struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyChecker) HealthCheck(context.Context) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("not yet")
	}
	return nil
}

func TestWaitHealthy(t *testing.T) {
	checker := &flakyChecker{failures: 2}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := WaitHealthy(ctx, checker, 5*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := checker.calls.Load(); got != 3 {
		t.Errorf("expected 3 checks, got %d", got)
	}
}

func TestWaitHealthy_Timeout(t *testing.T) {
	checker := &flakyChecker{failures: 1 << 30}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := WaitHealthy(ctx, checker, 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
