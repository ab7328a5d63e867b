package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// HealthCheck probes the upstream's health path with GET. Without a health
// path it reports the passive health gathered from completion calls.
func (b *HTTPBackend) HealthCheck(ctx context.Context) error {
	if b.config.HealthPath == "" {
		h := b.Health()
		if !h.Healthy {
			return fmt.Errorf("upstream %q unhealthy after %d consecutive failures: %w", b.config.Name, h.ConsecutiveFailures, h.LastError)
		}
		return nil
	}

	target, err := healthURL(b.config.BaseURL, b.config.HealthPath)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	if b.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.config.APIKey)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		b.updateHealth(false, err)
		return fmt.Errorf("upstream %q health check failed: %w", b.config.Name, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("upstream %q health check returned status %d", b.config.Name, resp.StatusCode)
		b.updateHealth(false, err)
		return err
	}

	b.updateHealth(true, nil)
	slog.DebugContext(ctx, "upstream health check passed", "backend", b.config.Name, "latency_ms", time.Since(start).Milliseconds())
	return nil
}

// healthURL resolves path against the host of baseURL, so "/api/version"
// on "http://host:11434/v1" becomes "http://host:11434/api/version".
func healthURL(baseURL, path string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid health path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// WaitHealthy polls checker every interval until a check passes or ctx ends.
// The returned error wraps the last check failure.
func WaitHealthy(ctx context.Context, checker HealthChecker, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = checker.HealthCheck(ctx); lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Join(fmt.Errorf("backend not healthy: %w", ctx.Err()), lastErr)
		case <-ticker.C:
		}
	}
}
