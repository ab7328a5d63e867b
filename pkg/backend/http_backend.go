package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/chatproxy/pkg/config"
	"mercator-hq/chatproxy/pkg/telemetry/logging"
	"mercator-hq/chatproxy/pkg/telemetry/metrics"
	"mercator-hq/chatproxy/pkg/telemetry/tracing"
)

// unhealthyThreshold is the number of consecutive failed calls after which
// an upstream is reported unhealthy.
const unhealthyThreshold = 3

// maxErrorBody caps how much of an upstream error response is read.
const maxErrorBody = 1 << 20

// SecretResolver looks up named secrets. *secrets.Manager satisfies it.
type SecretResolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Health is a snapshot of an upstream's passive health.
type Health struct {
	Healthy             bool
	ConsecutiveFailures int
	LastError           error
	LastCheck           time.Time
	TotalRequests       int64
	FailedRequests      int64
}

// Option configures an HTTPBackend.
type Option func(*HTTPBackend)

// WithSecrets resolves api_key_secret through r.
func WithSecrets(r SecretResolver) Option {
	return func(b *HTTPBackend) { b.secrets = r }
}

// WithTracer emits client spans through t.
func WithTracer(t *tracing.Tracer) Option {
	return func(b *HTTPBackend) {
		if t != nil {
			b.tracer = t
		}
	}
}

// WithMetrics records upstream latency, errors and health on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *HTTPBackend) { b.metrics = c }
}

// WithHTTPClient replaces the pooled client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *HTTPBackend) { b.client = c }
}

// HTTPBackend forwards completions to one OpenAI-compatible upstream.
//
// # Credentials
//
// The upstream Authorization header is chosen in this order:
//   - the caller's credential, when the request carried one
//   - the secret named by api_key_secret, resolved through WithSecrets
//   - the static api_key of the upstream
//
// With none of them the request is sent unauthenticated, which is what
// local servers such as Ollama expect.
//
// # Retries
//
// Network errors and 5xx answers are retried up to max_retries times with
// exponential backoff starting at retry_backoff. A 4xx, including 429, is
// returned at once so that the caller sees the upstream's Retry-After.
//
//	backend:
//	  upstreams:
//	    - name: openai
//	      base_url: https://api.openai.com/v1
//	      api_key_secret: openai-key
//	      max_retries: 2
//	      retry_backoff: 500ms
//
// # Health
//
// Every call feeds a passive health record: three consecutive failed calls
// mark the upstream unhealthy and the next success clears it. HealthCheck
// probes health_path on demand for the readiness endpoint.
type HTTPBackend struct {
	config  config.UpstreamConfig
	client  *http.Client
	secrets SecretResolver
	tracer  *tracing.Tracer
	metrics *metrics.Collector

	healthMu sync.RWMutex
	health   Health
}

// NewHTTPBackend creates a backend for cfg with its own connection pool.
func NewHTTPBackend(cfg config.UpstreamConfig, opts ...Option) *HTTPBackend {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	}

	b := &HTTPBackend{
		config: cfg,
		client: &http.Client{Transport: transport},
		tracer: tracing.NewWithProvider(noop.NewTracerProvider()),
		health: Health{Healthy: true, LastCheck: time.Now()},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the upstream name.
func (b *HTTPBackend) Name() string {
	return b.config.Name
}

// HealthPath returns the configured readiness path, possibly empty.
func (b *HTTPBackend) HealthPath() string {
	return b.config.HealthPath
}

// Complete posts params to <base_url>/chat/completions. A text/event-stream
// answer is returned as a Stream; anything else is decoded as a Result.
//
// The stream flag in params is forwarded untouched and the upstream decides
// the shape of the answer. Response headers are bounded by the upstream
// timeout; once a stream has started, only ctx ends it.
//
// Errors are always *Error. StatusCode is the upstream status, 400 when
// params cannot be encoded, 502 for an undecodable answer, or 0 when the
// upstream could not be reached.
func (b *HTTPBackend) Complete(ctx context.Context, credential string, params map[string]any) (*Response, error) {
	ctx = logging.WithBackend(ctx, b.config.Name)

	body, err := b.encode(params)
	if err != nil {
		return nil, &Error{Backend: b.config.Name, StatusCode: http.StatusBadRequest, Message: "failed to encode request", Cause: err}
	}

	headers := b.headers(ctx, credential)

	ctx, span := b.tracer.Start(ctx, "backend.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			tracing.AttrBackend.String(b.config.Name),
			tracing.AttrModel.String(gjson.GetBytes(body, "model").String()),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := b.do(ctx, span, body, headers)
	b.metrics.RecordBackendLatency(b.config.Name, time.Since(start))
	if err != nil {
		tracing.SetError(span, err)
		var be *Error
		if errors.As(err, &be) {
			b.metrics.RecordBackendError(b.config.Name, be.StatusCode)
		}
		return nil, err
	}
	tracing.SetHTTPStatus(span, resp.StatusCode)

	if isEventStream(resp.Header.Get("Content-Type")) {
		span.SetAttributes(tracing.AttrStream.Bool(true))
		return &Response{Backend: b.config.Name, Stream: newSSEStream(b.config.Name, resp.Body)}, nil
	}

	defer resp.Body.Close()
	result, err := decodeResult(resp.Body)
	if err != nil {
		err = &Error{Backend: b.config.Name, StatusCode: http.StatusBadGateway, Message: "invalid JSON response from upstream", Cause: err}
		tracing.SetError(span, err)
		return nil, err
	}
	return &Response{Backend: b.config.Name, Result: result}, nil
}

// encode marshals params and, when configured, strips the routing prefix
// from the model.
func (b *HTTPBackend) encode(params map[string]any) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if !b.config.StripPrefix {
		return body, nil
	}

	model := gjson.GetBytes(body, "model").String()
	for _, prefix := range b.config.ModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return sjson.SetBytes(body, "model", strings.TrimPrefix(model, prefix))
		}
	}
	return body, nil
}

// headers builds the upstream request headers. The caller's credential wins;
// otherwise the upstream's secret, then its static key, is used.
func (b *HTTPBackend) headers(ctx context.Context, credential string) http.Header {
	h := make(http.Header)
	for k, v := range b.config.Headers {
		h.Set(k, v)
	}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json, text/event-stream")

	if credential == "" && b.config.APIKeySecret != "" && b.secrets != nil {
		secret, err := b.secrets.GetSecret(ctx, b.config.APIKeySecret)
		if err != nil {
			slog.WarnContext(ctx, "failed to resolve upstream API key secret", "error", err)
		} else {
			credential = secret
		}
	}
	if credential == "" {
		credential = b.config.APIKey
	}
	if credential != "" {
		h.Set("Authorization", "Bearer "+credential)
	}

	return h
}

// do sends the request, retrying network errors and 5xx answers with
// exponential backoff. Only a 2xx response is returned.
func (b *HTTPBackend) do(ctx context.Context, span trace.Span, body []byte, headers http.Header) (*http.Response, error) {
	url := strings.TrimRight(b.config.BaseURL, "/") + "/chat/completions"

	var lastErr *Error
	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := b.config.RetryBackoff * time.Duration(1<<(attempt-1))
			slog.DebugContext(ctx, "retrying upstream request",
				"attempt", attempt,
				"max_retries", b.config.MaxRetries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, &Error{Backend: b.config.Name, Message: "request cancelled", Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}
		span.SetAttributes(tracing.AttrAttempt.Int(attempt + 1))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, &Error{Backend: b.config.Name, Message: "failed to create request", Cause: err}
		}
		req.Header = headers.Clone()
		tracing.Inject(ctx, req.Header)

		resp, err := b.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &Error{Backend: b.config.Name, Message: "request cancelled", Cause: ctx.Err()}
			}
			lastErr = &Error{Backend: b.config.Name, Message: "upstream unreachable", Cause: err}
			b.recordRequest(false)
			slog.WarnContext(ctx, "upstream request failed", "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			b.recordRequest(true)
			b.updateHealth(true, nil)
			return resp, nil
		}

		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		statusErr := newStatusError(b.config.Name, resp, errBody)
		b.recordRequest(false)

		if !statusErr.Retryable() {
			// A 4xx is the caller's problem, not the upstream's.
			return nil, statusErr
		}

		lastErr = statusErr
		slog.WarnContext(ctx, "upstream returned server error",
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	b.updateHealth(false, lastErr)
	return nil, lastErr
}

func (b *HTTPBackend) recordRequest(success bool) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()

	b.health.TotalRequests++
	if !success {
		b.health.FailedRequests++
	}
}

func (b *HTTPBackend) updateHealth(success bool, err error) {
	b.healthMu.Lock()
	b.health.LastCheck = time.Now()
	if success {
		b.health.Healthy = true
		b.health.ConsecutiveFailures = 0
		b.health.LastError = nil
	} else {
		b.health.ConsecutiveFailures++
		b.health.LastError = err
		if b.health.ConsecutiveFailures >= unhealthyThreshold && b.health.Healthy {
			b.health.Healthy = false
			slog.Warn("upstream marked unhealthy",
				"backend", b.config.Name,
				"consecutive_failures", b.health.ConsecutiveFailures,
				"error", err,
			)
		}
	}
	healthy := b.health.Healthy
	b.healthMu.Unlock()

	b.metrics.UpdateBackendHealth(b.config.Name, healthy)
}

// IsHealthy reports the passive health of the upstream.
func (b *HTTPBackend) IsHealthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.health.Healthy
}

// Health returns a snapshot of the upstream's health.
func (b *HTTPBackend) Health() Health {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.health
}

// Close releases idle connections.
func (b *HTTPBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func isEventStream(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), "text/event-stream")
}

func decodeResult(r io.Reader) (Result, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var result Result
	if err := dec.Decode(&result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("response body is not a JSON object")
	}
	return result, nil
}
