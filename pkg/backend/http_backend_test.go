package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/chatproxy/pkg/config"
	"mercator-hq/chatproxy/pkg/telemetry/tracing"
)

func testUpstream(url string) config.UpstreamConfig {
	return config.UpstreamConfig{
		Name:         "test",
		BaseURL:      url + "/v1",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

type staticSecrets map[string]string

func (s staticSecrets) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := s[name]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestHTTPBackend_CompleteBuffered(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"message":{"content":"hi"}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(testUpstream(srv.URL))
	resp, err := b.Complete(context.Background(), "sk-caller", map[string]any{
		"model":    "gpt-4o",
		"messages": []any{map[string]any{"role": "user", "content": "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("expected /v1/chat/completions, got %s", gotPath)
	}
	if gotAuth != "Bearer sk-caller" {
		t.Errorf("expected caller credential to be forwarded, got %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o" {
		t.Errorf("expected model gpt-4o upstream, got %v", gotBody["model"])
	}

	if resp.Streaming() {
		t.Fatal("expected buffered response")
	}
	if resp.Backend != "test" {
		t.Errorf("expected backend name test, got %q", resp.Backend)
	}
	if resp.Result["id"] != "chatcmpl-1" {
		t.Errorf("unexpected result: %v", resp.Result)
	}
	if n, ok := resp.Result["usage"].(map[string]any)["total_tokens"].(json.Number); !ok || n.String() != "12" {
		t.Errorf("expected numbers to be preserved as json.Number, got %#v", resp.Result["usage"])
	}
}

func TestHTTPBackend_CompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		_, _ = io.WriteString(w, ": keep-alive\n\n")
		_, _ = io.WriteString(w, "data: {\"id\":\"1\",\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		_, _ = io.WriteString(w, "event: message\ndata:{\"id\":\"2\",\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	b := NewHTTPBackend(testUpstream(srv.URL))
	resp, err := b.Complete(context.Background(), "", map[string]any{"model": "gpt-4o", "stream": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Streaming() {
		t.Fatal("expected streamed response")
	}
	defer CloseStream(resp.Stream)

	var ids []string
	for {
		chunk, err := resp.Stream.Read(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		ids = append(ids, chunk["id"].(string))
	}

	if strings.Join(ids, ",") != "1,2" {
		t.Errorf("expected chunks 1,2, got %v", ids)
	}

	if _, err := resp.Stream.Read(context.Background()); err != io.EOF {
		t.Errorf("expected io.EOF after end of stream, got %v", err)
	}
}

func TestHTTPBackend_StreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"id\":\"1\"}\n\n")
		_, _ = io.WriteString(w, "data: {\"error\":{\"message\":\"model overloaded\"}}\n\n")
	}))
	defer srv.Close()

	b := NewHTTPBackend(testUpstream(srv.URL))
	resp, err := b.Complete(context.Background(), "", map[string]any{"model": "m", "stream": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer CloseStream(resp.Stream)

	if _, err := resp.Stream.Read(context.Background()); err != nil {
		t.Fatalf("expected first chunk, got %v", err)
	}

	_, err = resp.Stream.Read(context.Background())
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if be.Message != "model overloaded" {
		t.Errorf("expected upstream message, got %q", be.Message)
	}
}

func TestSSEStream_NullErrorField(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		wantErr bool
	}{
		{name: "null error is a chunk", event: `{"id":"1","error":null,"choices":[]}`},
		{name: "object error ends stream", event: `{"error":{"message":"boom"}}`, wantErr: true},
		{name: "string error ends stream", event: `{"error":"boom"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := io.NopCloser(strings.NewReader("data: " + tt.event + "\n\ndata: [DONE]\n\n"))
			s := newSSEStream("u", body)
			defer s.Close()

			chunk, err := s.Read(context.Background())
			if tt.wantErr {
				var be *Error
				if !errors.As(err, &be) || be.Message != "boom" {
					t.Fatalf("expected upstream error \"boom\", got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if chunk["id"] != "1" {
				t.Errorf("chunk = %v", chunk)
			}
			if _, err := s.Read(context.Background()); err != io.EOF {
				t.Errorf("expected io.EOF, got %v", err)
			}
		})
	}
}

func TestHTTPBackend_StatusErrors(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		body           string
		retryAfter     string
		wantAttempts   int32
		wantMessage    string
		wantRetryAfter time.Duration
	}{
		{
			name:           "rate limit is not retried",
			status:         http.StatusTooManyRequests,
			body:           `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			retryAfter:     "7",
			wantAttempts:   1,
			wantMessage:    "Rate limit reached",
			wantRetryAfter: 7 * time.Second,
		},
		{
			name:         "bad request is not retried",
			status:       http.StatusBadRequest,
			body:         `{"error":"model is required"}`,
			wantAttempts: 1,
			wantMessage:  "model is required",
		},
		{
			name:         "unauthorized keeps raw body",
			status:       http.StatusUnauthorized,
			body:         "invalid api key",
			wantAttempts: 1,
			wantMessage:  "invalid api key",
		},
		{
			name:         "server error is retried",
			status:       http.StatusBadGateway,
			body:         `{"detail":"upstream down"}`,
			wantAttempts: 3,
			wantMessage:  "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			b := NewHTTPBackend(testUpstream(srv.URL))
			_, err := b.Complete(context.Background(), "", map[string]any{"model": "m"})

			var be *Error
			if !errors.As(err, &be) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if be.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, be.StatusCode)
			}
			if be.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, be.Message)
			}
			if be.RetryAfter != tt.wantRetryAfter {
				t.Errorf("expected retry after %v, got %v", tt.wantRetryAfter, be.RetryAfter)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("expected %d attempts, got %d", tt.wantAttempts, got)
			}
		})
	}
}

func TestHTTPBackend_RetryRecovers(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"ok"}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(testUpstream(srv.URL))
	resp, err := b.Complete(context.Background(), "", map[string]any{"model": "m"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if resp.Result["id"] != "ok" {
		t.Errorf("unexpected result %v", resp.Result)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestHTTPBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := testUpstream(url)
	cfg.MaxRetries = 0
	b := NewHTTPBackend(cfg)

	for i := 0; i < unhealthyThreshold; i++ {
		_, err := b.Complete(context.Background(), "", map[string]any{"model": "m"})
		var be *Error
		if !errors.As(err, &be) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if be.StatusCode != 0 {
			t.Errorf("expected status 0 for network error, got %d", be.StatusCode)
		}
	}

	if b.IsHealthy() {
		t.Error("expected upstream to be unhealthy after repeated failures")
	}
	if err := b.HealthCheck(context.Background()); err == nil {
		t.Error("expected passive health check to fail")
	}
}

func TestHTTPBackend_StripPrefix(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	cfg := testUpstream(srv.URL)
	cfg.ModelPrefixes = []string{"ollama/"}
	cfg.StripPrefix = true
	b := NewHTTPBackend(cfg)

	params := map[string]any{"model": "ollama/llama3"}
	if _, err := b.Complete(context.Background(), "", params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotModel != "llama3" {
		t.Errorf("expected stripped model llama3, got %q", gotModel)
	}
	if params["model"] != "ollama/llama3" {
		t.Errorf("caller params were modified: %v", params["model"])
	}
}

func TestHTTPBackend_CredentialFallback(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		apiKey     string
		secretName string
		want       string
	}{
		{name: "caller wins", credential: "caller", apiKey: "static", secretName: "k", want: "Bearer caller"},
		{name: "secret before static key", apiKey: "static", secretName: "k", want: "Bearer from-secret"},
		{name: "unresolvable secret falls back", apiKey: "static", secretName: "missing", want: "Bearer static"},
		{name: "static key", apiKey: "static", want: "Bearer static"},
		{name: "anonymous", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{}`)
			}))
			defer srv.Close()

			cfg := testUpstream(srv.URL)
			cfg.APIKey = tt.apiKey
			cfg.APIKeySecret = tt.secretName
			b := NewHTTPBackend(cfg, WithSecrets(staticSecrets{"k": "from-secret"}))

			if _, err := b.Complete(context.Background(), tt.credential, map[string]any{"model": "m"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected Authorization %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTTPBackend_InvalidJSONResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[1,2,3]`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(testUpstream(srv.URL))
	_, err := b.Complete(context.Background(), "", map[string]any{"model": "m"})

	var be *Error
	if !errors.As(err, &be) || be.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 *Error, got %v", err)
	}
}

func TestHTTPBackend_ClientSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(testUpstream(srv.URL), WithTracer(tracing.NewWithProvider(tp)))
	if _, err := b.Complete(context.Background(), "", map[string]any{"model": "gpt-4o"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "backend.complete" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[string(tracing.AttrBackend)] != "test" {
		t.Errorf("expected backend attribute, got %v", attrs)
	}
	if attrs[string(tracing.AttrModel)] != "gpt-4o" {
		t.Errorf("expected model attribute, got %v", attrs)
	}
}
