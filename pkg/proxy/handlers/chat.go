package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/chatproxy/pkg/backend"
	"mercator-hq/chatproxy/pkg/proxy"
	"mercator-hq/chatproxy/pkg/telemetry/logging"
	"mercator-hq/chatproxy/pkg/telemetry/metrics"
	"mercator-hq/chatproxy/pkg/telemetry/tracing"
)

// Response modes used as the "mode" metric label.
const (
	ModeSync   = "sync"
	ModeStream = "stream"
)

// ChatHandler serves POST /v1/chat/completions. It is safe for concurrent
// use; all per-request state lives on the request goroutine.
type ChatHandler struct {
	backend      backend.Backend
	credentials  *proxy.CredentialResolver
	normalizer   *proxy.Normalizer
	metrics      *metrics.Collector
	maxBodyBytes int64
	logRequests  bool
}

// Option configures a ChatHandler.
type Option func(*ChatHandler)

// WithCredentialResolver replaces the default credential lookup order.
func WithCredentialResolver(r *proxy.CredentialResolver) Option {
	return func(h *ChatHandler) { h.credentials = r }
}

// WithNormalizer replaces the built-in normalization rules.
func WithNormalizer(n *proxy.Normalizer) Option {
	return func(h *ChatHandler) { h.normalizer = n }
}

// WithMetrics records request metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(h *ChatHandler) { h.metrics = c }
}

// WithMaxBodyBytes limits the request body size. Zero disables the limit.
func WithMaxBodyBytes(n int64) Option {
	return func(h *ChatHandler) { h.maxBodyBytes = n }
}

// WithRequestLogging logs every request with secrets redacted.
func WithRequestLogging(enabled bool) Option {
	return func(h *ChatHandler) { h.logRequests = enabled }
}

// NewChatHandler creates a handler dispatching to b.
func NewChatHandler(b backend.Backend, opts ...Option) *ChatHandler {
	h := &ChatHandler{
		backend:     b,
		credentials: proxy.DefaultCredentialResolver(),
		normalizer:  proxy.DefaultNormalizer(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(ctx, w, &proxy.ErrorResponse{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    fmt.Sprintf("method %s not allowed, use POST", r.Method),
		})
		return
	}

	h.metrics.RequestStarted()
	defer h.metrics.RequestFinished()

	payload, err := proxy.ParsePayload(r, h.maxBodyBytes)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse request", "error", err)
		h.writeError(ctx, w, proxy.TranslateError(err))
		return
	}

	if h.logRequests {
		slog.InfoContext(ctx, "request received",
			"method", r.Method,
			"url", r.URL.String(),
			"headers", logging.RedactHeaders(r.Header),
			"body", logging.RedactFields(payload),
		)
	}

	credential := h.credentials.Resolve(payload, r.Header)

	model := payload.Model()
	streaming := payload.Stream()
	ctx = logging.WithModel(ctx, model)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(tracing.AttrModel.String(model), tracing.AttrStream.Bool(streaming))

	slog.InfoContext(ctx, "calling model", "stream", streaming, "messages", messageCount(payload))

	params := h.normalizer.Normalize(payload)

	resp, err := h.backend.Complete(ctx, credential, params)
	if err == nil && resp == nil {
		err = errors.New("backend returned no result")
	}
	if err != nil {
		if resp != nil && resp.Stream != nil {
			_ = backend.CloseStream(resp.Stream)
		}
		errResp := proxy.TranslateError(err)
		slog.ErrorContext(ctx, "completion failed", "status", errResp.StatusCode, "error", err)
		tracing.SetError(span, err)
		h.writeError(ctx, w, errResp)
		h.metrics.RecordRequest(backendName(ctx, err), model, modeOf(streaming), errResp.StatusCode, time.Since(start))
		return
	}

	span.SetAttributes(tracing.AttrBackend.String(resp.Backend))
	ctx = logging.WithBackend(ctx, resp.Backend)

	// The shape of the response decides the framing, not the request flag.
	if resp.Streaming() != streaming {
		slog.WarnContext(ctx, "backend response shape does not match requested mode",
			"requested_stream", streaming, "streamed", resp.Streaming())
	}
	if resp.Streaming() {
		slog.InfoContext(ctx, "streaming response")

		result := proxy.Relay(ctx, w, resp.Stream)
		span.SetAttributes(tracing.AttrChunks.Int(result.Chunks))
		switch {
		case result.Disconnected:
			slog.WarnContext(ctx, "client disconnected during stream", "chunks", result.Chunks, "error", result.Err)
		case result.Err != nil:
			slog.ErrorContext(ctx, "stream failed", "chunks", result.Chunks, "error", result.Err)
			tracing.SetError(span, result.Err)
		default:
			slog.DebugContext(ctx, "stream finished", "chunks", result.Chunks)
		}

		h.metrics.RecordStream(resp.Backend, result.Chunks, result.Failed())
		h.metrics.RecordRequest(resp.Backend, model, ModeStream, http.StatusOK, time.Since(start))
		return
	}

	slog.InfoContext(ctx, "non-streaming response")
	if err := proxy.WriteJSON(w, http.StatusOK, resp.Result); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
	h.metrics.RecordRequest(resp.Backend, model, ModeSync, http.StatusOK, time.Since(start))
}

func (h *ChatHandler) writeError(ctx context.Context, w http.ResponseWriter, resp *proxy.ErrorResponse) {
	if err := proxy.WriteError(w, resp); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

func messageCount(p proxy.Payload) int {
	msgs, _ := p.Messages()
	return len(msgs)
}

func modeOf(streaming bool) string {
	if streaming {
		return ModeStream
	}
	return ModeSync
}

// backendName names the upstream that failed, falling back to the one
// recorded on the context by the router.
func backendName(ctx context.Context, err error) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Backend != "" {
		return be.Backend
	}
	return logging.GetBackend(ctx)
}
