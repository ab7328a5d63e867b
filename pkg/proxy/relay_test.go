package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/chatproxy/pkg/backend"
)

// sliceStream yields chunks then err (io.EOF when nil).
type sliceStream struct {
	chunks []backend.Chunk
	err    error
	closed bool
}

func (s *sliceStream) Read(ctx context.Context) (backend.Chunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func TestRelay(t *testing.T) {
	stream := &sliceStream{chunks: []backend.Chunk{
		{"id": "a", "choices": []any{}},
		{"id": "b"},
	}}
	rec := httptest.NewRecorder()

	result := Relay(context.Background(), rec, stream)

	if result.Err != nil || result.Disconnected {
		t.Fatalf("result = %+v, want clean end", result)
	}
	if result.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", result.Chunks)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	want := "data: {\"choices\":[],\"id\":\"a\"}\n\n" +
		"data: {\"id\":\"b\"}\n\n" +
		"data: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if !stream.closed {
		t.Error("stream was not closed")
	}
}

func TestRelayMidStreamError(t *testing.T) {
	stream := &sliceStream{
		chunks: []backend.Chunk{{"n": "1"}, {"n": "2"}},
		err:    errors.New("upstream reset"),
	}
	rec := httptest.NewRecorder()

	result := Relay(context.Background(), rec, stream)

	if !result.Failed() {
		t.Fatalf("Failed() = false, result = %+v", result)
	}
	if result.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", result.Chunks)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 already sent", rec.Code)
	}

	want := "data: {\"n\":\"1\"}\n\n" +
		"data: {\"n\":\"2\"}\n\n" +
		"data: {\"error\":\"upstream reset\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if !stream.closed {
		t.Error("stream was not closed")
	}
}

func TestRelayEmptyStream(t *testing.T) {
	rec := httptest.NewRecorder()

	result := Relay(context.Background(), rec, &sliceStream{})

	if result.Chunks != 0 || result.Err != nil {
		t.Errorf("result = %+v", result)
	}
	if got := rec.Body.String(); got != "data: [DONE]\n\n" {
		t.Errorf("body = %q", got)
	}
}

func TestRelayClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := &sliceStream{chunks: []backend.Chunk{{"n": "1"}}}
	rec := httptest.NewRecorder()

	result := Relay(ctx, rec, stream)

	if !result.Disconnected {
		t.Errorf("Disconnected = false, result = %+v", result)
	}
	if result.Failed() {
		t.Error("a client disconnect is not a backend failure")
	}
	if result.Chunks != 0 {
		t.Errorf("Chunks = %d, want 0", result.Chunks)
	}
	if !stream.closed {
		t.Error("stream was not closed")
	}
}

// panicStream yields one chunk and then panics.
type panicStream struct {
	sent   bool
	closed bool
}

func (s *panicStream) Read(ctx context.Context) (backend.Chunk, error) {
	if !s.sent {
		s.sent = true
		return backend.Chunk{"id": "1"}, nil
	}
	panic("decoder exploded")
}

func (s *panicStream) Close() error {
	s.closed = true
	return nil
}

func TestRelayStreamPanic(t *testing.T) {
	stream := &panicStream{}
	rec := httptest.NewRecorder()

	result := Relay(context.Background(), rec, stream)

	if !result.Failed() {
		t.Fatalf("Failed() = false, result = %+v", result)
	}
	if result.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", result.Chunks)
	}
	if !stream.closed {
		t.Error("stream was not closed")
	}

	body := rec.Body.String()
	for _, event := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		if !strings.HasPrefix(event, "data: ") {
			t.Errorf("non-SSE bytes in event stream: %q", event)
		}
	}
	if !strings.HasSuffix(body, "data: {\"error\":\"stream failed: decoder exploded\"}\n\n") {
		t.Errorf("body = %q, want a final error event", body)
	}
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func (w *brokenWriter) WriteHeader(int) {}

func TestRelayUnencodableChunk(t *testing.T) {
	tests := []struct {
		name             string
		w                http.ResponseWriter
		wantDisconnected bool
	}{
		{name: "error event delivered", w: httptest.NewRecorder()},
		{name: "client gone", w: &brokenWriter{}, wantDisconnected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := &sliceStream{chunks: []backend.Chunk{{"bad": make(chan int)}}}

			result := Relay(context.Background(), tt.w, stream)

			if result.Err == nil {
				t.Fatal("expected marshal error")
			}
			if result.Disconnected != tt.wantDisconnected {
				t.Errorf("Disconnected = %v, want %v", result.Disconnected, tt.wantDisconnected)
			}
			if rec, ok := tt.w.(*httptest.ResponseRecorder); ok {
				if !strings.HasPrefix(rec.Body.String(), "data: {\"error\":") {
					t.Errorf("body = %q, want an error event", rec.Body.String())
				}
			}
		})
	}
}
