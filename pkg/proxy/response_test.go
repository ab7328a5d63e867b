package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteError(rec, &ErrorResponse{StatusCode: http.StatusTooManyRequests, Message: "slow down", RetryAfter: "3"})
	if err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Errorf("Retry-After = %q, want 3", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if len(body) != 1 || body["error"] != "slow down" {
		t.Errorf("body = %v, want only the error key", body)
	}
}

func TestWriteErrorWithoutRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	_ = WriteError(rec, &ErrorResponse{StatusCode: http.StatusBadGateway, Message: "bad"})

	if _, ok := rec.Header()["Retry-After"]; ok {
		t.Error("Retry-After set without a hint")
	}
}

func TestSSEWriters(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSSEHeaders(rec)

	if err := WriteSSEData(rec, []byte(`{"id":"1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := WriteSSEError(rec, `quote " inside`); err != nil {
		t.Fatal(err)
	}
	if err := WriteSSEDone(rec); err != nil {
		t.Fatal(err)
	}

	want := "data: {\"id\":\"1\"}\n\n" +
		"data: {\"error\":\"quote \\\" inside\"}\n\n" +
		"data: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if !rec.Flushed {
		t.Error("events were not flushed")
	}
}
