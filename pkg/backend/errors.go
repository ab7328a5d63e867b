package backend

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Error is a failed completion call. StatusCode is the upstream HTTP status,
// or 0 when the upstream could not be reached.
type Error struct {
	// Backend is the upstream name, empty when no upstream was selected.
	Backend string

	StatusCode int
	Message    string

	// RetryAfter is the upstream's Retry-After hint, zero if none.
	RetryAfter time.Duration

	// Header holds the upstream response headers when there was a response.
	Header http.Header

	Cause error
}

// Error formats the failure so that the status is also recoverable from the
// text alone ("status code: 429").
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Backend != "" {
		fmt.Fprintf(&sb, "backend %q: ", e.Backend)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, "request failed with status code: %d: %s", e.StatusCode, e.Message)
		return sb.String()
	}
	sb.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the upstream status code.
func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

// HTTPHeader returns the upstream response headers, nil if there was no
// response.
func (e *Error) HTTPHeader() http.Header {
	return e.Header
}

// RetryDelay returns the parsed Retry-After hint.
func (e *Error) RetryDelay() time.Duration {
	return e.RetryAfter
}

// Retryable reports whether the failure is worth another attempt: network
// errors and upstream 5xx. Rate limits are returned to the caller with their
// hint instead.
func (e *Error) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// newStatusError builds an Error from an upstream error response.
func newStatusError(backend string, resp *http.Response, body []byte) *Error {
	return &Error{
		Backend:    backend,
		StatusCode: resp.StatusCode,
		Message:    upstreamMessage(body, resp.StatusCode),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Header:     resp.Header.Clone(),
	}
}

// upstreamMessage extracts a readable message from an OpenAI-style error
// body, falling back to the raw body and then to the status text.
func upstreamMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "detail", "message"} {
			if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.String() != "" {
				return r.String()
			}
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(status)
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
