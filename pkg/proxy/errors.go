package proxy

import (
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// statusPattern finds an HTTP status embedded in free-form error text. It is
// a heuristic: only codes in the 4xx and 5xx range are trusted.
var statusPattern = regexp.MustCompile(`status code: (\d+)`)

// ErrorResponse is a translated failure, ready to be written.
type ErrorResponse struct {
	StatusCode int
	Message    string

	// RetryAfter is the Retry-After header value, empty when there is no hint.
	RetryAfter string
}

// Body returns the JSON body {"error": message}.
func (e *ErrorResponse) Body() map[string]string {
	return map[string]string{"error": e.Message}
}

// RequestError is a malformed client request.
type RequestError struct {
	StatusCode int
	Message    string
	Param      string
	Cause      error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status the request should be rejected with.
func (e *RequestError) HTTPStatus() int {
	return e.StatusCode
}

type statusCarrier interface{ HTTPStatus() int }

type headerCarrier interface{ HTTPHeader() http.Header }

type retryCarrier interface{ RetryDelay() time.Duration }

// TranslateError maps err to a status, message and retry hint. Metadata
// attached to the error (status, response headers, retry delay) is preferred;
// otherwise the status is read from a "status code: N" fragment of the
// message. Everything else is a 500. The message is always err.Error().
func TranslateError(err error) *ErrorResponse {
	if err == nil {
		return &ErrorResponse{StatusCode: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError)}
	}

	resp := &ErrorResponse{Message: err.Error()}

	if status, ok := StructuredStatus(err); ok {
		resp.StatusCode = status
		resp.RetryAfter = StructuredRetryAfter(err)
		return resp
	}

	if status, ok := StatusFromMessage(resp.Message); ok {
		resp.StatusCode = status
		return resp
	}

	resp.StatusCode = http.StatusInternalServerError
	return resp
}

// StructuredStatus returns the status attached to err, if any.
func StructuredStatus(err error) (int, bool) {
	var sc statusCarrier
	if errors.As(err, &sc) && validErrorStatus(sc.HTTPStatus()) {
		return sc.HTTPStatus(), true
	}
	return 0, false
}

// StructuredRetryAfter returns the retry hint attached to err as a
// Retry-After value. A Retry-After response header wins over a parsed delay,
// which is rounded up to whole seconds.
func StructuredRetryAfter(err error) string {
	var hc headerCarrier
	if errors.As(err, &hc) {
		if h := hc.HTTPHeader(); h != nil {
			if v := h.Get("Retry-After"); v != "" {
				return v
			}
		}
	}

	var rc retryCarrier
	if errors.As(err, &rc) {
		if d := rc.RetryDelay(); d > 0 {
			return strconv.Itoa(int(math.Ceil(d.Seconds())))
		}
	}
	return ""
}

// StatusFromMessage extracts a status from text such as
// "upstream error, status code: 429". Codes outside 400-599 are ignored.
func StatusFromMessage(msg string) (int, bool) {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	status, err := strconv.Atoi(m[1])
	if err != nil || !validErrorStatus(status) {
		return 0, false
	}
	return status, true
}

func validErrorStatus(status int) bool {
	return status >= 400 && status <= 599
}
