package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// ParsePayload reads a JSON object from the request body. Numbers are kept
// as json.Number so that they are forwarded exactly as sent. A body larger
// than maxBytes is rejected with 413; anything that is not a single JSON
// object is rejected with 400. maxBytes <= 0 disables the limit.
func ParsePayload(r *http.Request, maxBytes int64) (Payload, error) {
	if r.Body == nil {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Message: "request body is empty", Param: "body"}
	}

	reader := io.Reader(r.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(r.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Message: "failed to read request body", Param: "body", Cause: err}
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, &RequestError{
			StatusCode: http.StatusRequestEntityTooLarge,
			Message:    fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
			Param:      "body",
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Message: "request body is empty", Param: "body"}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf("invalid JSON: %v", err), Param: "body", Cause: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Message: "invalid JSON: unexpected data after top-level value", Param: "body"}
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Message: "request body must be a JSON object", Param: "body"}
	}
	return Payload(obj), nil
}
