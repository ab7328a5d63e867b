package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteError writes a translated error, with Retry-After when the error
// carried a hint.
func WriteError(w http.ResponseWriter, resp *ErrorResponse) error {
	if resp.RetryAfter != "" {
		w.Header().Set("Retry-After", resp.RetryAfter)
	}
	return WriteJSON(w, resp.StatusCode, resp.Body())
}

// SetSSEHeaders prepares w for a Server-Sent-Events body.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteSSEData writes one "data: <payload>\n\n" event and flushes it.
func WriteSSEData(w http.ResponseWriter, payload []byte) error {
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	return flush(w)
}

// WriteSSEDone writes the terminal "data: [DONE]" event.
func WriteSSEDone(w http.ResponseWriter) error {
	return WriteSSEData(w, []byte("[DONE]"))
}

// WriteSSEError writes a terminal {"error": message} event.
func WriteSSEError(w http.ResponseWriter, message string) error {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Errorf("failed to marshal SSE error: %w", err)
	}
	return WriteSSEData(w, data)
}

// flush pushes buffered bytes to the client. Writers that cannot flush are
// tolerated; the bytes then go out when the handler returns.
func flush(w http.ResponseWriter) error {
	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("failed to flush SSE event: %w", err)
	}
	return nil
}
