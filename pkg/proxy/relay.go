package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"mercator-hq/chatproxy/pkg/backend"
)

// RelayResult describes how a relayed stream ended.
type RelayResult struct {
	// Chunks is the number of chunks written to the client.
	Chunks int

	// Err is the stream or write failure, nil on a clean end.
	Err error

	// Disconnected is set when the client went away before the end.
	Disconnected bool
}

// Failed reports whether the stream ended with a backend error.
func (r RelayResult) Failed() bool {
	return r.Err != nil && !r.Disconnected
}

// Relay writes stream to w as Server-Sent Events. The 200 status and SSE
// headers go out before the first read, so any later failure is reported
// in-band as a final {"error": ...} event instead of a status code. A clean
// end is marked with "data: [DONE]". The stream is always closed.
func Relay(ctx context.Context, w http.ResponseWriter, stream backend.Stream) (result RelayResult) {
	defer func() {
		if err := backend.CloseStream(stream); err != nil {
			slog.DebugContext(ctx, "failed to close stream", "error", err)
		}
	}()

	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := flush(w); err != nil {
		return RelayResult{Err: err, Disconnected: true}
	}

	for {
		if err := ctx.Err(); err != nil {
			result.Err = err
			result.Disconnected = true
			return result
		}

		chunk, err := readChunk(ctx, stream)
		if errors.Is(err, io.EOF) {
			if werr := WriteSSEDone(w); werr != nil {
				result.Err = werr
				result.Disconnected = true
			}
			return result
		}
		if err != nil {
			if ctx.Err() != nil {
				result.Err = ctx.Err()
				result.Disconnected = true
				return result
			}
			result.Err = err
			if werr := WriteSSEError(w, err.Error()); werr != nil {
				result.Disconnected = true
			}
			return result
		}

		data, err := json.Marshal(chunk)
		if err != nil {
			result.Err = err
			if werr := WriteSSEError(w, err.Error()); werr != nil {
				result.Disconnected = true
			}
			return result
		}
		if err := WriteSSEData(w, data); err != nil {
			result.Err = err
			result.Disconnected = true
			return result
		}
		result.Chunks++
	}
}

// readChunk turns a panic inside stream.Read into an error. Once the 200 has
// been sent the failure can only be reported in-band.
func readChunk(ctx context.Context, stream backend.Stream) (chunk backend.Chunk, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "panic while reading stream", "panic", rec)
			chunk, err = nil, fmt.Errorf("stream failed: %v", rec)
		}
	}()
	return stream.Read(ctx)
}
