package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

var doneSentinel = []byte("[DONE]")

// sseStream decodes an OpenAI-style Server-Sent-Events body into chunks.
type sseStream struct {
	backend string
	body    io.ReadCloser
	scanner *bufio.Scanner

	mu   sync.Mutex
	done bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newSSEStream(backend string, body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	return &sseStream{
		backend: backend,
		body:    body,
		scanner: scanner,
	}
}

// Read returns the next chunk. The [DONE] sentinel and the end of the body
// both yield io.EOF. An event carrying an "error" object is returned as an
// *Error.
func (s *sseStream) Read(ctx context.Context) (Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.closed.Load() {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.nextEvent()
		if err != nil {
			s.done = true
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &Error{Backend: s.backend, Message: "failed to read stream", Cause: err}
		}

		if bytes.Equal(data, doneSentinel) {
			s.done = true
			return nil, io.EOF
		}

		// Some servers send "error": null on every chunk.
		if errResult := gjson.GetBytes(data, "error"); errResult.Exists() && errResult.Type != gjson.Null {
			s.done = true
			return nil, &Error{Backend: s.backend, Message: upstreamMessage(data, 0)}
		}

		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var chunk Chunk
		if err := dec.Decode(&chunk); err != nil || chunk == nil {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			s.done = true
			return nil, &Error{Backend: s.backend, Message: "invalid stream chunk", Cause: err}
		}
		return chunk, nil
	}
}

// nextEvent collects the data lines of the next event. Comments, event
// names and ids are skipped.
func (s *sseStream) nextEvent() ([]byte, error) {
	var data []byte
	for s.scanner.Scan() {
		line := s.scanner.Bytes()

		if len(line) == 0 {
			if data != nil {
				return data, nil
			}
			continue
		}

		value, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		value = bytes.TrimPrefix(value, []byte(" "))

		if data != nil {
			data = append(data, '\n')
		}
		data = append(data, value...)
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	if data != nil {
		return data, nil
	}
	return nil, io.EOF
}

// Close releases the upstream connection. It may be called concurrently
// with Read, which then fails, and more than once.
func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
