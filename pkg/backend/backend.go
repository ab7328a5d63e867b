package backend

import (
	"context"
	"io"
)

// Result is a buffered chat completion as returned by the upstream.
type Result = map[string]any

// Chunk is one incremental event of a streamed completion.
type Chunk = map[string]any

// Stream yields the chunks of a streamed completion. Read returns io.EOF
// after the last chunk. Implementations may also implement io.Closer.
type Stream interface {
	Read(ctx context.Context) (Chunk, error)
}

// Response is what a completion call produced. Exactly one of Result and
// Stream is set; callers branch on which one, not on what they asked for.
type Response struct {
	// Backend is the name of the upstream that answered.
	Backend string

	Result Result
	Stream Stream
}

// Streaming reports whether the response carries a stream.
func (r *Response) Streaming() bool {
	return r != nil && r.Stream != nil
}

// Backend performs chat completions.
//
// credential is the caller's API key, possibly empty; it never travels
// inside params. params is the request body to forward. The "stream" key is
// left for the upstream to interpret.
type Backend interface {
	Complete(ctx context.Context, credential string, params map[string]any) (*Response, error)
}

// HealthChecker probes an upstream on demand.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CloseStream releases s if it holds resources. Streams without a Close
// method are left alone.
func CloseStream(s Stream) error {
	if closer, ok := s.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
