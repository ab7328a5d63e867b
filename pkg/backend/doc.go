// Package backend is the completion collaborator behind the proxy.
//
// A Backend takes a credential and the normalized request body and returns
// either a buffered Result or a Stream of chunks. HTTPBackend speaks to one
// OpenAI-compatible upstream (OpenAI itself, a local Ollama server, any
// /chat/completions endpoint) with a pooled transport, retries for network
// failures and 5xx answers, Retry-After parsing, passive health tracking and
// SSE decoding. Router picks an HTTPBackend by the longest matching model
// prefix and falls back to the default upstream.
//
// Upstream failures surface as *Error, which carries the status code and
// retry hint the proxy turns into its own response:
//
//	resp, err := router.Complete(ctx, credential, params)
//	var be *backend.Error
//	if errors.As(err, &be) && be.StatusCode == http.StatusTooManyRequests {
//		// be.RetryAfter holds the upstream hint
//	}
package backend
