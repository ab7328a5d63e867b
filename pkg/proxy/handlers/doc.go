// Package handlers provides the HTTP handler for chat completions.
//
// ChatHandler composes the proxy pipeline for one request:
//
//  1. Decode the body into a proxy.Payload
//  2. Resolve the caller credential, removing api_key from the body
//  3. Normalize the payload for the target model family
//  4. Call the backend
//  5. Write the result as JSON, or relay the stream as Server-Sent Events
//
// Errors raised before any byte is written are translated into a status code
// and a {"error": "..."} body. Errors raised during a stream are reported as a
// final SSE event because the 200 status has already been sent.
//
// Health, readiness and version endpoints live in pkg/telemetry/health.
package handlers
