// Package proxy holds the request pipeline of the chat-completions proxy.
//
// A request body is decoded into a Payload without a fixed schema so that
// every field the caller sends reaches the backend unchanged. The pipeline
// then:
//
//   - extracts the caller credential (CredentialResolver), removing the
//     api_key body field
//   - reshapes the payload for backends with narrower feature support
//     (Normalizer)
//   - relays backend streams to the client as Server-Sent Events (Relay)
//   - turns backend failures into status-coded JSON errors (TranslateError)
//
// The HTTP handler composing these steps lives in the handlers subpackage;
// cross-cutting middleware lives in the middleware subpackage.
package proxy
