// Chatproxy is an OpenAI-compatible chat completions proxy.
//
// It accepts POST /v1/chat/completions, resolves the caller's API key,
// normalizes the request for the target model family and forwards it to a
// configured upstream, relaying either a JSON body or a server-sent event
// stream depending on what the upstream returns.
//
// Usage:
//
//	# Start with defaults (listens on 127.0.0.1:4000)
//	chatproxy run
//
//	# Start with a configuration file
//	chatproxy run --config /etc/chatproxy/config.yaml
//
//	# Check a configuration without starting
//	chatproxy validate --config config.yaml
//
//	# Probe a running proxy (container health checks)
//	chatproxy healthcheck --url http://127.0.0.1:4000/health
package main

func main() {
	Execute()
}
