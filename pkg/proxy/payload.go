package proxy

import (
	"encoding/json"
	"strconv"
)

// Payload is a chat-completion request body. It stays a loose map so that
// fields this proxy does not know about reach the backend untouched.
type Payload map[string]any

// Model returns the "model" field, or "" when it is absent or not a string.
func (p Payload) Model() string {
	model, _ := p["model"].(string)
	return model
}

// Stream reports whether the "stream" field asks for a streamed response.
func (p Payload) Stream() bool {
	return Truthy(p["stream"])
}

// Messages returns the "messages" field when it is a list.
func (p Payload) Messages() ([]any, bool) {
	messages, ok := p["messages"].([]any)
	return messages, ok
}

// Clone returns a shallow copy. Nested values are shared.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Truthy interprets a loosely typed flag. Strings are parsed with
// strconv.ParseBool and otherwise count as true when non-empty; numbers are
// true when non-zero; lists and objects when non-empty.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
