package proxy

import (
	"sort"
	"strings"

	"mercator-hq/chatproxy/pkg/config"
)

// Normalizer reshapes payloads for backend families with narrower feature
// support. Rules are selected by model prefix; the longest prefix wins.
type Normalizer struct {
	rules []config.NormalizationRule
}

// NewNormalizer creates a normalizer over rules.
func NewNormalizer(rules []config.NormalizationRule) *Normalizer {
	sorted := append([]config.NormalizationRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Normalizer{rules: sorted}
}

// DefaultNormalizer has the single built-in rule for local Ollama models.
func DefaultNormalizer() *Normalizer {
	return NewNormalizer([]config.NormalizationRule{{
		Prefix:         config.DefaultOllamaPrefix,
		FlattenContent: true,
		StripFields:    config.DefaultOllamaStripFields,
	}})
}

// Rule returns the rule for model, or nil when the model needs no
// normalization.
func (n *Normalizer) Rule(model string) *config.NormalizationRule {
	for i := range n.rules {
		if strings.HasPrefix(model, n.rules[i].Prefix) {
			return &n.rules[i]
		}
	}
	return nil
}

// Normalize returns p itself when no rule matches. Otherwise it returns a new
// payload with multi-part content flattened and the rule's fields removed;
// p and the messages it holds are left as they were. Normalization never
// fails: missing or oddly shaped fields are passed through.
func (n *Normalizer) Normalize(p Payload) Payload {
	rule := n.Rule(p.Model())
	if rule == nil {
		return p
	}

	out := p.Clone()
	if rule.FlattenContent {
		if messages, ok := out.Messages(); ok {
			out["messages"] = flattenMessages(messages)
		}
	}
	for _, field := range rule.StripFields {
		delete(out, field)
	}
	return out
}

func flattenMessages(messages []any) []any {
	out := make([]any, len(messages))
	for i, m := range messages {
		out[i] = m

		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}
		parts, ok := msg["content"].([]any)
		if !ok {
			continue
		}

		flat := make(map[string]any, len(msg))
		for k, v := range msg {
			flat[k] = v
		}
		flat["content"] = FlattenContent(parts)
		out[i] = flat
	}
	return out
}

// FlattenContent concatenates the text of every {"type":"text"} part with no
// separator. Other parts are dropped.
func FlattenContent(parts []any) string {
	var sb strings.Builder
	for _, part := range parts {
		p, ok := part.(map[string]any)
		if !ok || p["type"] != "text" {
			continue
		}
		if text, ok := p["text"].(string); ok {
			sb.WriteString(text)
		}
	}
	return sb.String()
}
