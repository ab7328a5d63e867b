package config

import "testing"

func TestApplyDefaults_BuiltinUpstreams(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if len(cfg.Backend.Upstreams) != 2 {
		t.Fatalf("expected 2 built-in upstreams, got %d", len(cfg.Backend.Upstreams))
	}

	ollama := cfg.Backend.Upstreams[1]
	if ollama.Name != DefaultOllamaUpstreamName {
		t.Errorf("expected %q, got %q", DefaultOllamaUpstreamName, ollama.Name)
	}
	if len(ollama.ModelPrefixes) != 1 || ollama.ModelPrefixes[0] != DefaultOllamaPrefix {
		t.Errorf("unexpected ollama prefixes %v", ollama.ModelPrefixes)
	}
	if !ollama.StripPrefix {
		t.Error("expected ollama upstream to strip its prefix")
	}
	if ollama.RetryBackoff != DefaultUpstreamBackoff {
		t.Errorf("expected retry backoff %v, got %v", DefaultUpstreamBackoff, ollama.RetryBackoff)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Backend: BackendConfig{
			Upstreams: []UpstreamConfig{{Name: "gw", BaseURL: "http://gw/v1", MaxRetries: 7}},
		},
		Normalization: NormalizationConfig{
			Rules: []NormalizationRule{{Prefix: "local/", StripFields: []string{"seed"}}},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Backend.Default != "gw" {
		t.Errorf("expected first upstream as default, got %q", cfg.Backend.Default)
	}
	if cfg.Backend.Upstreams[0].MaxRetries != 7 {
		t.Errorf("explicit max retries overwritten: %d", cfg.Backend.Upstreams[0].MaxRetries)
	}
	if len(cfg.Normalization.Rules) != 1 || cfg.Normalization.Rules[0].Prefix != "local/" {
		t.Errorf("explicit normalization rules overwritten: %+v", cfg.Normalization.Rules)
	}
}

func TestApplyDefaults_OllamaStripFields(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	rule := cfg.Normalization.Rules[0]
	want := map[string]bool{
		"top_p": true, "temperature": true, "presence_penalty": true,
		"tool_choice": true, "tools": true, "seed": true,
	}
	if len(rule.StripFields) != len(want) {
		t.Fatalf("expected %d strip fields, got %v", len(want), rule.StripFields)
	}
	for _, f := range rule.StripFields {
		if !want[f] {
			t.Errorf("unexpected strip field %q", f)
		}
	}

	// The rule owns its slice.
	rule.StripFields[0] = "changed"
	if DefaultOllamaStripFields[0] == "changed" {
		t.Error("default strip fields must not be shared")
	}
}
