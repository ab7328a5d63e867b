package backend

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"mercator-hq/chatproxy/pkg/config"
	"mercator-hq/chatproxy/pkg/telemetry/logging"
)

type recordingBackend struct {
	name    string
	backend string
	called  int
}

func (r *recordingBackend) Complete(ctx context.Context, _ string, _ map[string]any) (*Response, error) {
	r.called++
	r.backend = logging.GetBackend(ctx)
	return &Response{Result: Result{"served_by": r.name}}, nil
}

func TestRouter_Resolve(t *testing.T) {
	openai := &recordingBackend{name: "openai"}
	ollama := &recordingBackend{name: "ollama"}
	ollamaVision := &recordingBackend{name: "ollama-vision"}

	router, err := NewRouter([]Route{
		{Name: "openai", Backend: openai},
		{Name: "ollama", Prefixes: []string{"ollama/"}, Backend: ollama},
		{Name: "ollama-vision", Prefixes: []string{"ollama/llava"}, Backend: ollamaVision},
	}, "openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		model string
		want  string
	}{
		{model: "gpt-4o", want: "openai"},
		{model: "ollama/llama3", want: "ollama"},
		{model: "ollama/llava:13b", want: "ollama-vision"},
		{model: "", want: "openai"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			route, err := router.Resolve(tt.model)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if route.Name != tt.want {
				t.Errorf("expected %s, got %s", tt.want, route.Name)
			}
		})
	}
}

func TestRouter_NoDefault(t *testing.T) {
	router, err := NewRouter([]Route{
		{Name: "ollama", Prefixes: []string{"ollama/"}, Backend: &recordingBackend{}},
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = router.Complete(context.Background(), "", map[string]any{"model": "gpt-4o"})
	var be *Error
	if !errors.As(err, &be) || be.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 *Error, got %v", err)
	}
}

func TestRouter_Complete(t *testing.T) {
	ollama := &recordingBackend{name: "ollama"}
	router, err := NewRouter([]Route{
		{Name: "ollama", Prefixes: []string{"ollama/"}, Backend: ollama},
	}, "ollama")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := router.Complete(context.Background(), "", map[string]any{"model": "ollama/llama3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Backend != "ollama" {
		t.Errorf("expected response backend to be filled in, got %q", resp.Backend)
	}
	if ollama.backend != "ollama" {
		t.Errorf("expected backend name in context, got %q", ollama.backend)
	}
}

func TestNewRouter_Errors(t *testing.T) {
	tests := []struct {
		name        string
		routes      []Route
		defaultName string
	}{
		{name: "nil backend", routes: []Route{{Name: "a"}}},
		{name: "duplicate", routes: []Route{{Name: "a", Backend: &recordingBackend{}}, {Name: "a", Backend: &recordingBackend{}}}},
		{name: "unknown default", routes: []Route{{Name: "a", Backend: &recordingBackend{}}}, defaultName: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRouter(tt.routes, tt.defaultName); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.NewDefault()
	config.ApplyDefaults(cfg)

	router, err := NewFromConfig(&cfg.Backend)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer router.Close()

	if len(router.Routes()) != 2 {
		t.Fatalf("expected the two built-in upstreams, got %d", len(router.Routes()))
	}

	route, err := router.Resolve("ollama/llama3")
	if err != nil || route.Name != config.DefaultOllamaUpstreamName {
		t.Errorf("expected ollama route, got %v (%v)", route, err)
	}

	checkers := router.HealthCheckers()
	if _, ok := checkers[config.DefaultOllamaUpstreamName]; !ok {
		t.Error("expected ollama to have an active health check")
	}
	if _, ok := checkers[config.DefaultOpenAIUpstreamName]; ok {
		t.Error("expected openai without health path to be skipped")
	}
}
