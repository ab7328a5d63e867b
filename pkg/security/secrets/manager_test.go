package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/chatproxy/pkg/config"
)

type stubProvider struct {
	name    string
	values  map[string]string
	calls   int
	refresh int
}

func (s *stubProvider) GetSecret(_ context.Context, name string) (string, error) {
	s.calls++
	if v, ok := s.values[name]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (s *stubProvider) ListSecrets(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	return names, nil
}

func (s *stubProvider) Provider() string     { return s.name }
func (s *stubProvider) Supports(string) bool { return true }
func (s *stubProvider) Refresh(context.Context) error {
	s.refresh++
	return nil
}

func TestManager_ProviderOrder(t *testing.T) {
	first := &stubProvider{name: "first", values: map[string]string{"shared": "from-first"}}
	second := &stubProvider{name: "second", values: map[string]string{"shared": "from-second", "only-second": "x"}}

	m := NewManager([]SecretProvider{first, second}, 0)

	tests := []struct {
		secret string
		want   string
	}{
		{secret: "shared", want: "from-first"},
		{secret: "only-second", want: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.secret, func(t *testing.T) {
			got, err := m.GetSecret(context.Background(), tt.secret)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestManager_NotFound(t *testing.T) {
	m := NewManager([]SecretProvider{&stubProvider{name: "empty"}}, 0)

	_, err := m.GetSecret(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = NewManager(nil, 0).GetSecret(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound with no providers, got %v", err)
	}
}

func TestManager_CachesAndRefreshes(t *testing.T) {
	p := &stubProvider{name: "stub", values: map[string]string{"k": "v"}}
	m := NewManager([]SecretProvider{p}, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := m.GetSecret(context.Background(), "k"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if p.calls != 1 {
		t.Errorf("expected 1 provider call with caching, got %d", p.calls)
	}

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if p.refresh != 1 {
		t.Errorf("expected provider refresh, got %d", p.refresh)
	}

	if _, err := m.GetSecret(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 2 {
		t.Errorf("expected cache to be cleared by refresh, got %d calls", p.calls)
	}
}

func TestManager_ListSecrets(t *testing.T) {
	m := NewManager([]SecretProvider{
		&stubProvider{name: "a", values: map[string]string{"b": "", "a": ""}},
		&stubProvider{name: "b", values: map[string]string{"a": "", "c": ""}},
	}, 0)

	names, err := m.ListSecrets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}

func TestNewManagerFromConfig(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "upstream-key", "from-file", 0o600)
	t.Setenv("CHATPROXY_SECRET_UPSTREAM_KEY", "from-env")
	t.Setenv("CHATPROXY_SECRET_ENV_ONLY", "env-only")

	m, err := NewManagerFromConfig(&config.SecretsConfig{
		Env:      config.EnvSecretsConfig{Enabled: true, Prefix: "CHATPROXY_SECRET_"},
		File:     config.FileSecretsConfig{Enabled: true, Path: dir},
		CacheTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Close()

	if v, _ := m.GetSecret(context.Background(), "upstream-key"); v != "from-file" {
		t.Errorf("expected file to win, got %q", v)
	}
	if v, _ := m.GetSecret(context.Background(), "env-only"); v != "env-only" {
		t.Errorf("expected env fallback, got %q", v)
	}
}

func TestNewManagerFromConfig_MissingDirectory(t *testing.T) {
	_, err := NewManagerFromConfig(&config.SecretsConfig{
		File: config.FileSecretsConfig{Enabled: true, Path: "/nonexistent/chatproxy/secrets"},
	})
	if err == nil {
		t.Error("expected error for missing secrets directory")
	}
}

func TestRedactSecretName(t *testing.T) {
	if got := redactSecretName("key"); got != "***" {
		t.Errorf("expected ***, got %q", got)
	}
	if got := redactSecretName("openai-key"); got != "op...ey" {
		t.Errorf("expected op...ey, got %q", got)
	}
}
