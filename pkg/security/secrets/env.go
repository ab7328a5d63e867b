package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider reads secrets from prefixed environment variables. The secret
// "ollama-key" with prefix "CHATPROXY_SECRET_" is read from
// CHATPROXY_SECRET_OLLAMA_KEY.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider using prefix.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// GetSecret reads the variable for name.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	envVar := p.envVar(name)

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("%w in environment: %s (env var: %s)", ErrNotFound, name, envVar)
	}
	return value, nil
}

// ListSecrets returns the names of every set variable carrying the prefix.
func (p *EnvProvider) ListSecrets(_ context.Context) ([]string, error) {
	var names []string
	for _, env := range os.Environ() {
		key, _, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, p.Prefix) || key == p.Prefix {
			continue
		}
		names = append(names, p.secretName(key))
	}
	return names, nil
}

// Provider returns "env".
func (p *EnvProvider) Provider() string {
	return "env"
}

// Supports always reports true; the environment is the fallback source.
func (p *EnvProvider) Supports(string) bool {
	return true
}

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func (p *EnvProvider) secretName(envVar string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(envVar, p.Prefix), "_", "-"))
}
