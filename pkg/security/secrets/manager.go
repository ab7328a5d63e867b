package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"mercator-hq/chatproxy/pkg/config"
)

// Manager tries its providers in order and caches what they return.
type Manager struct {
	providers []SecretProvider
	cache     *Cache
}

// NewManager creates a manager over providers with the given cache TTL.
func NewManager(providers []SecretProvider, cacheTTL time.Duration) *Manager {
	m := &Manager{
		providers: providers,
		cache:     NewCache(cacheTTL),
	}
	for _, p := range providers {
		if fp, ok := p.(*FileProvider); ok {
			fp.OnChange(m.cache.Clear)
		}
	}
	return m
}

// NewManagerFromConfig builds the environment and file providers enabled in
// cfg. The file provider comes first so a mounted secret wins over the
// environment.
func NewManagerFromConfig(cfg *config.SecretsConfig) (*Manager, error) {
	var providers []SecretProvider

	if cfg.File.Enabled {
		fp, err := NewFileProvider(cfg.File.Path, cfg.File.Watch)
		if err != nil {
			return nil, fmt.Errorf("failed to create file secret provider: %w", err)
		}
		providers = append(providers, fp)
	}
	if cfg.Env.Enabled {
		providers = append(providers, NewEnvProvider(cfg.Env.Prefix))
	}

	return NewManager(providers, cfg.CacheTTL), nil
}

// GetSecret returns the first value any supporting provider yields.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.Get(name); ok {
		return value, nil
	}

	var errs []error
	for _, provider := range m.providers {
		if !provider.Supports(name) {
			continue
		}

		value, err := provider.GetSecret(ctx, name)
		if err != nil {
			slog.DebugContext(ctx, "secret provider miss",
				"provider", provider.Provider(),
				"name", redactSecretName(name),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}

		m.cache.Set(name, value)
		return value, nil
	}

	if len(errs) > 0 {
		return "", fmt.Errorf("failed to get secret %q: %w", name, errors.Join(errs...))
	}
	return "", fmt.Errorf("%w: %q (no provider supports it)", ErrNotFound, name)
}

// Refresh refreshes every refreshable provider and clears the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	var failed []string
	for _, provider := range m.providers {
		refreshable, ok := provider.(RefreshableProvider)
		if !ok {
			continue
		}
		if err := refreshable.Refresh(ctx); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", provider.Provider(), err))
		}
	}
	m.cache.Clear()

	if len(failed) > 0 {
		return fmt.Errorf("failed to refresh some providers: %s", strings.Join(failed, "; "))
	}
	return nil
}

// ListSecrets returns the sorted union of every provider's names.
func (m *Manager) ListSecrets(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	for _, provider := range m.providers {
		names, err := provider.ListSecrets(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to list secrets", "provider", provider.Provider(), "error", err)
			continue
		}
		for _, name := range names {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases providers that hold resources.
func (m *Manager) Close() error {
	var errs []error
	for _, provider := range m.providers {
		if closer, ok := provider.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
