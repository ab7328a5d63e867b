package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no provider holds the requested secret.
var ErrNotFound = errors.New("secret not found")

// SecretProvider retrieves secrets by name from one source.
type SecretProvider interface {
	// GetSecret returns the secret called name. A missing secret yields an
	// error wrapping ErrNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// ListSecrets returns the names this provider can serve. Values are never
	// included.
	ListSecrets(ctx context.Context) ([]string, error)

	// Provider returns a short provider name for logs ("env", "file").
	Provider() string

	// Supports reports whether the provider may hold name.
	Supports(name string) bool
}

// RefreshableProvider can drop what it has cached so the next lookup reads
// the source again.
type RefreshableProvider interface {
	SecretProvider
	Refresh(ctx context.Context) error
}
