package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSecret(t *testing.T, dir, name, value string, perm os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), perm); err != nil {
		t.Fatal(err)
	}
	// WriteFile is subject to umask; force the mode under test.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatal(err)
	}
}

func TestFileProvider_GetSecret(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "ollama-key", "sk-local\n", 0o600)

	provider, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	value, err := provider.GetSecret(context.Background(), "ollama-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "sk-local" {
		t.Errorf("expected trimmed value 'sk-local', got %q", value)
	}
}

func TestFileProvider_Errors(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "loose", "value", 0o644)
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o700); err != nil {
		t.Fatal(err)
	}

	provider, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	tests := []struct {
		name     string
		secret   string
		notFound bool
	}{
		{name: "missing file", secret: "missing", notFound: true},
		{name: "insecure permissions", secret: "loose"},
		{name: "directory", secret: "subdir"},
		{name: "traversal", secret: "../etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.GetSecret(context.Background(), tt.secret)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.notFound != errors.Is(err, ErrNotFound) {
				t.Errorf("errors.Is(err, ErrNotFound) = %v, want %v (err: %v)", !tt.notFound, tt.notFound, err)
			}
		})
	}
}

func TestFileProvider_ReadOnlyPermissions(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "ro", "value", 0o400)

	provider, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	if _, err := provider.GetSecret(context.Background(), "ro"); err != nil {
		t.Errorf("expected 0400 to be accepted, got %v", err)
	}
}

func TestFileProvider_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "file", "x", 0o600)

	if _, err := NewFileProvider(filepath.Join(dir, "file"), false); err == nil {
		t.Error("expected error for non-directory base path")
	}
	if _, err := NewFileProvider(filepath.Join(dir, "missing"), false); err == nil {
		t.Error("expected error for missing base path")
	}
}

func TestFileProvider_SupportsAndList(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "a", "1", 0o600)
	writeSecret(t, dir, "b", "2", 0o600)

	provider, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	if !provider.Supports("a") {
		t.Error("expected Supports(a)")
	}
	if provider.Supports("c") {
		t.Error("expected !Supports(c)")
	}

	names, err := provider.ListSecrets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 secrets, got %v", names)
	}
}

func TestFileProvider_RefreshRereads(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "key", "old", 0o600)

	provider, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	if v, _ := provider.GetSecret(context.Background(), "key"); v != "old" {
		t.Fatalf("expected old, got %q", v)
	}

	writeSecret(t, dir, "key", "new", 0o600)
	if v, _ := provider.GetSecret(context.Background(), "key"); v != "old" {
		t.Errorf("expected cached old value before refresh, got %q", v)
	}

	if err := provider.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if v, _ := provider.GetSecret(context.Background(), "key"); v != "new" {
		t.Errorf("expected new after refresh, got %q", v)
	}
}

func TestFileProvider_WatchNotifies(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "key", "old", 0o600)

	provider, err := NewFileProvider(dir, true)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	changed := make(chan struct{}, 16)
	provider.OnChange(func() { changed <- struct{}{} })

	if v, _ := provider.GetSecret(context.Background(), "key"); v != "old" {
		t.Fatalf("expected old, got %q", v)
	}

	writeSecret(t, dir, "key", "new", 0o600)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := provider.GetSecret(context.Background(), "key"); v == "new" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("expected rotated value after watcher event")
}
