package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CertificateReloader serves a certificate pair from disk and reloads it
// when either file changes, so renewed certificates take effect without a
// restart. A failed reload keeps the previous certificate.
type CertificateReloader struct {
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewCertificateReloader loads the pair once and returns an error if it is
// unusable.
func NewCertificateReloader(certFile, keyFile string) (*CertificateReloader, error) {
	r := &CertificateReloader{certFile: certFile, keyFile: keyFile}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch reloads the pair on file changes until ctx is done. The directories
// are watched rather than the files because renewals usually replace files
// through renames.
func (r *CertificateReloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create certificate watcher: %w", err)
	}

	dirs := map[string]bool{
		filepath.Dir(r.certFile): true,
		filepath.Dir(r.keyFile):  true,
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	r.watcher = watcher

	r.wg.Add(1)
	go r.watchLoop(ctx)
	return nil
}

// Wait blocks until the watch loop, if any, has exited.
func (r *CertificateReloader) Wait() {
	r.wg.Wait()
}

func (r *CertificateReloader) watchLoop(ctx context.Context) {
	defer r.wg.Done()
	defer r.watcher.Close()

	certBase, keyBase := filepath.Base(r.certFile), filepath.Base(r.keyFile)

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if event.Op == fsnotify.Chmod || (name != certBase && name != keyBase && name != "..data") {
				continue
			}
			if err := r.reload(); err != nil {
				slog.Error("failed to reload certificate", "error", err, "cert_file", r.certFile)
				continue
			}
			slog.Info("certificate reloaded", "cert_file", r.certFile)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("certificate watcher error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}

func (r *CertificateReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}

	leaf, err := ValidateCertificate(&cert)
	if err != nil {
		return err
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	if days, soon := DaysUntilExpiry(leaf); soon {
		slog.Warn("certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
	} else {
		slog.Debug("certificate loaded",
			"subject", leaf.Subject.CommonName,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
	}
	return nil
}

// GetCertificate returns the current certificate.
func (r *CertificateReloader) GetCertificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificateFunc adapts the reloader to tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return r.GetCertificate(), nil
	}
}
