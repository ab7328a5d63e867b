// Package secrets resolves upstream API keys that should not live in the
// configuration file.
//
// An upstream names a secret with api_key_secret; when a caller supplies no
// credential of its own, the HTTP backend asks the Manager for that secret.
// Two providers exist:
//
//   - FileProvider reads one file per secret from a directory, enforcing 0600
//     or 0400 permissions and rejecting names that escape the directory. With
//     watching on, fsnotify events clear its cache and the manager's, so a
//     rotated key takes effect on the next request.
//   - EnvProvider reads CHATPROXY_SECRET_<NAME>, with dashes in the name
//     mapped to underscores.
//
//	mgr, err := secrets.NewManagerFromConfig(&cfg.Security.Secrets)
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	key, err := mgr.GetSecret(ctx, "ollama-key")
//
// Secret values are never logged; names are abbreviated in debug output.
package secrets
