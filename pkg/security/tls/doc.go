/*
Package tls provides the TLS listener configuration for the proxy.

The certificate pair is loaded by a CertificateReloader and served through
tls.Config.GetCertificate, so a renewed certificate is picked up on the next
handshake:

	reloader, err := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return err
	}
	if err := reloader.Watch(ctx); err != nil {
		return err
	}
	tlsConfig, err := tls.ServerConfig(cfg, reloader)

Only TLS 1.2 and 1.3 are accepted; cipher suites are Go's defaults.
*/
package tls
