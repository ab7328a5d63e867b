package server

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/chatproxy/pkg/backend"
	"mercator-hq/chatproxy/pkg/config"
	"mercator-hq/chatproxy/pkg/proxy"
	"mercator-hq/chatproxy/pkg/proxy/handlers"
	"mercator-hq/chatproxy/pkg/proxy/middleware"
	"mercator-hq/chatproxy/pkg/security/tls"
	"mercator-hq/chatproxy/pkg/telemetry/health"
	"mercator-hq/chatproxy/pkg/telemetry/metrics"
	"mercator-hq/chatproxy/pkg/telemetry/tracing"
)

// Routes served by the proxy.
const (
	ChatCompletionsPath = "/v1/chat/completions"
	LivenessPath        = "/health"
)

// Options are the collaborators of a Server. Backend is required; the rest
// may be nil.
type Options struct {
	Backend    backend.Backend
	Normalizer *proxy.Normalizer
	Checker    *health.Checker
	Metrics    *metrics.Collector
	Tracer     *tracing.Tracer

	// Build information served on the version endpoint.
	Version   string
	Commit    string
	BuildTime string
}

// Server is the HTTP front of the proxy.
type Server struct {
	config     *config.Config
	opts       Options
	handler    http.Handler
	httpServer *http.Server

	mu       sync.RWMutex
	addr     net.Addr
	running  bool
	stopOnce sync.Once
}

// New creates a server for cfg. The handler chain is built once here.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if opts.Checker == nil {
		opts.Checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	}
	if opts.Metrics != nil {
		opts.Checker.SetObserver(opts.Metrics.UpdateBackendHealth)
	}

	s := &Server{config: cfg, opts: opts}
	s.handler = s.setupRoutes()
	return s, nil
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	chatOpts := []handlers.Option{
		handlers.WithMaxBodyBytes(s.config.Proxy.MaxBodyBytes),
		handlers.WithRequestLogging(s.config.Proxy.LogRequests),
		handlers.WithMetrics(s.opts.Metrics),
	}
	if s.opts.Normalizer != nil {
		chatOpts = append(chatOpts, handlers.WithNormalizer(s.opts.Normalizer))
	}

	hc := s.config.Telemetry.Health
	mux.Handle(ChatCompletionsPath, handlers.NewChatHandler(s.opts.Backend, chatOpts...))
	mux.Handle(LivenessPath, health.LivenessHandler())
	mux.Handle(hc.ReadinessPath, s.opts.Checker.ReadinessHandler())
	mux.Handle(hc.VersionPath, health.VersionHandler(s.opts.Version, s.opts.Commit, s.opts.BuildTime))

	mc := s.config.Telemetry.Metrics
	if mc.Enabled && s.opts.Metrics != nil {
		mux.Handle(mc.Path, s.opts.Metrics.Handler())
	}

	return middleware.Chain(mux,
		middleware.RecoveryMiddleware,
		middleware.RequestIDMiddleware,
		middleware.TracingMiddleware(s.opts.Tracer),
		middleware.LoggingMiddleware,
		middleware.CORSMiddleware(&s.config.Proxy.CORS),
	)
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Proxy.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Proxy.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within proxy.shutdown_timeout. It returns nil after a clean
// shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server is already running")
	}
	s.running = true
	s.addr = ln.Addr()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	pc := s.config.Proxy
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    pc.ReadTimeout,
		WriteTimeout:   pc.WriteTimeout,
		IdleTimeout:    pc.IdleTimeout,
		MaxHeaderBytes: pc.MaxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	tlsCfg := s.config.Security.TLS
	if tlsCfg.Enabled {
		tlsConfig, err := s.configureTLS(ctx, &tlsCfg)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
		ln = cryptotls.NewListener(ln, tlsConfig)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting proxy server", "address", ln.Addr().String(), "tls_enabled", tlsCfg.Enabled)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections and waits for in-flight requests,
// streams included, up to proxy.shutdown_timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.httpServer == nil {
			return
		}

		slog.Info("initiating graceful shutdown", "timeout", s.config.Proxy.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Proxy.ShutdownTimeout)
		defer cancel()

		if shutdownErr := s.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Error("error during server shutdown", "error", shutdownErr)
			_ = s.httpServer.Close()
			err = fmt.Errorf("server shutdown error: %w", shutdownErr)
			return
		}

		slog.Info("proxy server stopped")
	})
	return err
}

func (s *Server) configureTLS(ctx context.Context, cfg *config.TLSConfig) (*cryptotls.Config, error) {
	reloader, err := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	if err := reloader.Watch(ctx); err != nil {
		slog.Warn("certificate reload disabled", "error", err)
	}
	return tls.ServerConfig(cfg, reloader)
}

// Addr returns the listening address once Serve has started, or "".
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// IsRunning reports whether Serve is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
