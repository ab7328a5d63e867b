package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/chatproxy/pkg/backend"
	"mercator-hq/chatproxy/pkg/cli"
	"mercator-hq/chatproxy/pkg/config"
	"mercator-hq/chatproxy/pkg/proxy"
	"mercator-hq/chatproxy/pkg/security/secrets"
	"mercator-hq/chatproxy/pkg/server"
	"mercator-hq/chatproxy/pkg/telemetry/health"
	"mercator-hq/chatproxy/pkg/telemetry/logging"
	"mercator-hq/chatproxy/pkg/telemetry/metrics"
	"mercator-hq/chatproxy/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	logRequests   bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the specified configuration.

The server listens on the configured address and forwards chat completion
requests to the configured upstreams until it receives SIGINT or SIGTERM.
A second signal exits immediately.

Examples:
  # Start with defaults
  chatproxy run

  # Start with custom config
  chatproxy run --config /etc/chatproxy/config.yaml

  # Override listen address
  chatproxy run --listen 0.0.0.0:8080

  # Log every request body (credentials redacted)
  chatproxy run --log-requests

  # Validate config without starting server
  chatproxy run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.logRequests, "log-requests", false, "log incoming request headers and bodies")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	cfg := config.GetConfig()

	applyRunOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	logger, err := logging.New(logging.ConfigFrom(&cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(logger.Slog())

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	app, err := newApp(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer app.Close()

	printBanner(out, cfg)

	ctx, cancel := cli.SetupSignalHandler(context.Background(), func() {
		slog.Warn("forced shutdown")
	})
	defer cancel()

	if err := app.waitForBackends(ctx, cfg.Backend.WaitOnStartup); err != nil {
		return &cli.CommandError{Command: "run", Code: cli.ExitUnhealthy, Err: err}
	}

	if err := app.server.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// applyRunOverrides copies explicitly set flags over the loaded
// configuration.
func applyRunOverrides(cfg *config.Config) {
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.logRequests {
		cfg.Proxy.LogRequests = true
	}
}

// app holds the wired components of a running proxy.
type app struct {
	server  *server.Server
	router  *backend.Router
	checker *health.Checker
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	secrets *secrets.Manager
}

// newApp builds every component from cfg. On error, anything already
// created is released.
func newApp(cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.Telemetry.Metrics.Enabled {
		a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	a.secrets, err = secrets.NewManagerFromConfig(&cfg.Security.Secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets: %w", err)
	}

	a.router, err = backend.NewFromConfig(&cfg.Backend,
		backend.WithSecrets(a.secrets),
		backend.WithTracer(a.tracer),
		backend.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backends: %w", err)
	}

	a.checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	for name, hc := range a.router.HealthCheckers() {
		a.checker.RegisterCheck(name, hc.HealthCheck)
	}

	a.server, err = server.New(cfg, server.Options{
		Backend:    a.router,
		Normalizer: proxy.NewNormalizer(cfg.Normalization.Rules),
		Checker:    a.checker,
		Metrics:    a.metrics,
		Tracer:     a.tracer,
		Version:    Version,
		Commit:     GitCommit,
		BuildTime:  BuildDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return a, nil
}

// waitForBackends blocks until every probed upstream is healthy or timeout
// elapses. A zero timeout skips the wait.
func (a *app) waitForBackends(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	for name, hc := range a.router.HealthCheckers() {
		slog.Info("waiting for backend", "backend", name, "timeout", timeout.String())
		if err := backend.WaitHealthy(ctx, hc, 500*time.Millisecond); err != nil {
			errs = append(errs, fmt.Errorf("backend %s: %w", name, err))
			continue
		}
		a.metrics.UpdateBackendHealth(name, true)
	}
	return errors.Join(errs...)
}

// Close releases the router, secret providers and tracer.
func (a *app) Close() {
	if a.router != nil {
		if err := a.router.Close(); err != nil {
			slog.Warn("failed to close backends", "error", err)
		}
	}
	if a.secrets != nil {
		if err := a.secrets.Close(); err != nil {
			slog.Warn("failed to close secret providers", "error", err)
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
}

func printBanner(w io.Writer, cfg *config.Config) {
	scheme := "http"
	if cfg.Security.TLS.Enabled {
		scheme = "https"
	}

	fmt.Fprintf(w, "Chatproxy %s\n", Version)
	fmt.Fprintf(w, "✓ Listening on %s://%s%s\n", scheme, cfg.Proxy.ListenAddress, server.ChatCompletionsPath)
	for _, up := range cfg.Backend.Upstreams {
		marker := ""
		if up.Name == cfg.Backend.Default {
			marker = " (default)"
		}
		fmt.Fprintf(w, "✓ Upstream %s -> %s%s\n", up.Name, up.BaseURL, marker)
	}
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(w, "✓ Metrics on %s\n", cfg.Telemetry.Metrics.Path)
	}
	if cfg.Telemetry.Tracing.Enabled {
		fmt.Fprintf(w, "✓ Tracing to %s\n", cfg.Telemetry.Tracing.Endpoint)
	}
	if cfg.Proxy.LogRequests {
		fmt.Fprintln(w, "✓ Request logging enabled")
	}
}
