package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/chatproxy/pkg/cli"
	"mercator-hq/chatproxy/pkg/config"
	"mercator-hq/chatproxy/pkg/server"
)

var healthcheckFlags struct {
	url      string
	timeout  time.Duration
	interval time.Duration
}

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a running proxy",
	Long: `Poll the liveness endpoint of a running proxy until it answers 200 or the
timeout expires. Intended for container health checks, where no HTTP client
is available in the image.

The URL defaults to the liveness endpoint on the configured listen address.
The command exits with status 3 when the proxy is not healthy.

Examples:
  chatproxy healthcheck
  chatproxy healthcheck --url http://127.0.0.1:4000/health --timeout 5s`,
	RunE: runHealthcheck,
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)

	healthcheckCmd.Flags().StringVar(&healthcheckFlags.url, "url", "", "URL to probe (default: liveness endpoint on the listen address)")
	healthcheckCmd.Flags().DurationVar(&healthcheckFlags.timeout, "timeout", 10*time.Second, "give up after this long")
	healthcheckCmd.Flags().DurationVar(&healthcheckFlags.interval, "interval", 500*time.Millisecond, "delay between attempts")
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	target := healthcheckFlags.url
	if target == "" {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return cli.NewConfigError(cfgFile, err)
		}
		target = "http://" + cfg.Proxy.ListenAddress + server.LivenessPath
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), healthcheckFlags.timeout)
	defer cancel()

	if err := pollHealthy(ctx, http.DefaultClient, target, healthcheckFlags.interval); err != nil {
		return &cli.CommandError{Command: "healthcheck", Code: cli.ExitUnhealthy, Err: err}
	}

	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is healthy\n", target)
	}
	return nil
}

// pollHealthy requests url every interval until it answers 200 or ctx
// ends. The returned error wraps the last failure.
func pollHealthy(ctx context.Context, client *http.Client, url string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lastErr := probe(ctx, client, url)
		if lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Join(fmt.Errorf("%s not healthy: %w", url, ctx.Err()), lastErr)
		case <-ticker.C:
		}
	}
}

func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
