package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/chatproxy/pkg/cli"
	"mercator-hq/chatproxy/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration file and environment overrides and report whether
the result is valid, without starting the server.

The command exits with status 2 when the configuration is invalid.

Examples:
  # Validate the defaults plus CHATPROXY_* variables
  chatproxy validate

  # Validate a file
  chatproxy validate --config config.yaml

  # Machine-readable output
  chatproxy validate --config config.yaml --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// upstreamSummary is one configured upstream in a validation report.
type upstreamSummary struct {
	Name     string   `json:"name"`
	BaseURL  string   `json:"base_url"`
	Prefixes []string `json:"model_prefixes,omitempty"`
	Default  bool     `json:"default,omitempty"`
}

// validationResult is the report printed by the validate command.
type validationResult struct {
	Valid         bool              `json:"valid"`
	ConfigFile    string            `json:"config_file,omitempty"`
	ListenAddress string            `json:"listen_address,omitempty"`
	TLS           bool              `json:"tls"`
	Upstreams     []upstreamSummary `json:"upstreams,omitempty"`
	Errors        []string          `json:"errors,omitempty"`
}

// TextLines renders the report for terminals.
func (r *validationResult) TextLines() []string {
	source := r.ConfigFile
	if source == "" {
		source = "(defaults)"
	}

	if !r.Valid {
		lines := []string{fmt.Sprintf("✗ Configuration %s is invalid:", source)}
		for _, e := range r.Errors {
			lines = append(lines, "  - "+e)
		}
		return lines
	}

	lines := []string{
		fmt.Sprintf("✓ Configuration %s is valid", source),
		fmt.Sprintf("  Listen address: %s (tls: %t)", r.ListenAddress, r.TLS),
	}
	for _, up := range r.Upstreams {
		line := fmt.Sprintf("  Upstream %s: %s", up.Name, up.BaseURL)
		if up.Default {
			line += " (default)"
		}
		if len(up.Prefixes) > 0 {
			line += fmt.Sprintf(" prefixes=%v", up.Prefixes)
		}
		lines = append(lines, line)
	}
	return lines
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.format)
	if err != nil {
		return err
	}

	result, loadErr := buildValidationResult(cfgFile)
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
		return cli.NewCommandError("validate", err)
	}
	if loadErr != nil {
		return cli.NewConfigError(cfgFile, loadErr)
	}
	return nil
}

// buildValidationResult loads path and summarizes it. The load error is
// returned alongside the report so that callers can set the exit code.
func buildValidationResult(path string) (*validationResult, error) {
	result := &validationResult{ConfigFile: path}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		var valErr config.ValidationError
		if errors.As(err, &valErr) {
			for _, fe := range valErr.Errors {
				result.Errors = append(result.Errors, fe.Error())
			}
		} else {
			result.Errors = []string{err.Error()}
		}
		return result, err
	}

	result.Valid = true
	result.ListenAddress = cfg.Proxy.ListenAddress
	result.TLS = cfg.Security.TLS.Enabled
	for _, up := range cfg.Backend.Upstreams {
		result.Upstreams = append(result.Upstreams, upstreamSummary{
			Name:     up.Name,
			BaseURL:  up.BaseURL,
			Prefixes: up.ModelPrefixes,
			Default:  up.Name == cfg.Backend.Default,
		})
	}
	return result, nil
}
