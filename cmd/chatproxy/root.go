package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/chatproxy/pkg/cli"
	"mercator-hq/chatproxy/pkg/config"
)

var (
	// Global flags
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "chatproxy",
	Short: "Chatproxy - OpenAI-compatible chat completions proxy",
	Long: `Chatproxy is an HTTP proxy for OpenAI-compatible chat completion APIs.

It forwards POST /v1/chat/completions to a configured upstream and:
  - Accepts the caller's API key from the Authorization header or the body
  - Normalizes request shapes per model family
  - Relays streamed completions as server-sent events
  - Translates upstream failures into OpenAI-style error responses

Configuration is read from an optional YAML file and CHATPROXY_* environment
variables, which take precedence.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return cli.NewConfigError(envFile, err)
		}
		return nil
	},
}

// Execute runs the root command and exits with the code matching the
// error, if any.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading configuration (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
