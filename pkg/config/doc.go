// Package config provides configuration management for chatproxy.
//
// Configuration is read from an optional YAML file, overlaid with
// environment variables and validated before use.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("config.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// An empty path yields the built-in defaults: an OpenAI upstream as the
// default route and a local Ollama upstream for models prefixed "ollama/".
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CHATPROXY_SECTION_FIELD:
//
//   - CHATPROXY_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - CHATPROXY_PROXY_LOG_REQUESTS overrides proxy.log_requests
//   - CHATPROXY_UPSTREAMS_OPENAI_API_KEY overrides the api_key of the
//     upstream named "openai"
//   - CHATPROXY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// LoadEnvFile reads a dotenv file into the environment first, without
// replacing variables that are already set.
//
// # Configuration Precedence
//
//  1. Default values (NewDefault and ApplyDefaults)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton
//
//	if err := config.Initialize(path); err != nil {
//	    return err
//	}
//	cfg := config.GetConfig()
//
// Tests should pass explicit *Config values instead.
package config
