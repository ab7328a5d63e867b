package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateBackend(&cfg.Backend)...)
	errs = append(errs, validateNormalization(&cfg.Normalization)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: fmt.Sprintf("invalid host:port: %v", err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.read_timeout", Message: "read timeout must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.write_timeout", Message: "write timeout must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.idle_timeout", Message: "idle timeout must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.shutdown_timeout", Message: "shutdown timeout must not be negative"})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "proxy.max_header_bytes", Message: "max header bytes must be non-negative"})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{Field: "proxy.max_header_bytes", Message: "max header bytes exceeds reasonable limit (10MB)"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "proxy.max_body_bytes", Message: "max body bytes must be non-negative"})
	}

	return errs
}

func validateBackend(cfg *BackendConfig) []FieldError {
	var errs []FieldError

	if len(cfg.Upstreams) == 0 {
		return append(errs, FieldError{
			Field:   "backend.upstreams",
			Message: "at least one upstream must be configured",
		})
	}

	if cfg.WaitOnStartup < 0 {
		errs = append(errs, FieldError{Field: "backend.wait_on_startup", Message: "wait on startup must not be negative"})
	}

	names := make(map[string]bool, len(cfg.Upstreams))
	prefixes := make(map[string]string)
	for i, up := range cfg.Upstreams {
		field := fmt.Sprintf("backend.upstreams[%d]", i)

		if up.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "name is required"})
		} else if names[up.Name] {
			errs = append(errs, FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate upstream name %q", up.Name)})
		}
		names[up.Name] = true

		if up.BaseURL == "" {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: "base URL is required"})
		} else if u, err := url.Parse(up.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: fmt.Sprintf("invalid URL %q", up.BaseURL)})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: "scheme must be http or https"})
		}

		for _, prefix := range up.ModelPrefixes {
			if prefix == "" {
				errs = append(errs, FieldError{Field: field + ".model_prefixes", Message: "prefix must not be empty"})
				continue
			}
			if owner, ok := prefixes[prefix]; ok {
				errs = append(errs, FieldError{
					Field:   field + ".model_prefixes",
					Message: fmt.Sprintf("prefix %q already routed to %q", prefix, owner),
				})
			}
			prefixes[prefix] = up.Name
		}

		if up.StripPrefix && len(up.ModelPrefixes) == 0 {
			errs = append(errs, FieldError{Field: field + ".strip_prefix", Message: "strip_prefix requires model_prefixes"})
		}
		if up.Timeout < 0 {
			errs = append(errs, FieldError{Field: field + ".timeout", Message: "timeout must not be negative"})
		}
		if up.MaxRetries < 0 || up.MaxRetries > 10 {
			errs = append(errs, FieldError{Field: field + ".max_retries", Message: "max retries must be between 0 and 10"})
		}
		if up.HealthPath != "" && !strings.HasPrefix(up.HealthPath, "/") {
			errs = append(errs, FieldError{Field: field + ".health_path", Message: "health path must start with /"})
		}
	}

	if cfg.Default != "" && !names[cfg.Default] {
		errs = append(errs, FieldError{
			Field:   "backend.default",
			Message: fmt.Sprintf("default upstream %q is not configured", cfg.Default),
		})
	}

	return errs
}

func validateNormalization(cfg *NormalizationConfig) []FieldError {
	var errs []FieldError

	for i, rule := range cfg.Rules {
		if rule.Prefix == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("normalization.rules[%d].prefix", i),
				Message: "prefix is required",
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn or error)", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "auto":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text or auto)", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0 and 1"})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
	}

	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{Field: "telemetry.health.check_timeout", Message: "check timeout must not be negative"})
	}

	return errs
}

func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "security.tls.cert_file", Message: "cert file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "security.tls.key_file", Message: "key file is required when TLS is enabled"})
		}
	}
	switch cfg.TLS.MinVersion {
	case "1.2", "1.3":
	default:
		errs = append(errs, FieldError{
			Field:   "security.tls.min_version",
			Message: fmt.Sprintf("invalid TLS version %q (must be 1.2 or 1.3)", cfg.TLS.MinVersion),
		})
	}

	if cfg.Secrets.File.Enabled && cfg.Secrets.File.Path == "" {
		errs = append(errs, FieldError{Field: "security.secrets.file.path", Message: "path is required when file secrets are enabled"})
	}

	return errs
}
