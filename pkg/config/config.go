package config

import "time"

// Config is the root configuration structure for chatproxy.
// It contains the HTTP listener settings, the completion backend upstreams,
// payload normalization rules, telemetry and security settings.
type Config struct {
	// Proxy contains HTTP proxy server configuration including listen address,
	// timeouts, body limits and request logging.
	Proxy ProxyConfig `yaml:"proxy"`

	// Backend contains the upstream completion endpoints and the model-prefix
	// routing between them.
	Backend BackendConfig `yaml:"backend"`

	// Normalization contains per-model-family payload shaping rules.
	Normalization NormalizationConfig `yaml:"normalization"`

	// Telemetry contains configuration for observability including logging,
	// metrics, distributed tracing and health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains TLS and secret provider configuration.
	Security SecurityConfig `yaml:"security"`
}

// ProxyConfig contains configuration for the HTTP proxy server.
type ProxyConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:4000", "0.0.0.0:4000").
	// Default: "127.0.0.1:4000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming responses are open for as long as the backend
	// produces chunks, so a non-zero value cuts long streams.
	// Default: 0 (no timeout)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the size of a chat completion request body.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// LogRequests dumps every chat request (method, URL, headers and body)
	// at info level with credentials redacted. Fixed at startup.
	// Default: false
	LogRequests bool `yaml:"log_requests"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "X-Request-ID", "api-key"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	// Default: ["X-Request-ID", "Retry-After"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// BackendConfig describes the completion backend: a set of OpenAI-compatible
// upstreams and the rules that pick one for a given model.
//
// # Routing
//
// A model is sent to the upstream owning the longest prefix it starts with.
// Models matching no prefix go to the default upstream.
//
//	backend:
//	  default: openai
//	  upstreams:
//	    - name: openai
//	      base_url: https://api.openai.com/v1
//	    - name: ollama
//	      base_url: http://127.0.0.1:11434/v1
//	      model_prefixes: ["ollama/"]
//	      strip_prefix: true
//	      health_path: /api/version
//
// Here "gpt-4o" goes to openai and "ollama/llama3" reaches the local server
// as "llama3".
type BackendConfig struct {
	// Default is the name of the upstream used when no model prefix matches.
	// Default: "openai"
	Default string `yaml:"default"`

	// WaitOnStartup blocks startup until every upstream with a health path
	// reports healthy, up to this duration. Zero disables the wait.
	// Default: 0
	WaitOnStartup time.Duration `yaml:"wait_on_startup"`

	// Upstreams lists the upstream endpoints.
	Upstreams []UpstreamConfig `yaml:"upstreams"`
}

// UpstreamConfig configures one OpenAI-compatible upstream endpoint.
type UpstreamConfig struct {
	// Name identifies the upstream in logs, metrics and routing.
	Name string `yaml:"name"`

	// BaseURL is the API root; "/chat/completions" is appended to it.
	BaseURL string `yaml:"base_url"`

	// APIKey is used when the caller supplies no credential.
	APIKey string `yaml:"api_key"`

	// APIKeySecret names a secret resolved through the secret providers when
	// the caller supplies no credential. Takes precedence over APIKey.
	APIKeySecret string `yaml:"api_key_secret"`

	// ModelPrefixes routes models starting with any of these prefixes to this
	// upstream. The longest matching prefix across all upstreams wins.
	ModelPrefixes []string `yaml:"model_prefixes"`

	// StripPrefix removes the matched model prefix before forwarding, so
	// "ollama/llama3" reaches the upstream as "llama3".
	StripPrefix bool `yaml:"strip_prefix"`

	// Headers are added to every upstream request.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds the wait for the upstream's response headers. A stream
	// that has started is never cut by it. Zero means no timeout.
	// Default: 0
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries for network errors and 5xx answers.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the base delay of the exponential retry backoff.
	// Default: 500ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// HealthPath is requested with GET for readiness checks, relative to
	// BaseURL's host (e.g. "/health" or "/v1/models"). Empty disables active
	// checks for this upstream.
	HealthPath string `yaml:"health_path"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the maximum number of idle connections per host.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// NormalizationConfig contains the payload normalization rules.
type NormalizationConfig struct {
	// Rules are matched against the request model by prefix.
	// Default: a single "ollama/" rule that flattens content and strips
	// top_p, temperature, presence_penalty, tool_choice, tools and seed.
	Rules []NormalizationRule `yaml:"rules"`
}

// NormalizationRule shapes payloads for one model family. The first rule
// whose prefix matches the model is applied.
//
//	normalization:
//	  rules:
//	    - prefix: "ollama/"
//	      flatten_content: true
//	      strip_fields: [top_p, temperature, presence_penalty, tool_choice, tools, seed]
type NormalizationRule struct {
	// Prefix selects the models this rule applies to.
	Prefix string `yaml:"prefix"`

	// FlattenContent joins the text parts of multi-part message content into
	// a single string and drops non-text parts.
	FlattenContent bool `yaml:"flatten_content"`

	// StripFields are removed from the payload.
	StripFields []string `yaml:"strip_fields"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health endpoint configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json", "text" or "auto".
	// "auto" uses text on a terminal and JSON otherwise.
	// Default: "auto"
	Format string `yaml:"format"`

	// AddSource includes the source file and line in each log entry.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks email addresses and custom patterns in addition to
	// the credential redaction that is always applied.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "chatproxy"
	Namespace string `yaml:"namespace"`

	// Subsystem is an optional second name component.
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets are the histogram buckets in seconds.
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// MaxModelCardinality caps the number of distinct model label values.
	// Further models are reported as "other".
	// Default: 100
	MaxModelCardinality int `yaml:"max_model_cardinality"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" sampler (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "chatproxy"
	ServiceName string `yaml:"service_name"`

	// OTLP contains exporter connection settings.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter settings.
type OTLPConfig struct {
	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// ReadinessPath serves aggregated upstream checks.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath serves build information.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// TLS contains listener TLS configuration.
	TLS TLSConfig `yaml:"tls"`

	// Secrets contains secret provider configuration used to resolve
	// upstream API keys.
	Secrets SecretsConfig `yaml:"secrets"`
}

// TLSConfig contains TLS listener configuration.
type TLSConfig struct {
	// Enabled serves HTTPS instead of HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM certificate path.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM private key path.
	KeyFile string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`
}

// SecretsConfig configures where upstream secrets come from. Providers are
// consulted in order: environment first, then files.
type SecretsConfig struct {
	// Env reads secrets from environment variables.
	Env EnvSecretsConfig `yaml:"env"`

	// File reads secrets from files in a directory.
	File FileSecretsConfig `yaml:"file"`

	// CacheTTL is how long resolved secrets are cached.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// EnvSecretsConfig configures the environment secret provider.
type EnvSecretsConfig struct {
	// Enabled turns the provider on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Prefix is prepended to the upper-cased secret name.
	// Default: "CHATPROXY_SECRET_"
	Prefix string `yaml:"prefix"`
}

// FileSecretsConfig configures the file secret provider.
type FileSecretsConfig struct {
	// Enabled turns the provider on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the directory holding one file per secret.
	// Default: "/var/run/secrets/chatproxy"
	Path string `yaml:"path"`

	// Watch reloads secrets when files change.
	// Default: true
	Watch bool `yaml:"watch"`
}
