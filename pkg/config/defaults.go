package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:4000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 0
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxBodyBytes    = 10485760 // 10MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600

	// Backend defaults
	DefaultUpstreamMaxRetries  = 2
	DefaultUpstreamBackoff     = 500 * time.Millisecond
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "auto"
	DefaultRedactPII = true

	// Metrics defaults
	DefaultMetricsEnabled      = true
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "chatproxy"
	DefaultMaxModelCardinality = 100

	// Tracing defaults
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 0.1
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "chatproxy"
	DefaultTracingOTLPInsecure = true
	DefaultTracingOTLPTimeout  = 10 * time.Second

	// Health defaults
	DefaultHealthReadinessPath = "/ready"
	DefaultHealthVersionPath   = "/version"
	DefaultHealthCheckTimeout  = 2 * time.Second

	// Security defaults
	DefaultTLSMinVersion    = "1.3"
	DefaultSecretsEnvPrefix = "CHATPROXY_SECRET_"
	DefaultSecretsFilePath  = "/var/run/secrets/chatproxy"
	DefaultSecretsCacheTTL  = 5 * time.Minute

	// Built-in upstreams
	DefaultOpenAIUpstreamName    = "openai"
	DefaultOpenAIBaseURL         = "https://api.openai.com/v1"
	DefaultOllamaUpstreamName    = "ollama"
	DefaultOllamaBaseURL         = "http://127.0.0.1:11434/v1"
	DefaultOllamaPrefix          = "ollama/"
	defaultOllamaHealthCheckPath = "/api/version"
)

// DefaultRequestDurationBuckets are the request latency histogram buckets.
// Streaming completions routinely run for tens of seconds.
var DefaultRequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// DefaultOllamaStripFields are the request parameters the local Ollama
// backend rejects or mishandles.
var DefaultOllamaStripFields = []string{
	"top_p",
	"temperature",
	"presence_penalty",
	"tool_choice",
	"tools",
	"seed",
}

// NewDefault returns a configuration populated with every default. YAML is
// decoded on top of it so that keys absent from the file keep their default,
// including boolean defaults that are true.
func NewDefault() *Config {
	return &Config{
		Proxy: ProxyConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			CORS: CORSConfig{
				Enabled: DefaultCORSEnabled,
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				RedactPII: DefaultRedactPII,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
			Tracing: TracingConfig{
				OTLP: OTLPConfig{Insecure: DefaultTracingOTLPInsecure},
			},
		},
		Security: SecurityConfig{
			Secrets: SecretsConfig{
				Env:  EnvSecretsConfig{Enabled: true},
				File: FileSecretsConfig{Watch: true},
			},
		},
	}
}

// ApplyDefaults fills zero-valued fields with their defaults. It is safe to
// call on a configuration that was built from NewDefault.
func ApplyDefaults(cfg *Config) {
	applyProxyDefaults(&cfg.Proxy)
	applyBackendDefaults(&cfg.Backend)
	applyNormalizationDefaults(&cfg.Normalization)
	applyTelemetryDefaults(&cfg.Telemetry)
	applySecurityDefaults(&cfg.Security)
}

func applyProxyDefaults(cfg *ProxyConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	applyCORSDefaults(&cfg.CORS)
}

func applyCORSDefaults(cfg *CORSConfig) {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID", "api-key"}
	}
	if len(cfg.ExposedHeaders) == 0 {
		cfg.ExposedHeaders = []string{"X-Request-ID", "Retry-After"}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = DefaultCORSMaxAge
	}
}

// applyBackendDefaults installs the built-in upstream pair when none are
// configured: OpenAI as the default route and a local Ollama server for
// models prefixed "ollama/".
func applyBackendDefaults(cfg *BackendConfig) {
	if len(cfg.Upstreams) == 0 {
		cfg.Upstreams = []UpstreamConfig{
			{
				Name:    DefaultOpenAIUpstreamName,
				BaseURL: DefaultOpenAIBaseURL,
			},
			{
				Name:          DefaultOllamaUpstreamName,
				BaseURL:       DefaultOllamaBaseURL,
				ModelPrefixes: []string{DefaultOllamaPrefix},
				StripPrefix:   true,
				HealthPath:    defaultOllamaHealthCheckPath,
			},
		}
	}
	if cfg.Default == "" {
		cfg.Default = cfg.Upstreams[0].Name
	}

	for i := range cfg.Upstreams {
		up := &cfg.Upstreams[i]
		if up.MaxRetries == 0 {
			up.MaxRetries = DefaultUpstreamMaxRetries
		}
		if up.RetryBackoff == 0 {
			up.RetryBackoff = DefaultUpstreamBackoff
		}
		if up.MaxIdleConns == 0 {
			up.MaxIdleConns = DefaultMaxIdleConns
		}
		if up.MaxIdleConnsPerHost == 0 {
			up.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
		}
		if up.IdleConnTimeout == 0 {
			up.IdleConnTimeout = DefaultIdleConnTimeout
		}
	}
}

func applyNormalizationDefaults(cfg *NormalizationConfig) {
	if len(cfg.Rules) == 0 {
		cfg.Rules = []NormalizationRule{
			{
				Prefix:         DefaultOllamaPrefix,
				FlattenContent: true,
				StripFields:    append([]string(nil), DefaultOllamaStripFields...),
			},
		}
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Metrics.RequestDurationBuckets) == 0 {
		cfg.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Metrics.MaxModelCardinality == 0 {
		cfg.Metrics.MaxModelCardinality = DefaultMaxModelCardinality
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 && cfg.Tracing.Sampler == "ratio" {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultTracingOTLPTimeout
	}

	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Health.VersionPath == "" {
		cfg.Health.VersionPath = DefaultHealthVersionPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}

func applySecurityDefaults(cfg *SecurityConfig) {
	if cfg.TLS.MinVersion == "" {
		cfg.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Secrets.Env.Prefix == "" {
		cfg.Secrets.Env.Prefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.File.Path == "" {
		cfg.Secrets.File.Path = DefaultSecretsFilePath
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}
}
