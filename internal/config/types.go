package config

import (
	"time"
)

// Config holds the application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Monolith      MonolithConfig      `mapstructure:"monolith"`
	Catalog       GRPCServiceConfig   `mapstructure:"catalog"`
	Search        GRPCServiceConfig   `mapstructure:"search"`
	PremiumSearch PremiumSearchConfig `mapstructure:"premium_search"`
	Remote        RemoteConfig        `mapstructure:"remote"`
	Extensions    ExtensionsConfig    `mapstructure:"extensions"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// ExtensionConfig supplies values for keys declared by extensions.
	// Environment variables with the same name take precedence.
	ExtensionConfig map[string]string `mapstructure:"extension_config"`
}

// MonolithConfig points at the legacy GraphQL endpoint proxied by the gateway.
type MonolithConfig struct {
	// GraphQLURL is configured via "monolith.graphql_url" or MONOLITH_GRAPHQL_URL.
	GraphQLURL string `mapstructure:"graphql_url"`
	// IntrospectionTimeout bounds the total time spent retrying introspection on startup.
	IntrospectionTimeout time.Duration `mapstructure:"introspection_timeout"`
	// RequestTimeout bounds a single delegated request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// MaxBatchSize caps the number of keys sent in one batched delegation.
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

// GRPCServiceConfig holds connection settings for a storefront gRPC service.
type GRPCServiceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Insecure       bool          `mapstructure:"insecure"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PremiumSearchConfig holds the Premium Search GraphQL integration settings.
type PremiumSearchConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	GraphQLURL     string        `mapstructure:"graphql_url"`
	APIKey         string        `mapstructure:"api_key"`
	APIKeyFile     string        `mapstructure:"api_key_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RemoteConfig configures extensions hosted as Adobe I/O Runtime functions.
type RemoteConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Namespace   string        `mapstructure:"namespace"`
	APIKey      string        `mapstructure:"api_key"`
	APIKeyFile  string        `mapstructure:"api_key_file"`
	Packages    []string      `mapstructure:"packages"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// ExtensionsConfig controls local extension discovery.
type ExtensionsConfig struct {
	// Roots are directories scanned one level deep for extension packages.
	Roots []string `mapstructure:"roots"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	GraphQLMaxDepth      int           `mapstructure:"graphql_max_depth"`
	GraphiQLEnabled      bool          `mapstructure:"graphiql_enabled"`
	RateLimitEnabled     bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	CORSEnabled          bool          `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string      `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string      `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string      `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders    []string      `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials bool          `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int           `mapstructure:"cors_max_age"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	IdleTimeout          time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout   time.Duration `mapstructure:"health_check_timeout"`
	// AdminAuthToken enables POST /admin/reload-schema when non-empty.
	AdminAuthToken     string `mapstructure:"admin_auth_token"`
	AdminAuthTokenFile string `mapstructure:"admin_auth_token_file"`
	AdminAuthHeader    string `mapstructure:"admin_auth_header"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	File           string `mapstructure:"file"`            // Optional path, logs are written to stdout and the file
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces  *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs    *OTLPConfig `mapstructure:"logs,omitempty"`
	Metrics *OTLPConfig `mapstructure:"metrics,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the effective OTLP config for traces
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// GetLogsConfig returns the effective OTLP config for logs
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// GetMetricsConfig returns the effective OTLP config for metrics
func (c *ObservabilityConfig) GetMetricsConfig() OTLPConfig {
	if c.Metrics != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Metrics)
	}
	return c.OTLP
}

// mergeOTLPConfigs overlays signal-specific settings on the global ones.
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	result := base

	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	// Insecure cannot distinguish "unset" from false; a present override wins.
	result.Insecure = override.Insecure

	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}

	if override.Headers != nil {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			result.Headers[k] = v
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	if override.RetryMaxAttempts != 0 {
		result.RetryEnabled = override.RetryEnabled
		result.RetryMaxAttempts = override.RetryMaxAttempts
	}

	return result
}

// Address returns host:port for a gRPC service.
func (g GRPCServiceConfig) Address() string {
	return joinHostPort(g.Host, g.Port)
}

// ListenAddress returns the address the HTTP server binds to.
func (s ServerConfig) ListenAddress() string {
	return joinHostPort(s.Host, s.Port)
}
