package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Server.validate(result)
	c.Monolith.validate(result)
	c.Catalog.validate("catalog", result)
	c.Search.validate("search", result)
	c.PremiumSearch.validate(result)
	c.Remote.validate(result)
	c.Extensions.validate(result)
	c.Observability.validate(result)

	return result
}

func (m *MonolithConfig) validate(result *ValidationResult) {
	validateHTTPURL(result, "monolith.graphql_url", m.GraphQLURL,
		"set MONOLITH_GRAPHQL_URL to the GraphQL endpoint of your Magento instance")
	if m.IntrospectionTimeout <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "monolith.introspection_timeout",
			Message: "introspection_timeout must be greater than 0",
		})
	}
	if m.RequestTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "monolith.request_timeout",
			Message: "request_timeout cannot be negative",
		})
	}
	if m.MaxBatchSize <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "monolith.max_batch_size",
			Message: "max_batch_size must be greater than 0",
		})
	}
}

func (g *GRPCServiceConfig) validate(prefix string, result *ValidationResult) {
	if !g.Enabled {
		return
	}
	if strings.TrimSpace(g.Host) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required when the integration is enabled",
		})
	}
	if g.Port < 1 || g.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", g.Port),
		})
	}
	if g.RequestTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".request_timeout",
			Message: "request_timeout cannot be negative",
		})
	}
}

func (p *PremiumSearchConfig) validate(result *ValidationResult) {
	if !p.Enabled {
		return
	}
	validateHTTPURL(result, "premium_search.graphql_url", p.GraphQLURL, "")
	if p.APIKey == "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "premium_search.api_key",
			Message: "premium search is enabled without an API key",
			Hint:    "set PREMIUM_SEARCH_API_KEY or premium_search.api_key_file",
		})
	}
}

func (r *RemoteConfig) validate(result *ValidationResult) {
	if !r.Enabled {
		if len(r.Packages) > 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "remote.packages",
				Message: "remote packages are configured but remote extensions are disabled",
				Hint:    "set ENABLE_ADOBE_IO=true to load them",
			})
		}
		return
	}
	if strings.TrimSpace(r.Host) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "remote.host",
			Message: "host is required when remote extensions are enabled",
		})
	}
	if strings.TrimSpace(r.Namespace) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "remote.namespace",
			Message: "namespace is required when remote extensions are enabled",
		})
	}
	for _, pkg := range r.Packages {
		if strings.TrimSpace(pkg) == "" || strings.Contains(pkg, "/") {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "remote.packages",
				Message: fmt.Sprintf("invalid package name %q", pkg),
				Hint:    "package names must be non-empty and cannot contain '/'",
			})
		}
	}
	if r.CallTimeout <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "remote.call_timeout",
			Message: "call_timeout must be greater than 0",
		})
	}
}

func (e *ExtensionsConfig) validate(result *ValidationResult) {
	seen := map[string]bool{}
	for _, root := range e.Roots {
		root = strings.TrimSpace(root)
		if root == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "extensions.roots",
				Message: "extension root cannot be empty",
			})
			continue
		}
		if seen[root] {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "extensions.roots",
				Message: fmt.Sprintf("extension root %q is listed more than once", root),
			})
		}
		seen[root] = true
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port),
		})
	}

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.rate_limit_rps",
				Message: "rate_limit_rps must be greater than 0 when rate limiting is enabled",
			})
		}
		if s.RateLimitBurst <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.rate_limit_burst",
				Message: "rate_limit_burst must be greater than 0 when rate limiting is enabled",
			})
		}
	}

	if !s.RateLimitEnabled && (s.RateLimitRPS > 0 || s.RateLimitBurst > 0) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.rate_limit_enabled",
			Message: "rate limit values are set but rate limiting is disabled",
			Hint:    "enable server.rate_limit_enabled to apply rate limits",
		})
	}

	if s.AdminAuthToken != "" && len(s.AdminAuthToken) < 16 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.admin_auth_token",
			Message: "admin token is shorter than 16 characters",
			Hint:    "use a long random value for the schema reload endpoint",
		})
	}

	if s.GraphQLMaxDepth < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.graphql_max_depth",
			Message: "graphql_max_depth cannot be negative",
		})
	}

	if s.CORSEnabled {
		if len(s.CORSAllowedOrigins) == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "CORS enabled but no allowed origins configured",
				Hint:    "set cors_allowed_origins or disable CORS",
			})
		}

		hasWildcard := false
		for _, origin := range s.CORSAllowedOrigins {
			if strings.TrimSpace(origin) == "*" {
				hasWildcard = true
				break
			}
		}

		if hasWildcard && s.CORSAllowCredentials {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "wildcard origin (*) cannot be used with credentials",
				Hint:    "use specific origins with credentials, or wildcard without credentials",
			})
		}

		if hasWildcard {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS wildcard origin enabled",
				Hint:    "use specific origins in production for better security",
			})
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace_sample_ratio %v is out of range", o.TraceSampleRatio),
			Hint:    "use a value between 0.0 and 1.0",
		})
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
	if o.Metrics != nil {
		o.Metrics.validate("observability.metrics", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" {
		if !validOTLPEndpoint(o.Endpoint) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".endpoint",
				Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
				Hint:    "use host:port or a full URL",
			})
		}
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.RetryMaxAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".retry_max_attempts",
			Message: "retry_max_attempts cannot be negative",
		})
	}
}

func validateHTTPURL(result *ValidationResult, field, raw, hint string) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid absolute URL %q", raw),
			Hint:    hint,
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
