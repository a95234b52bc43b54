package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var defineFlagsOnce sync.Once

// legacyEnvNames maps canonical keys to the unprefixed environment variable
// names deployments of the gateway already use. The prefixed SFGQL_ name is
// always checked first.
var legacyEnvNames = map[string][]string{
	"server.host":                   {"HOST"},
	"server.port":                   {"PORT"},
	"monolith.graphql_url":          {"MONOLITH_GRAPHQL_URL", "LEGACY_GRAPHQL_URL"},
	"catalog.enabled":               {"ENABLE_CATALOG_STOREFRONT"},
	"catalog.host":                  {"CATALOG_STOREFRONT_HOST"},
	"catalog.port":                  {"CATALOG_STOREFRONT_PORT"},
	"search.enabled":                {"ENABLE_SEARCH_STOREFRONT"},
	"search.host":                   {"SEARCH_STOREFRONT_HOST"},
	"search.port":                   {"SEARCH_STOREFRONT_PORT"},
	"premium_search.enabled":        {"ENABLE_PREMIUM_SEARCH"},
	"premium_search.graphql_url":    {"PREMIUM_SEARCH_GRAPHQL_URL"},
	"premium_search.api_key":        {"PREMIUM_SEARCH_API_KEY"},
	"remote.enabled":                {"ENABLE_ADOBE_IO"},
	"remote.host":                   {"ADOBE_IO_HOST"},
	"remote.namespace":              {"ADOBE_IO_NAMESPACE"},
	"remote.api_key":                {"IO_API_KEY"},
	"remote.packages":               {"IO_PACKAGES"},
	"server.admin_auth_token":       {"ADMIN_AUTH_TOKEN"},
	"extensions.roots":              {"EXTENSION_ROOTS"},
	"observability.logging.level":   {"LOG_LEVEL"},
	"observability.logging.file":    {"LOG_FILE"},
	"observability.logging.format":  {"LOG_FORMAT"},
	"observability.metrics_enabled": {"METRICS_ENABLED"},
}

// Load loads configuration from multiple sources with the following precedence:
// 1. Command line flags
// 2. Environment variables (SFGQL_ prefixed, then legacy names)
// 3. Config file
// 4. Default values
func Load() (*Config, error) {
	v := viper.New()

	// Defaults (lowest priority)
	setDefaults(v)

	// --- Flags ---
	defineFlags()
	if !pflag.Parsed() {
		pflag.Parse()
	}

	// --- Config file ---
	cfgPath, _ := pflag.CommandLine.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("storefront-graphql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/storefront-graphql/")
		v.AddConfigPath("$HOME/.storefront-graphql")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case
	// Env vars: SFGQL_MONOLITH_GRAPHQL_URL
	v.SetEnvPrefix("SFGQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	// --- Flags binding (highest normal priority) ---
	bindChangedFlagsToViper(v)
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	// --- API keys from file (explicit override) ---
	for _, pair := range [][2]string{
		{"remote.api_key", "remote.api_key_file"},
		{"premium_search.api_key", "premium_search.api_key_file"},
		{"server.admin_auth_token", "server.admin_auth_token_file"},
	} {
		keyField, fileField := pair[0], pair[1]
		if v.GetString(keyField) != "" || v.GetString(fileField) == "" {
			continue
		}
		secret, err := readSecretFile(v.GetString(fileField))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fileField, err)
		}
		if secret == "" {
			return nil, fmt.Errorf("%s %q is empty", fileField, v.GetString(fileField))
		}
		v.Set(keyField, secret)
	}

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindLegacyEnv binds the prefixed env var and any legacy names for a key.
// BindEnv disables the automatic prefix for the key, so it is listed explicitly.
func bindLegacyEnv(v *viper.Viper) error {
	for key, names := range legacyEnvNames {
		prefixed := "SFGQL_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}
	return nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(v *viper.Viper) {
	pflag.CommandLine.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := pflag.CommandLine.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := pflag.CommandLine.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := pflag.CommandLine.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := pflag.CommandLine.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := pflag.CommandLine.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := pflag.CommandLine.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// defineFlags defines all command line flags using canonical snake_case keys.
func defineFlags() {
	defineFlagsOnce.Do(func() {
		// Server flags
		pflag.String("server.host", "", "Host for the GraphQL server to listen on")
		pflag.Int("server.port", 0, "Port for the GraphQL server to listen on")
		pflag.Int("server.graphql_max_depth", 0, "Maximum GraphQL query depth (0 disables the check)")
		pflag.Bool("server.graphiql_enabled", false, "Enable GraphiQL UI for /graphql (dev only)")
		pflag.Bool("server.rate_limit_enabled", false, "Enable global rate limiting for all HTTP endpoints")
		pflag.Float64("server.rate_limit_rps", 0, "Global rate limit requests per second")
		pflag.Int("server.rate_limit_burst", 0, "Global rate limit burst size")
		pflag.Bool("server.cors_enabled", false, "Enable CORS (Cross-Origin Resource Sharing)")
		pflag.StringSlice("server.cors_allowed_origins", nil, "Allowed CORS origins (comma-separated or repeated)")
		pflag.StringSlice("server.cors_allowed_methods", nil, "Allowed CORS methods (comma-separated or repeated)")
		pflag.StringSlice("server.cors_allowed_headers", nil, "Allowed CORS headers (comma-separated or repeated)")
		pflag.StringSlice("server.cors_expose_headers", nil, "CORS headers to expose to browser (comma-separated or repeated)")
		pflag.Bool("server.cors_allow_credentials", false, "Allow credentials in CORS requests")
		pflag.Int("server.cors_max_age", 0, "CORS preflight cache duration (seconds)")
		pflag.Duration("server.read_timeout", 0, "HTTP server read timeout")
		pflag.Duration("server.write_timeout", 0, "HTTP server write timeout")
		pflag.Duration("server.idle_timeout", 0, "HTTP server idle timeout")
		pflag.Duration("server.shutdown_timeout", 0, "HTTP server graceful shutdown timeout")
		pflag.Duration("server.health_check_timeout", 0, "Health check timeout")
		pflag.String("server.admin_auth_token", "", "Token required by the admin schema reload endpoint (empty disables it)")
		pflag.String("server.admin_auth_token_file", "", "Path to file containing the admin token (use @- for stdin)")
		pflag.String("server.admin_auth_header", "", "Header carrying the admin token")

		// Monolith flags
		pflag.String("monolith.graphql_url", "", "Absolute URL of the Magento core GraphQL endpoint")
		pflag.Duration("monolith.introspection_timeout", 0, "Total time allowed for monolith schema introspection retries")
		pflag.Duration("monolith.request_timeout", 0, "Timeout for a single delegated monolith request")
		pflag.Int("monolith.max_batch_size", 0, "Maximum keys per batched delegation request")

		// Storefront gRPC flags
		pflag.Bool("catalog.enabled", false, "Enable the Catalog Storefront integration")
		pflag.String("catalog.host", "", "Host of the Catalog Storefront gRPC API")
		pflag.Int("catalog.port", 0, "Port of the Catalog Storefront gRPC API")
		pflag.Bool("search.enabled", false, "Enable the Search Storefront integration")
		pflag.String("search.host", "", "Host of the Search Storefront gRPC API")
		pflag.Int("search.port", 0, "Port of the Search Storefront gRPC API")

		// Premium search flags
		pflag.Bool("premium_search.enabled", false, "Enable the Premium Search integration")
		pflag.String("premium_search.graphql_url", "", "Absolute URL of the Premium Search GraphQL endpoint")
		pflag.String("premium_search.api_key", "", "Key passed to Premium Search using the X-API-KEY header")
		pflag.String("premium_search.api_key_file", "", "Path to file containing the Premium Search API key (use @- for stdin)")

		// Remote extension flags
		pflag.Bool("remote.enabled", false, "Enable Adobe I/O Runtime remote extensions")
		pflag.String("remote.host", "", "Hostname of Adobe I/O Runtime")
		pflag.String("remote.namespace", "", "Adobe I/O namespace hosting extension packages")
		pflag.String("remote.api_key", "", "API key used to authenticate with Adobe I/O Runtime")
		pflag.String("remote.api_key_file", "", "Path to file containing the Adobe I/O API key (use @- for stdin)")
		pflag.StringSlice("remote.packages", nil, "Adobe I/O GraphQL extension packages to enable")
		pflag.Duration("remote.call_timeout", 0, "Timeout for a single remote function invocation")

		// Extension flags
		pflag.StringSlice("extensions.roots", nil, "Directories scanned for local extension packages")

		// Observability flags
		pflag.String("observability.service_name", "", "Service name for observability")
		pflag.String("observability.service_version", "", "Service version for observability")
		pflag.String("observability.environment", "", "Environment name (dev, staging, prod)")
		pflag.Bool("observability.metrics_enabled", false, "Enable metrics collection")
		pflag.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
		pflag.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")

		// Logging flags (under observability)
		pflag.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
		pflag.String("observability.logging.format", "", "Log format (json, text)")
		pflag.String("observability.logging.file", "", "Additional file to write logs to")
		pflag.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")

		// Global OTLP flags
		pflag.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals (e.g., localhost:4317)")
		pflag.String("observability.otlp.protocol", "", "OTLP protocol for all signals (grpc, http/protobuf)")
		pflag.Bool("observability.otlp.insecure", false, "Use insecure connection (no TLS)")
		pflag.String("observability.otlp.tls_cert_file", "", "Path to TLS certificate file for server verification")
		pflag.String("observability.otlp.tls_client_cert_file", "", "Path to client certificate file for mTLS")
		pflag.String("observability.otlp.tls_client_key_file", "", "Path to client key file for mTLS")
		pflag.Duration("observability.otlp.timeout", 0, "OTLP export timeout")
		pflag.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")
		pflag.Bool("observability.otlp.retry_enabled", false, "Enable retry on transient errors")
		pflag.Int("observability.otlp.retry_max_attempts", 0, "Maximum retry attempts")

		// Signal-specific OTLP flags
		pflag.String("observability.traces.endpoint", "", "OTLP endpoint for traces only")
		pflag.String("observability.traces.protocol", "", "OTLP protocol for traces (grpc, http/protobuf)")
		pflag.Bool("observability.traces.insecure", false, "Use insecure connection for traces")
		pflag.Duration("observability.traces.timeout", 0, "Timeout for trace exports")
		pflag.String("observability.logs.endpoint", "", "OTLP endpoint for logs only")
		pflag.String("observability.logs.protocol", "", "OTLP protocol for logs (grpc, http/protobuf)")
		pflag.Bool("observability.logs.insecure", false, "Use insecure connection for logs")
		pflag.Duration("observability.logs.timeout", 0, "Timeout for log exports")
		pflag.String("observability.metrics.endpoint", "", "OTLP endpoint for metrics only")
		pflag.Bool("observability.metrics.insecure", false, "Use insecure connection for metrics")
		pflag.Duration("observability.metrics.timeout", 0, "Timeout for metric exports")

		// Config file flag
		pflag.StringP("config", "c", "", "Config file path")
	})
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8008)
	v.SetDefault("server.graphql_max_depth", 15)
	v.SetDefault("server.graphiql_enabled", false)
	v.SetDefault("server.rate_limit_enabled", false)
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("server.cors_enabled", false)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Content-Type", "Authorization", "Content-Currency", "Store"})
	v.SetDefault("server.cors_expose_headers", []string{})
	v.SetDefault("server.cors_allow_credentials", false)
	v.SetDefault("server.cors_max_age", 86400)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.health_check_timeout", 2*time.Second)
	v.SetDefault("server.admin_auth_token", "")
	v.SetDefault("server.admin_auth_token_file", "")
	v.SetDefault("server.admin_auth_header", "X-Admin-Token")

	// Monolith defaults
	v.SetDefault("monolith.graphql_url", "https://store.test/graphql")
	v.SetDefault("monolith.introspection_timeout", 60*time.Second)
	v.SetDefault("monolith.request_timeout", 20*time.Second)
	v.SetDefault("monolith.max_batch_size", 100)

	// Storefront gRPC defaults
	v.SetDefault("catalog.enabled", false)
	v.SetDefault("catalog.host", "catalog-storefront.test")
	v.SetDefault("catalog.port", 9001)
	v.SetDefault("catalog.insecure", true)
	v.SetDefault("catalog.request_timeout", 10*time.Second)
	v.SetDefault("search.enabled", false)
	v.SetDefault("search.host", "search-storefront.test")
	v.SetDefault("search.port", 9002)
	v.SetDefault("search.insecure", true)
	v.SetDefault("search.request_timeout", 10*time.Second)

	// Premium search defaults
	v.SetDefault("premium_search.enabled", false)
	v.SetDefault("premium_search.graphql_url", "https://premium-search.test/graphql")
	v.SetDefault("premium_search.api_key", "")
	v.SetDefault("premium_search.api_key_file", "")
	v.SetDefault("premium_search.request_timeout", 10*time.Second)

	// Remote extension defaults
	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.host", "adobeioruntime.net")
	v.SetDefault("remote.namespace", "ecp-ior")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.api_key_file", "")
	v.SetDefault("remote.packages", []string{})
	v.SetDefault("remote.call_timeout", 10*time.Second)

	// Extension defaults
	v.SetDefault("extensions.roots", []string{})
	v.SetDefault("extension_config", map[string]string{})

	// Observability defaults
	v.SetDefault("observability.service_name", "storefront-graphql")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)

	// Logging defaults (under observability)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.file", "")
	v.SetDefault("observability.logging.exports_enabled", false)

	// Global OTLP defaults
	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func validateSingleStdinFileSource(v *viper.Viper) error {
	stdinBackedKeys := []string{
		"remote.api_key_file",
		"premium_search.api_key_file",
		"server.admin_auth_token_file",
	}

	var configured []string
	for _, key := range stdinBackedKeys {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}

	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
