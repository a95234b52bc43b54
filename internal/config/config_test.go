package config

import (
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: Load() relies on global state (pflag.CommandLine), so these tests
// exercise defaults and decoding through a local viper instance instead.

func unmarshalForTest(t *testing.T, v *viper.Viper) (*Config, error) {
	t.Helper()
	var cfg Config
	err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	)
	return &cfg, err
}

func TestDefaults_ProduceValidConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := unmarshalForTest(t, v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8008, cfg.Server.Port)
	assert.Equal(t, "https://store.test/graphql", cfg.Monolith.GraphQLURL)
	assert.Equal(t, 9001, cfg.Catalog.Port)
	assert.Equal(t, "adobeioruntime.net", cfg.Remote.Host)
	assert.Equal(t, "ecp-ior", cfg.Remote.Namespace)
	assert.Equal(t, 10*time.Second, cfg.Remote.CallTimeout)
	assert.Equal(t, "storefront-graphql", cfg.Observability.ServiceName)

	result := cfg.Validate()
	assert.False(t, result.HasErrors(), result.Error())
}

func TestLegacyEnvNames_BindToCanonicalKeys(t *testing.T) {
	t.Setenv("MONOLITH_GRAPHQL_URL", "https://magento.example.com/graphql")
	t.Setenv("IO_PACKAGES", "store-locator, reviews")
	t.Setenv("ENABLE_CATALOG_STOREFRONT", "true")
	t.Setenv("PORT", "9090")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SFGQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	require.NoError(t, bindLegacyEnv(v))

	cfg, err := unmarshalForTest(t, v)
	require.NoError(t, err)

	assert.Equal(t, "https://magento.example.com/graphql", cfg.Monolith.GraphQLURL)
	assert.Equal(t, []string{"store-locator", "reviews"}, cfg.Remote.Packages)
	assert.True(t, cfg.Catalog.Enabled)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestPrefixedEnv_WinsOverLegacyName(t *testing.T) {
	t.Setenv("MONOLITH_GRAPHQL_URL", "https://legacy.example.com/graphql")
	t.Setenv("SFGQL_MONOLITH_GRAPHQL_URL", "https://prefixed.example.com/graphql")

	v := viper.New()
	setDefaults(v)
	require.NoError(t, bindLegacyEnv(v))

	assert.Equal(t, "https://prefixed.example.com/graphql", v.GetString("monolith.graphql_url"))
}

func TestUnmarshalExact_RejectsUnknownKeys(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
monolith:
  graphql_url: https://store.test/graphql
  dsn: leftover
`)))

	_, err := unmarshalForTest(t, v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestConfig_Validate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			Server: ServerConfig{
				Host: "0.0.0.0",
				Port: 8008,
			},
			Monolith: MonolithConfig{
				GraphQLURL:           "https://store.test/graphql",
				IntrospectionTimeout: time.Minute,
				MaxBatchSize:         100,
			},
			Remote: RemoteConfig{
				Host:        "adobeioruntime.net",
				Namespace:   "ecp-ior",
				CallTimeout: 10 * time.Second,
			},
			Observability: ObservabilityConfig{
				TraceSampleRatio: 1,
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
				},
				OTLP: OTLPConfig{
					Protocol:    "grpc",
					Compression: "gzip",
				},
			},
		}
	}

	t.Run("valid config passes validation", func(t *testing.T) {
		result := validConfig().Validate()
		assert.False(t, result.HasErrors())
		assert.Empty(t, result.Errors)
	})

	t.Run("invalid server port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = 0
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "server.port")
	})

	t.Run("relative monolith url", func(t *testing.T) {
		cfg := validConfig()
		cfg.Monolith.GraphQLURL = "/graphql"
		result := cfg.Validate()
		require.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "monolith.graphql_url")
		assert.Contains(t, result.Error(), "MONOLITH_GRAPHQL_URL")
	})

	t.Run("zero batch size", func(t *testing.T) {
		cfg := validConfig()
		cfg.Monolith.MaxBatchSize = 0
		result := cfg.Validate()
		assert.Contains(t, result.Error(), "monolith.max_batch_size")
	})

	t.Run("enabled catalog requires host", func(t *testing.T) {
		cfg := validConfig()
		cfg.Catalog = GRPCServiceConfig{Enabled: true, Port: 9001}
		result := cfg.Validate()
		assert.Contains(t, result.Error(), "catalog.host")
	})

	t.Run("disabled catalog skips checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Catalog = GRPCServiceConfig{Enabled: false}
		assert.False(t, cfg.Validate().HasErrors())
	})

	t.Run("remote package with slash", func(t *testing.T) {
		cfg := validConfig()
		cfg.Remote.Enabled = true
		cfg.Remote.Packages = []string{"ns/pkg"}
		result := cfg.Validate()
		assert.Contains(t, result.Error(), "remote.packages")
	})

	t.Run("remote packages without enable warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Remote.Packages = []string{"store-locator"}
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "remote.packages", result.Warnings[0].Field)
	})

	t.Run("premium search without key warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.PremiumSearch = PremiumSearchConfig{Enabled: true, GraphQLURL: "https://search.test/graphql"}
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		require.NotEmpty(t, result.Warnings)
		assert.Equal(t, "premium_search.api_key", result.Warnings[0].Field)
	})

	t.Run("empty extension root", func(t *testing.T) {
		cfg := validConfig()
		cfg.Extensions.Roots = []string{" "}
		assert.Contains(t, cfg.Validate().Error(), "extensions.roots")
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.Level = "trace"
		result := cfg.Validate()
		assert.Contains(t, result.Error(), "observability.logging.level")
	})

	t.Run("cors wildcard with credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{"*"}
		cfg.Server.CORSAllowCredentials = true
		result := cfg.Validate()
		assert.Contains(t, result.Error(), "wildcard origin")
	})

	t.Run("rate limit requires rps", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitEnabled = true
		cfg.Server.RateLimitBurst = 10
		result := cfg.Validate()
		assert.Contains(t, result.Error(), "server.rate_limit_rps")
	})
}

func TestMergeOTLPConfigs(t *testing.T) {
	base := OTLPConfig{
		Endpoint: "collector:4317",
		Protocol: "grpc",
		Headers:  map[string]string{"a": "1"},
		Timeout:  10 * time.Second,
	}
	override := OTLPConfig{
		Endpoint: "traces:4318",
		Protocol: "http/protobuf",
		Headers:  map[string]string{"b": "2"},
	}

	merged := mergeOTLPConfigs(base, override)
	assert.Equal(t, "traces:4318", merged.Endpoint)
	assert.Equal(t, "http/protobuf", merged.Protocol)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, merged.Headers)
	assert.Equal(t, 10*time.Second, merged.Timeout)
}

func TestAddressHelpers(t *testing.T) {
	assert.Equal(t, "catalog.test:9001", GRPCServiceConfig{Host: "catalog.test", Port: 9001}.Address())
	assert.Equal(t, "0.0.0.0:8008", ServerConfig{Host: "0.0.0.0", Port: 8008}.ListenAddress())
}

func TestAdminAuthToken_LegacyEnvAndWarning(t *testing.T) {
	t.Setenv("ADMIN_AUTH_TOKEN", "short")

	v := viper.New()
	setDefaults(v)
	require.NoError(t, bindLegacyEnv(v))

	cfg, err := unmarshalForTest(t, v)
	require.NoError(t, err)
	assert.Equal(t, "short", cfg.Server.AdminAuthToken)
	assert.Equal(t, "X-Admin-Token", cfg.Server.AdminAuthHeader)

	result := cfg.Validate()
	assert.False(t, result.HasErrors(), result.Error())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "server.admin_auth_token", result.Warnings[0].Field)
}
