package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"storefront-graphql/internal/backend/catalog"
	"storefront-graphql/internal/backend/catalogsearch"
	"storefront-graphql/internal/backend/monolith"
	"storefront-graphql/internal/backend/premiumsearch"
	"storefront-graphql/internal/config"
	"storefront-graphql/internal/extension"
	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/remote"
	"storefront-graphql/internal/stitch"

	"google.golang.org/grpc"
)

// BuildConfig defines inputs for gateway schema assembly.
type BuildConfig struct {
	Config *config.Config
	Logger *logging.Logger

	// HTTPClient is used by the monolith and premium search executors.
	HTTPClient *http.Client
	// CatalogConn and SearchConn carry the storefront gRPC services. A nil
	// connection leaves the matching subschema out.
	CatalogConn grpc.ClientConnInterface
	SearchConn  grpc.ClientConnInterface

	// ExtensionSource overrides the environment/config chain handed to
	// extension setups.
	ExtensionSource config.Source
	// DiscoverOptions are passed through to extension discovery.
	DiscoverOptions []extension.DiscoverOption
	// NewInvoker replaces the OpenWhisk client of the remote extension.
	NewInvoker func(remote.OpenWhiskConfig) remote.Invoker
}

// BuildResult contains the artifacts of one schema build.
type BuildResult struct {
	Schema         *stitch.Schema
	ContextBuilder *gqlcontext.Builder
	Extensions     []string
	RemotePackages int
}

// Build runs the full assembly pipeline: extension discovery and setup,
// backend introspection, stitching and context builder construction.
func Build(ctx context.Context, cfg BuildConfig) (*BuildResult, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("gateway builder requires a configuration")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	app := cfg.Config

	var builtins []extension.Candidate
	remotePackages := 0
	if app.Remote.Enabled {
		builtins = append(builtins, extension.Builtin(remote.ExtensionName, remote.NewExtension(remote.ExtensionOptions{
			CallTimeout: app.Remote.CallTimeout,
			Logger:      logger,
			NewInvoker:  cfg.NewInvoker,
		})))
		remotePackages = len(app.Remote.Packages)
	}

	source := cfg.ExtensionSource
	if source == nil {
		source = ExtensionSource(app)
	}
	contribution, err := extension.Load(ctx, extension.LoadConfig{
		Roots:    app.Extensions.Roots,
		Builtins: builtins,
		Source:   source,
		Logger:   logger,
		Options:  cfg.DiscoverOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load extensions: %w", err)
	}

	backends, err := backendSubschemas(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	schema, err := stitch.Stitch(stitch.Config{
		Subschemas:   append(backends, contribution.Schemas...),
		TypeDefs:     contribution.TypeDefs,
		Resolvers:    contribution.Resolvers,
		Logger:       logger,
		MaxBatchSize: app.Monolith.MaxBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stitch schema: %w", err)
	}

	return &BuildResult{
		Schema:         schema,
		ContextBuilder: gqlcontext.NewBuilder(extension.ContextExtensions(contribution.Extensions), schema.Executable()),
		Extensions:     contribution.Names,
		RemotePackages: remotePackages,
	}, nil
}

// backendSubschemas returns the backend sources in merge order: monolith,
// catalog, catalog search, then premium search.
func backendSubschemas(ctx context.Context, cfg BuildConfig, logger *logging.Logger) ([]*stitch.Subschema, error) {
	app := cfg.Config
	var out []*stitch.Subschema

	mono, err := monolith.NewSubschema(ctx, monolith.Config{
		URL:                  app.Monolith.GraphQLURL,
		IntrospectionTimeout: app.Monolith.IntrospectionTimeout,
		RequestTimeout:       app.Monolith.RequestTimeout,
		HTTPClient:           cfg.HTTPClient,
		Logger:               logger,
	})
	if err != nil {
		return nil, err
	}
	out = append(out, mono)

	if app.Catalog.Enabled && cfg.CatalogConn != nil {
		sub, err := catalog.NewSubschema(catalog.NewClient(cfg.CatalogConn, app.Catalog.RequestTimeout), logger)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}

	if app.Search.Enabled && cfg.SearchConn != nil {
		sub, err := catalogsearch.NewSubschema(catalogsearch.NewClient(cfg.SearchConn, app.Search.RequestTimeout), logger)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}

	if app.PremiumSearch.Enabled {
		sub, err := premiumsearch.NewSubschema(ctx, premiumsearch.Config{
			URL:                  app.PremiumSearch.GraphQLURL,
			APIKey:               app.PremiumSearch.APIKey,
			IntrospectionTimeout: app.Monolith.IntrospectionTimeout,
			RequestTimeout:       app.PremiumSearch.RequestTimeout,
			HTTPClient:           cfg.HTTPClient,
			Logger:               logger,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}

	return out, nil
}

// ExtensionSource returns the configuration source handed to extension
// setups. The environment wins over the extension_config section, which
// wins over the remote settings of the framework config.
func ExtensionSource(app *config.Config) config.Source {
	remoteValues := config.MapSource{}
	for key, value := range map[string]string{
		"ADOBE_IO_HOST":      app.Remote.Host,
		"ADOBE_IO_NAMESPACE": app.Remote.Namespace,
		"IO_API_KEY":         app.Remote.APIKey,
		"IO_PACKAGES":        strings.Join(app.Remote.Packages, ","),
	} {
		if value != "" {
			remoteValues[key] = value
		}
	}
	return config.ChainSource{
		config.EnvSource{},
		config.MapSource(app.ExtensionConfig),
		remoteValues,
	}
}
