package remote

import (
	"context"
	"time"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/extension"
	"storefront-graphql/internal/logging"
)

// ExtensionName is the package name of the built-in remote extension.
const ExtensionName = "magento-graphql-adobe-io"

// ConfigDefs are the keys the remote extension reads.
var ConfigDefs = extension.ConfigDefs{
	"ADOBE_IO_HOST": {
		Docs:    "Hostname or IP of Adobe I/O",
		Default: "adobeioruntime.net",
	},
	"ADOBE_IO_NAMESPACE": {
		Docs:    "Namespace to query for Adobe I/O extension packages",
		Default: "ecp-ior",
	},
	"IO_API_KEY": {
		Docs: "API Key used to authenticate with Adobe I/O Runtime",
	},
	"IO_PACKAGES": {
		Docs: "A comma-delimited list of Adobe I/O GraphQL Extension packages to enable",
	},
}

// ExtensionOptions tunes the built-in extension.
type ExtensionOptions struct {
	CallTimeout time.Duration
	Logger      *logging.Logger
	// NewInvoker replaces the OpenWhisk client, mainly for tests.
	NewInvoker func(OpenWhiskConfig) Invoker
}

// NewExtension returns the registration of the built-in remote extension.
// Its setup collects every configured package and contributes them as one
// local subschema.
func NewExtension(opts ExtensionOptions) *extension.Registration {
	return extension.New(ConfigDefs, func(ctx context.Context, cfg *config.Reader, api *extension.Builder) error {
		owCfg, packages, err := readConfig(cfg)
		if err != nil {
			return err
		}
		owCfg.Timeout = opts.CallTimeout

		var invoker Invoker
		if opts.NewInvoker != nil {
			invoker = opts.NewInvoker(owCfg)
		} else {
			invoker = NewOpenWhiskClient(owCfg)
		}

		descs, err := Collect(ctx, invoker, packages)
		if err != nil {
			return err
		}
		subschema, err := BuildSubschema(descs, invoker)
		if err != nil {
			return err
		}

		logger := opts.Logger
		if logger == nil {
			logger = logging.Nop()
		}
		logger.Info("remote packages loaded",
			"count", len(descs),
			"packages", packages,
			"namespace", owCfg.Namespace,
		)
		api.AddSchema(subschema)
		return nil
	})
}

func readConfig(cfg *config.Reader) (OpenWhiskConfig, []string, error) {
	var out OpenWhiskConfig
	for _, s := range []struct {
		key string
		dst *string
	}{
		{"ADOBE_IO_HOST", &out.Host},
		{"ADOBE_IO_NAMESPACE", &out.Namespace},
		{"IO_API_KEY", &out.APIKey},
	} {
		v, err := cfg.Get(s.key)
		if err != nil {
			return out, nil, err
		}
		if *s.dst, err = v.AsString(); err != nil {
			return out, nil, err
		}
	}
	v, err := cfg.Get("IO_PACKAGES")
	if err != nil {
		return out, nil, err
	}
	packages, err := v.AsStringArray()
	if err != nil {
		return out, nil, err
	}
	return out, packages, nil
}
