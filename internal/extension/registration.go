// Package extension discovers, orders and sets up local GraphQL extensions.
//
// An extension is a directory carrying a manifest (extension.yaml or
// package.json) whose name follows the magento-graphql- naming convention.
// Its code is either compiled into the binary and registered with Register,
// or built as a Go plugin that exports a *Registration named Extension.
package extension

import (
	"context"

	"storefront-graphql/internal/config"
)

// ConfigDefs declares the configuration keys an extension reads.
type ConfigDefs = config.Definitions

// SetupFunc contributes an extension's types, resolvers, subschemas and
// context function through api. It runs once at startup.
type SetupFunc func(ctx context.Context, cfg *config.Reader, api *Builder) error

// Registration is the static contract an extension exports.
type Registration struct {
	Config ConfigDefs
	Setup  SetupFunc
}

// New returns a registration for the given config declarations and setup function.
func New(defs ConfigDefs, setup SetupFunc) *Registration {
	if defs == nil {
		defs = ConfigDefs{}
	}
	return &Registration{Config: defs, Setup: setup}
}
