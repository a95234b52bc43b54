// Package backend holds what the backend subschemas share.
package backend

import (
	"context"
	"errors"
	"time"

	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/stitch"

	"github.com/cenkalti/backoff/v5"
	"github.com/graphql-go/graphql/language/ast"
)

// DefaultIntrospectionTimeout bounds all introspection attempts together.
const DefaultIntrospectionTimeout = time.Minute

// Introspect fetches the schema behind exec, retrying with exponential
// backoff until timeout has elapsed. Errors reported by the service in a
// GraphQL response are not retried.
func Introspect(ctx context.Context, exec stitch.Executor, timeout time.Duration, logger *logging.Logger) (*ast.Document, error) {
	if timeout <= 0 {
		timeout = DefaultIntrospectionTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	return backoff.Retry(ctx, func() (*ast.Document, error) {
		doc, err := stitch.Introspect(ctx, exec)
		if err != nil {
			var remote *stitch.RemoteError
			if errors.As(err, &remote) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return doc, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("introspection failed, retrying",
				"error", err.Error(),
				"retry_in", next.String(),
			)
		}),
	)
}
