package main

import (
	"bytes"
	"log/slog"
	"testing"

	"storefront-graphql/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportValidation(t *testing.T) {
	t.Run("warnings only", func(t *testing.T) {
		var buf bytes.Buffer
		result := &config.ValidationResult{Warnings: []config.ValidationWarning{{
			Field:   "remote.packages",
			Message: "packages are configured but remote extensions are disabled",
		}}}

		require.NoError(t, reportValidation(result, slog.New(slog.NewTextHandler(&buf, nil))))
		assert.Contains(t, buf.String(), "configuration warning")
		assert.Contains(t, buf.String(), "remote.packages")
	})

	t.Run("errors fail", func(t *testing.T) {
		var buf bytes.Buffer
		result := &config.ValidationResult{Errors: []config.ValidationError{{
			Field:   "monolith.graphql_url",
			Message: "graphql_url is required",
		}}}

		err := reportValidation(result, slog.New(slog.NewTextHandler(&buf, nil)))
		require.Error(t, err)
		assert.Contains(t, buf.String(), "configuration error")
		assert.Contains(t, buf.String(), "monolith.graphql_url")
	})
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "storefront-graphql dev (none)", versionString())
}
