// Package remote loads GraphQL extensions served by Adobe I/O Runtime
// (OpenWhisk) actions. Each package exposes a "graphql" action returning
// its type definitions. Fields annotated with @function resolve by
// invoking the named action.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-graphql/internal/observability"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultCallTimeout bounds a single action invocation.
	DefaultCallTimeout = 10 * time.Second
	maxPayloadBytes    = 8 << 20
)

// Invoker calls a remote action with JSON parameters.
type Invoker interface {
	Invoke(ctx context.Context, action string, params map[string]any) (json.RawMessage, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, action string, params map[string]any) (json.RawMessage, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, action string, params map[string]any) (json.RawMessage, error) {
	return f(ctx, action, params)
}

// OpenWhiskConfig configures an OpenWhiskClient.
type OpenWhiskConfig struct {
	// Host is the API host. A bare host name is reached over https.
	Host      string
	Namespace string
	// APIKey in uuid:key form is sent as basic auth, anything else as X-Api-Key.
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenWhiskClient invokes web actions over the OpenWhisk HTTP API.
type OpenWhiskClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewOpenWhiskClient returns a client for cfg.
func NewOpenWhiskClient(cfg OpenWhiskConfig) *OpenWhiskClient {
	host := strings.TrimRight(cfg.Host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &OpenWhiskClient{
		baseURL: fmt.Sprintf("%s/api/v1/web/%s", host, strings.Trim(cfg.Namespace, "/")),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		client:  client,
	}
}

// ActionURL returns the web action URL for action.
func (c *OpenWhiskClient) ActionURL(action string) string {
	return c.baseURL + "/" + strings.TrimLeft(action, "/")
}

// Invoke implements Invoker.
func (c *OpenWhiskClient) Invoke(ctx context.Context, action string, params map[string]any) (payload json.RawMessage, err error) {
	defer func() {
		observability.GraphQLMetricsFromContext(ctx).RecordRemoteInvocation(ctx, packageOf(action), err)
	}()

	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters for action %q: %w", action, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ActionURL(action), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoking action %q: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response of action %q: %w", action, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("invoking action %q: unexpected status %d: %s", action, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("action %q returned invalid JSON", action)
	}
	return raw, nil
}

func (c *OpenWhiskClient) authorize(h http.Header) {
	if c.apiKey == "" {
		return
	}
	if strings.Contains(c.apiKey, ":") {
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.apiKey)))
		return
	}
	h.Set("X-Api-Key", c.apiKey)
}

func packageOf(action string) string {
	if i := strings.Index(action, "/"); i >= 0 {
		return action[:i]
	}
	return action
}
