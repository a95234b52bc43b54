package stitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultExecutorTimeout = 30 * time.Second
	maxResponseBytes       = 32 << 20
)

// HeaderFunc sets outgoing headers for a delegated request.
type HeaderFunc func(ctx context.Context, header http.Header)

// HTTPExecutor posts operations to a GraphQL endpoint.
type HTTPExecutor struct {
	url     string
	client  *http.Client
	headers []HeaderFunc
}

// HTTPOption configures an HTTPExecutor.
type HTTPOption func(*HTTPExecutor)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPExecutor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithTimeout bounds each request. Zero keeps the default.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(e *HTTPExecutor) {
		if timeout > 0 {
			e.client.Timeout = timeout
		}
	}
}

// WithHeaders adds a hook that sets headers on every request.
func WithHeaders(fn HeaderFunc) HTTPOption {
	return func(e *HTTPExecutor) {
		if fn != nil {
			e.headers = append(e.headers, fn)
		}
	}
}

// NewHTTPExecutor returns an executor for the GraphQL endpoint at url.
func NewHTTPExecutor(url string, opts ...HTTPOption) *HTTPExecutor {
	e := &HTTPExecutor{
		url: url,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultExecutorTimeout,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// URL returns the endpoint the executor posts to.
func (e *HTTPExecutor) URL() string {
	return e.url
}

type requestBody struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// Execute implements Executor.
func (e *HTTPExecutor) Execute(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(requestBody(req))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for _, fn := range e.headers {
		fn(ctx, httpReq.Header)
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", e.url, err)
	}
	var resp Response
	decodeErr := json.Unmarshal(raw, &resp)
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		if decodeErr == nil && len(resp.Errors) > 0 {
			return &resp, nil
		}
		return nil, fmt.Errorf("unexpected status %d from %s: %s", httpResp.StatusCode, e.url, snippet(raw))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", e.url, decodeErr)
	}
	return &resp, nil
}

func snippet(raw []byte) string {
	const limit = 200
	s := string(bytes.TrimSpace(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
