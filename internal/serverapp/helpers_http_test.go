package serverapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront-graphql/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(original)
	})
	return recorder
}

func spanNames(recorder *tracetest.SpanRecorder) []string {
	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	return names
}

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestWrapHTTPHandler_SpanNamesFollowGatewayRoutes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{method: http.MethodPost, path: "/graphql", want: "POST /graphql"},
		{method: http.MethodPost, path: "/admin/reload-schema", want: "POST /admin/reload-schema"},
		{method: http.MethodGet, path: "/health", want: "GET /health"},
		{method: http.MethodGet, path: "/products/24-MB01", want: "GET /*"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			recorder := recordSpans(t)
			cfg := &config.Config{Observability: config.ObservabilityConfig{TracingEnabled: true}}
			handler := wrapHTTPHandler(cfg, testLogger(), noContent)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}")))
			require.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, []string{tt.want}, spanNames(recorder))
		})
	}
}

func TestWrapHTTPHandler_NoSpansWithoutTelemetry(t *testing.T) {
	recorder := recordSpans(t)
	handler := wrapHTTPHandler(&config.Config{}, testLogger(), noContent)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, recorder.Ended())
}

func TestWrapHTTPHandler_RateLimitRejectsBeforeTracing(t *testing.T) {
	recorder := recordSpans(t)
	cfg := &config.Config{
		Server: config.ServerConfig{
			RateLimitEnabled: true,
			RateLimitRPS:     0.001,
			RateLimitBurst:   1,
		},
		Observability: config.ObservabilityConfig{TracingEnabled: true},
	}
	handler := wrapHTTPHandler(cfg, testLogger(), noContent)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/graphql", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/graphql", nil))

	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, []string{"POST /graphql"}, spanNames(recorder))
}

func TestHTTPRootSpanName(t *testing.T) {
	assert.Equal(t, "HTTP /*", httpRootSpanName(nil))

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	req.Method = ""
	assert.Equal(t, "HTTP /graphql", httpRootSpanName(req))
}
