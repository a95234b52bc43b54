package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminHandler(t *testing.T, cfg AdminTokenAuthConfig, next http.HandlerFunc) http.Handler {
	t.Helper()
	mw, err := AdminTokenAuthMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func reloadRequest(header, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/reload-schema", nil)
	if token != "" {
		req.Header.Set(header, token)
	}
	return req
}

func TestAdminTokenAuthMiddleware_RejectsBadTokens(t *testing.T) {
	for name, token := range map[string]string{"missing": "", "wrong": "wrong-token"} {
		t.Run(name, func(t *testing.T) {
			handler := adminHandler(t, AdminTokenAuthConfig{Token: "secret-token"}, func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next must not run")
			})

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, reloadRequest(defaultAdminTokenHeader, token))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, `{"error":"unauthorized"}`, rec.Body.String())
		})
	}
}

func TestAdminTokenAuthMiddleware_SetsAuthContextOnSuccess(t *testing.T) {
	handler := adminHandler(t, AdminTokenAuthConfig{Token: " secret-token "}, func(w http.ResponseWriter, r *http.Request) {
		auth, ok := AuthFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, AuthContext{Subject: "admin", Method: "admin_token"}, auth)
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reloadRequest(defaultAdminTokenHeader, "secret-token"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminTokenAuthMiddleware_CustomHeader(t *testing.T) {
	handler := adminHandler(t, AdminTokenAuthConfig{Token: "secret-token", HeaderName: "X-Gateway-Admin"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reloadRequest(defaultAdminTokenHeader, "secret-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, reloadRequest("X-Gateway-Admin", "secret-token"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminTokenAuthMiddleware_RequiresTokenConfig(t *testing.T) {
	_, err := AdminTokenAuthMiddleware(AdminTokenAuthConfig{Token: "  "})
	assert.Error(t, err)
}

func TestAuthFromContext_Missing(t *testing.T) {
	_, ok := AuthFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
