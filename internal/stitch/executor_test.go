package stitch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExecutor_PostsOperation(t *testing.T) {
	var got requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "default", r.Header.Get("Store"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"storeConfig":{"code":"default"}},"errors":[{"message":"partial","path":["storeConfig","name"]}]}`))
	}))
	defer server.Close()

	exec := NewHTTPExecutor(server.URL, WithHeaders(func(_ context.Context, h http.Header) {
		h.Set("Store", "default")
	}))
	resp, err := exec.Execute(context.Background(), Request{
		Query:         "query Config { storeConfig { code } }",
		Variables:     map[string]interface{}{"a": 1},
		OperationName: "Config",
	})
	require.NoError(t, err)

	assert.Equal(t, "query Config { storeConfig { code } }", got.Query)
	assert.Equal(t, "Config", got.OperationName)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, got.Variables)
	assert.Equal(t, map[string]interface{}{"code": "default"}, resp.Data["storeConfig"])
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, []interface{}{"storeConfig", "name"}, resp.Errors[0].Path)
	assert.Equal(t, server.URL, exec.URL())
}

func TestHTTPExecutor_StatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/graphql-errors" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":[{"message":"Syntax Error"}]}`))
			return
		}
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPExecutor(server.URL).Execute(context.Background(), Request{Query: "{ a }"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
	assert.Contains(t, err.Error(), "upstream unavailable")

	resp, err := NewHTTPExecutor(server.URL+"/graphql-errors").Execute(context.Background(), Request{Query: "{"})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Syntax Error", resp.Errors[0].Message)
}

func TestHTTPExecutor_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	_, err := NewHTTPExecutor(server.URL).Execute(context.Background(), Request{Query: "{ a }"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}
