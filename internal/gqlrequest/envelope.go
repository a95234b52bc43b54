package gqlrequest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// maxEnvelopeBytes bounds how much of a POST body is buffered for analysis.
const maxEnvelopeBytes = 4 << 20

// Envelope is the normalized GraphQL payload of an HTTP request.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	VariablesRaw  json.RawMessage

	DocumentSizeBytes int
}

// Variables decodes the raw variables object. A missing payload yields nil.
func (e Envelope) Variables() (map[string]interface{}, error) {
	if len(e.VariablesRaw) == 0 {
		return nil, nil
	}
	var vars map[string]interface{}
	if err := json.Unmarshal(e.VariablesRaw, &vars); err != nil {
		return nil, fmt.Errorf("variables must be a JSON object: %w", err)
	}
	return vars, nil
}

// DecodeEnvelope extracts the GraphQL payload from r. POST bodies are restored
// afterwards so the GraphQL handler can read them again.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}

	env := Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}

	switch r.Method {
	case http.MethodGet:
		values := r.URL.Query()
		env.Query = values.Get("query")
		env.OperationName = values.Get("operationName")
		if raw := strings.TrimSpace(values.Get("variables")); raw != "" && raw != "null" {
			env.VariablesRaw = json.RawMessage(raw)
		}
		env.DocumentSizeBytes = len(env.Query)
		return env, nil
	case http.MethodPost:
	default:
		return env, nil
	}
	if r.Body == nil {
		return env, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes+1))
	if err != nil {
		return env, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > maxEnvelopeBytes {
		return env, fmt.Errorf("request body exceeds %d bytes", maxEnvelopeBytes)
	}

	mediaType, _, parseErr := mime.ParseMediaType(env.ContentType)
	if parseErr != nil {
		mediaType = strings.TrimSpace(env.ContentType)
	}

	if mediaType == "application/graphql" {
		env.Query = string(body)
		env.DocumentSizeBytes = len(env.Query)
		return env, nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 {
		var payload struct {
			Query         string          `json:"query"`
			OperationName string          `json:"operationName"`
			Variables     json.RawMessage `json:"variables"`
		}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return env, err
		}
		env.Query = payload.Query
		env.OperationName = payload.OperationName
		if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
			env.VariablesRaw = append(json.RawMessage(nil), vars...)
		}
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}
