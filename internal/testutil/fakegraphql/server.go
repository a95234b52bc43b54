// Package fakegraphql serves a GraphQL schema built from SDL over HTTP for
// tests of the backend subschemas.
package fakegraphql

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// Request is one request received by the server.
type Request struct {
	Header        http.Header
	Query         string
	Variables     map[string]interface{}
	OperationName string
}

// Server is a GraphQL endpoint backed by an in-process schema.
type Server struct {
	*httptest.Server
	schema *stitch.Schema

	mu       sync.Mutex
	requests []Request
	status   int
}

// NewServer builds an executable schema from sdl and resolvers and starts
// serving it. The server is closed when the test ends.
func NewServer(t testing.TB, sdl string, resolvers stitch.ResolverMap) *Server {
	t.Helper()
	doc, err := stitch.ParseSDL("fake", sdl)
	if err != nil {
		t.Fatalf("parsing fake schema: %v", err)
	}
	schema, err := stitch.Stitch(stitch.Config{
		TypeDefs:  []*ast.Document{doc},
		Resolvers: []stitch.ResolverMap{resolvers},
	})
	if err != nil {
		t.Fatalf("building fake schema: %v", err)
	}
	s := &Server{schema: schema}
	s.Server = httptest.NewServer(s)
	t.Cleanup(s.Close)
	return s
}

// FailWith makes every following request answer with status.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query         string                 `json:"query"`
		Variables     map[string]interface{} `json:"variables"`
		OperationName string                 `json:"operationName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Header:        r.Header.Clone(),
		Query:         body.Query,
		Variables:     body.Variables,
		OperationName: body.OperationName,
	})
	status := s.status
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	result := s.schema.Do(r.Context(), graphql.Params{
		RequestString:  body.Query,
		VariableValues: body.Variables,
		OperationName:  body.OperationName,
	})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
