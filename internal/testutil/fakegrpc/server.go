// Package fakegrpc runs JSON-coded gRPC handlers over an in-memory
// listener for tests of the gRPC backends.
package fakegrpc

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"

	"storefront-graphql/internal/grpcjson"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// Handler answers one unary call. req holds the raw JSON request.
type Handler func(ctx context.Context, req json.RawMessage) (any, error)

// Call is one request received by the server.
type Call struct {
	Method  string
	Request json.RawMessage
}

// Server dispatches unary calls by full method name.
type Server struct {
	lis      *bufconn.Listener
	srv      *grpc.Server
	handlers map[string]Handler

	mu    sync.Mutex
	calls []Call
}

// NewServer starts serving handlers, keyed by "/package.Service/Method".
// The server stops when the test ends.
func NewServer(t testing.TB, handlers map[string]Handler) *Server {
	t.Helper()
	s := &Server{
		lis:      bufconn.Listen(1 << 20),
		handlers: handlers,
	}
	s.srv = grpc.NewServer(grpc.UnknownServiceHandler(s.handle))
	go func() { _ = s.srv.Serve(s.lis) }()
	t.Cleanup(s.srv.Stop)
	return s
}

// Dial returns a JSON client connection to the server.
func (s *Server) Dial(t testing.TB) *grpc.ClientConn {
	t.Helper()
	conn, err := grpcjson.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return s.lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial fake grpc server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Calls returns the calls received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Server) handle(_ any, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method in stream")
	}
	var req json.RawMessage
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Request: req})
	s.mu.Unlock()

	h := s.handlers[method]
	if h == nil {
		return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}
	resp, err := h(stream.Context(), req)
	if err != nil {
		return err
	}
	return stream.SendMsg(resp)
}
