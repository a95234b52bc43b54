package grpcjson

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type echoRequest struct {
	IDs   []string `json:"ids"`
	Store string   `json:"store"`
}

type echoResponse struct {
	Method string      `json:"method"`
	Echo   echoRequest `json:"echo"`
}

func TestCodec_RoundTrip(t *testing.T) {
	c := Codec{}
	assert.Equal(t, "json", c.Name())

	data, err := c.Marshal(echoRequest{IDs: []string{"1"}, Store: "default"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ids":["1"],"store":"default"}`, string(data))

	var out echoRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, []string{"1"}, out.IDs)

	raw := json.RawMessage(`{"a":1}`)
	data, err = c.Marshal(&raw)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestCodec_UnmarshalEmptyIsNoop(t *testing.T) {
	out := echoRequest{Store: "kept"}
	require.NoError(t, Codec{}.Unmarshal(nil, &out))
	assert.Equal(t, "kept", out.Store)
}

func TestCodec_UnmarshalErrorNamesTarget(t *testing.T) {
	var out echoRequest
	err := Codec{}.Unmarshal([]byte("{"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grpcjson.echoRequest")
}

func TestDial_InvokesOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		var req echoRequest
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}
		return stream.SendMsg(&echoResponse{Method: method, Echo: req})
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var resp echoResponse
	err = conn.Invoke(context.Background(), "/test.Echo/Echo", &echoRequest{IDs: []string{"a", "b"}, Store: "1"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "/test.Echo/Echo", resp.Method)
	assert.Equal(t, []string{"a", "b"}, resp.Echo.IDs)
	assert.Equal(t, "1", resp.Echo.Store)
}
