package solverrpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region helpers
func startServer(t *testing.T, solver hydraulic.Solver) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, solver)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleRequest() hydraulic.Request {
	return hydraulic.Request{
		Network: "tri",
		Nodes: []hydraulic.NodeSpec{
			{ID: "R", Kind: network.Reservoir, Elevation: 40},
			{ID: "A", Kind: network.Junction, Demand: 0.01},
			{ID: "B", Kind: network.Junction, Demand: 0.02},
		},
		Pipes: []hydraulic.PipeSpec{
			{ID: "p1", From: "R", To: "A", Length: 100, Roughness: 130, Diameter: 200},
			{ID: "p2", From: "A", To: "B", Length: 100, Roughness: 130, Diameter: 100},
			{ID: "p3", From: "B", To: "R", Length: 100, Roughness: 130, Diameter: 150},
		},
	}
}

// #endregion helpers

// #region encoding-tests
func TestRequestEncoding(t *testing.T) {
	req := sampleRequest()
	s, err := EncodeRequest(req)
	require.NoError(t, err)
	got, err := DecodeRequest(s)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestDecodeRequest_Malformed(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"network": "x", "nodes": []any{}})
	require.NoError(t, err)
	_, err = DecodeRequest(s)
	assert.ErrorContains(t, err, "missing pipes")

	s, err = structpb.NewStruct(map[string]any{"nodes": []any{"oops"}, "pipes": []any{}})
	require.NoError(t, err)
	_, err = DecodeRequest(s)
	assert.ErrorContains(t, err, "node 0")
}

func TestDecodeResult_NotConverged(t *testing.T) {
	s, err := EncodeResult(hydraulic.Result{}, false, "")
	require.NoError(t, err)
	_, err = DecodeResult(s)
	assert.True(t, hydraulic.IsNonConvergence(err))
}

// #endregion encoding-tests

// #region rpc-tests
func TestClient_MatchesLocalSolver(t *testing.T) {
	local := hydraulic.DefaultSurrogate()
	c := startServer(t, local)

	want, err := local.Simulate(context.Background(), sampleRequest())
	require.NoError(t, err)
	got, err := c.Simulate(context.Background(), sampleRequest())
	require.NoError(t, err)

	for id, p := range want.Pressures {
		assert.InDelta(t, p, got.Pressures[id], 1e-12, "node %s", id)
	}
	for id, v := range want.Velocities {
		assert.InDelta(t, v, got.Velocities[id], 1e-12, "pipe %s", id)
	}
}

func TestClient_RemoteNonConvergence(t *testing.T) {
	c := startServer(t, hydraulic.SolverFunc(func(context.Context, hydraulic.Request) (hydraulic.Result, error) {
		return hydraulic.Result{}, hydraulic.ErrNonConvergence
	}))
	_, err := c.Simulate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, hydraulic.IsNonConvergence(err))
}

func TestClient_RemoteFailureIsNotNonConvergence(t *testing.T) {
	c := startServer(t, hydraulic.SolverFunc(func(context.Context, hydraulic.Request) (hydraulic.Result, error) {
		return hydraulic.Result{}, errors.New("license server unreachable")
	}))
	_, err := c.Simulate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.False(t, hydraulic.IsNonConvergence(err))
	assert.ErrorContains(t, err, "license server unreachable")
}

func TestClient_DeadlineIsNonConvergence(t *testing.T) {
	release := make(chan struct{})
	c := startServer(t, hydraulic.SolverFunc(func(context.Context, hydraulic.Request) (hydraulic.Result, error) {
		<-release
		return hydraulic.Result{}, nil
	}))
	t.Cleanup(func() { close(release) })
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Simulate(ctx, sampleRequest())
	require.Error(t, err)
	assert.True(t, hydraulic.IsNonConvergence(err))
}

func TestClientWithConn_Close(t *testing.T) {
	c := NewClientWithConn(nil)
	assert.NoError(t, c.Close())
}

// #endregion rpc-tests
