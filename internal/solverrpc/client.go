package solverrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
)

// #region constants
const (
	serviceName    = "optinet.hydraulic.v1.Solver"
	simulateMethod = "/" + serviceName + "/Simulate"
)

// #endregion constants

// #region client-struct
// Client is a hydraulic.Solver backed by a remote gRPC solver service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to a solver service.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection.
// Used for testing without a real network listener.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region simulate
// Simulate sends one design to the remote solver. Remote non-convergence and
// deadline expiry map to hydraulic.ErrNonConvergence; any other RPC failure
// means the solver is unusable and is returned as-is.
func (c *Client) Simulate(ctx context.Context, req hydraulic.Request) (hydraulic.Result, error) {
	in, err := EncodeRequest(req)
	if err != nil {
		return hydraulic.Result{}, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, simulateMethod, in, out); err != nil {
		if status.Code(err) == codes.DeadlineExceeded {
			return hydraulic.Result{}, fmt.Errorf("%w: %v", hydraulic.ErrNonConvergence, err)
		}
		return hydraulic.Result{}, fmt.Errorf("simulate rpc: %w", err)
	}
	return DecodeResult(out)
}

// #endregion simulate
