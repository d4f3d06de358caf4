package solverrpc

import (
	"context"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
)

// #region service
// SolverServer is the server-side contract of the solver service.
type SolverServer interface {
	Simulate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: simulateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "optinet/hydraulic/v1/solver.proto",
}

func simulateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SolverServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: simulateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SolverServer).Simulate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service

// #region register
// Register exposes solver on srv.
func Register(srv *grpc.Server, solver hydraulic.Solver) {
	srv.RegisterService(&serviceDesc, &server{solver: solver})
}

// #endregion register

// #region server
type server struct {
	solver hydraulic.Solver
}

// Simulate decodes a request, runs the wrapped solver and encodes the result.
// Non-convergence is a normal response; other solver errors become Internal.
func (s *server) Simulate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := DecodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.solver.Simulate(ctx, req)
	switch {
	case hydraulic.IsNonConvergence(err):
		log.Printf("[RPC] %s: no convergence: %v", req.Network, err)
		return EncodeResult(hydraulic.Result{}, false, err.Error())
	case err != nil:
		return nil, status.Errorf(codes.Internal, "simulate: %v", err)
	}
	out, err := EncodeResult(res, true, "")
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// #endregion server
