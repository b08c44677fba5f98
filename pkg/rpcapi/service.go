package rpcapi

import (
	"context"
	"errors"

	"github.com/cuemby/compactord/pkg/compaction"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CoordinatorServer is the inbound RPC surface the coordinator serves to
// compactors and tablet servers. Implemented by
// pkg/coordinator.Coordinator.
type CoordinatorServer interface {
	GetCompactionJob(ctx context.Context, req *GetCompactionJobRequest) (*GetCompactionJobResponse, error)
	UpdateCompactionStatus(ctx context.Context, req *UpdateCompactionStatusRequest) (*UpdateCompactionStatusResponse, error)
	CompactionCompleted(ctx context.Context, req *CompactionCompletedRequest) (*CompactionCompletedResponse, error)
	CancelCompaction(ctx context.Context, req *CancelCompactionRequest) (*CancelCompactionResponse, error)
	GetCompactionStatus(ctx context.Context, req *GetCompactionStatusRequest) (*GetCompactionStatusResponse, error)
	IsCompactionCompleted(ctx context.Context, req *IsCompactionCompletedRequest) (*IsCompactionCompletedResponse, error)
}

const coordinatorServiceName = "compactord.Coordinator"

// toStatusErr maps the one typed domain error callers must distinguish
// (UnknownCompactionId) to a gRPC status; anything else passes
// through as Internal.
func toStatusErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, compaction.ErrUnknownCompactionID) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func handlerGetCompactionJob(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetCompactionJobRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(CoordinatorServer).GetCompactionJob(ctx, req)
		return resp, toStatusErr(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + coordinatorServiceName + "/GetCompactionJob"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(CoordinatorServer).GetCompactionJob(ctx, req.(*GetCompactionJobRequest))
		return resp, toStatusErr(err)
	}
	return interceptor(ctx, req, info, handler)
}

func handlerUpdateCompactionStatus(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(UpdateCompactionStatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(CoordinatorServer).UpdateCompactionStatus(ctx, req)
		return resp, toStatusErr(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + coordinatorServiceName + "/UpdateCompactionStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(CoordinatorServer).UpdateCompactionStatus(ctx, req.(*UpdateCompactionStatusRequest))
		return resp, toStatusErr(err)
	}
	return interceptor(ctx, req, info, handler)
}

func handlerCompactionCompleted(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(CompactionCompletedRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(CoordinatorServer).CompactionCompleted(ctx, req)
		return resp, toStatusErr(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + coordinatorServiceName + "/CompactionCompleted"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(CoordinatorServer).CompactionCompleted(ctx, req.(*CompactionCompletedRequest))
		return resp, toStatusErr(err)
	}
	return interceptor(ctx, req, info, handler)
}

func handlerCancelCompaction(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(CancelCompactionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(CoordinatorServer).CancelCompaction(ctx, req)
		return resp, toStatusErr(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + coordinatorServiceName + "/CancelCompaction"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(CoordinatorServer).CancelCompaction(ctx, req.(*CancelCompactionRequest))
		return resp, toStatusErr(err)
	}
	return interceptor(ctx, req, info, handler)
}

func handlerGetCompactionStatus(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetCompactionStatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(CoordinatorServer).GetCompactionStatus(ctx, req)
		return resp, toStatusErr(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + coordinatorServiceName + "/GetCompactionStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(CoordinatorServer).GetCompactionStatus(ctx, req.(*GetCompactionStatusRequest))
		return resp, toStatusErr(err)
	}
	return interceptor(ctx, req, info, handler)
}

func handlerIsCompactionCompleted(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(IsCompactionCompletedRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp, err := srv.(CoordinatorServer).IsCompactionCompleted(ctx, req)
		return resp, toStatusErr(err)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + coordinatorServiceName + "/IsCompactionCompleted"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := srv.(CoordinatorServer).IsCompactionCompleted(ctx, req.(*IsCompactionCompletedRequest))
		return resp, toStatusErr(err)
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would generate from a Coordinator.proto.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: coordinatorServiceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCompactionJob", Handler: handlerGetCompactionJob},
		{MethodName: "UpdateCompactionStatus", Handler: handlerUpdateCompactionStatus},
		{MethodName: "CompactionCompleted", Handler: handlerCompactionCompleted},
		{MethodName: "CancelCompaction", Handler: handlerCancelCompaction},
		{MethodName: "GetCompactionStatus", Handler: handlerGetCompactionStatus},
		{MethodName: "IsCompactionCompleted", Handler: handlerIsCompactionCompleted},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "compactord/coordinator.proto",
}

// RegisterCoordinatorServer wires srv into s, the hand-written analogue
// of generated RegisterCoordinatorServer.
func RegisterCoordinatorServer(s *grpc.Server, srv CoordinatorServer) {
	s.RegisterService(&serviceDesc, srv)
}
