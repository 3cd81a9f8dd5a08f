package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName       = "reclaim.admin.v1.Admin"
	collectFullMethod = "/" + serviceName + "/Collect"
	statsFullMethod   = "/" + serviceName + "/Stats"
)

// AdminServer is the server API for the reclaim admin service.
type AdminServer interface {
	Collect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// AdminServiceDesc describes the admin service. Requests and responses
// are well-known protobuf types, so no generated code is needed.
var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Collect", Handler: collectHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reclaim/admin/v1/admin.proto",
}

func collectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Collect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: collectFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Collect(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statsFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// AdminClient calls the admin service.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) Collect(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, collectFullMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) Stats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, statsFullMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
