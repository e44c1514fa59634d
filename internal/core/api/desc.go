package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "smsfilter.v1.FilterService"

// Full method names.
const (
	MethodEvaluate    = "/" + ServiceName + "/Evaluate"
	MethodExportRules = "/" + ServiceName + "/ExportRules"
	MethodImportRules = "/" + ServiceName + "/ImportRules"
	MethodListBlocked = "/" + ServiceName + "/ListBlocked"
)

// FilterServiceServer is the server side of smsfilter.v1.FilterService.
// Requests and responses are google.protobuf.Struct messages.
type FilterServiceServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImportRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBlocked(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(FilterServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FilterServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FilterServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FilterServiceDesc describes the service for grpc.Server.RegisterService.
var FilterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FilterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unaryHandler(MethodEvaluate, FilterServiceServer.Evaluate)},
		{MethodName: "ExportRules", Handler: unaryHandler(MethodExportRules, FilterServiceServer.ExportRules)},
		{MethodName: "ImportRules", Handler: unaryHandler(MethodImportRules, FilterServiceServer.ImportRules)},
		{MethodName: "ListBlocked", Handler: unaryHandler(MethodListBlocked, FilterServiceServer.ListBlocked)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smsfilter/v1/filter.proto",
}

// RegisterFilterServiceServer registers srv on s.
func RegisterFilterServiceServer(s grpc.ServiceRegistrar, srv FilterServiceServer) {
	s.RegisterService(&FilterServiceDesc, srv)
}

// FilterServiceClient calls smsfilter.v1.FilterService.
type FilterServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFilterServiceClient wraps a client connection.
func NewFilterServiceClient(cc grpc.ClientConnInterface) *FilterServiceClient {
	return &FilterServiceClient{cc: cc}
}

func (c *FilterServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FilterServiceClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodEvaluate, in, opts...)
}

func (c *FilterServiceClient) ExportRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodExportRules, in, opts...)
}

func (c *FilterServiceClient) ImportRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodImportRules, in, opts...)
}

func (c *FilterServiceClient) ListBlocked(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListBlocked, in, opts...)
}
