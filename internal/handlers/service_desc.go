package handlers

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AttributeServiceName is the fully qualified gRPC service name
const AttributeServiceName = "eav.v1.AttributeService"

// Full method names of the attribute service
const (
	MethodCreateAttribute = "/" + AttributeServiceName + "/CreateAttribute"
	MethodUpdateAttribute = "/" + AttributeServiceName + "/UpdateAttribute"
	MethodDeleteAttribute = "/" + AttributeServiceName + "/DeleteAttribute"
	MethodListAttributes  = "/" + AttributeServiceName + "/ListAttributes"
	MethodCreateProject   = "/" + AttributeServiceName + "/CreateProject"
	MethodUpdateProject   = "/" + AttributeServiceName + "/UpdateProject"
	MethodGetProject      = "/" + AttributeServiceName + "/GetProject"
	MethodDeleteProject   = "/" + AttributeServiceName + "/DeleteProject"
	MethodListProjects    = "/" + AttributeServiceName + "/ListProjects"
)

// AttributeServiceServer is the server API of eav.v1.AttributeService.
// Requests and responses are google.protobuf.Struct documents.
type AttributeServiceServer interface {
	CreateAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAttributes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProjects(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAttributeServiceServer registers srv on s
func RegisterAttributeServiceServer(s grpc.ServiceRegistrar, srv AttributeServiceServer) {
	s.RegisterService(&AttributeServiceDesc, srv)
}

type structMethod func(AttributeServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a server method to grpc.MethodDesc
func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AttributeServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AttributeServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AttributeServiceDesc is the grpc.ServiceDesc for eav.v1.AttributeService
var AttributeServiceDesc = grpc.ServiceDesc{
	ServiceName: AttributeServiceName,
	HandlerType: (*AttributeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAttribute", Handler: unaryHandler(MethodCreateAttribute, AttributeServiceServer.CreateAttribute)},
		{MethodName: "UpdateAttribute", Handler: unaryHandler(MethodUpdateAttribute, AttributeServiceServer.UpdateAttribute)},
		{MethodName: "DeleteAttribute", Handler: unaryHandler(MethodDeleteAttribute, AttributeServiceServer.DeleteAttribute)},
		{MethodName: "ListAttributes", Handler: unaryHandler(MethodListAttributes, AttributeServiceServer.ListAttributes)},
		{MethodName: "CreateProject", Handler: unaryHandler(MethodCreateProject, AttributeServiceServer.CreateProject)},
		{MethodName: "UpdateProject", Handler: unaryHandler(MethodUpdateProject, AttributeServiceServer.UpdateProject)},
		{MethodName: "GetProject", Handler: unaryHandler(MethodGetProject, AttributeServiceServer.GetProject)},
		{MethodName: "DeleteProject", Handler: unaryHandler(MethodDeleteProject, AttributeServiceServer.DeleteProject)},
		{MethodName: "ListProjects", Handler: unaryHandler(MethodListProjects, AttributeServiceServer.ListProjects)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eav/v1/attribute_service.proto",
}

// AttributeServiceClient calls eav.v1.AttributeService over a connection
type AttributeServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAttributeServiceClient creates a client over cc
func NewAttributeServiceClient(cc grpc.ClientConnInterface) *AttributeServiceClient {
	return &AttributeServiceClient{cc: cc}
}

// Call invokes a unary method by its full name
func (c *AttributeServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
