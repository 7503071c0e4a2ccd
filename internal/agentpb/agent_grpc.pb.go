package agentpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AgentServiceClient is the client API for AgentService.
type AgentServiceClient interface {
	Process(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error)
	ProcessStream(ctx context.Context, in *Request, opts ...grpc.CallOption) (AgentService_ProcessStreamClient, error)
}

type agentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAgentServiceClient builds a client bound to cc.
func NewAgentServiceClient(cc grpc.ClientConnInterface) AgentServiceClient {
	return &agentServiceClient{cc}
}

func (c *agentServiceClient) Process(ctx context.Context, in *Request, opts ...grpc.CallOption) (*Response, error) {
	out := new(Response)
	if err := c.cc.Invoke(ctx, "/agentpb.AgentService/Process", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) ProcessStream(ctx context.Context, in *Request, opts ...grpc.CallOption) (AgentService_ProcessStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &AgentService_ServiceDesc.Streams[0], "/agentpb.AgentService/ProcessStream", opts...)
	if err != nil {
		return nil, err
	}
	x := &agentServiceProcessStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// AgentService_ProcessStreamClient is the stream handle returned by
// ProcessStream.
type AgentService_ProcessStreamClient interface {
	Recv() (*StreamChunk, error)
	grpc.ClientStream
}

type agentServiceProcessStreamClient struct {
	grpc.ClientStream
}

func (x *agentServiceProcessStreamClient) Recv() (*StreamChunk, error) {
	m := new(StreamChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// AgentServiceServer is the server API for AgentService.
type AgentServiceServer interface {
	Process(context.Context, *Request) (*Response, error)
	ProcessStream(*Request, AgentService_ProcessStreamServer) error
}

// UnimplementedAgentServiceServer can be embedded for forward compatibility.
type UnimplementedAgentServiceServer struct{}

func (UnimplementedAgentServiceServer) Process(context.Context, *Request) (*Response, error) {
	return nil, status.Error(codes.Unimplemented, "method Process not implemented")
}

func (UnimplementedAgentServiceServer) ProcessStream(*Request, AgentService_ProcessStreamServer) error {
	return status.Error(codes.Unimplemented, "method ProcessStream not implemented")
}

// RegisterAgentServiceServer registers srv on s.
func RegisterAgentServiceServer(s grpc.ServiceRegistrar, srv AgentServiceServer) {
	s.RegisterService(&AgentService_ServiceDesc, srv)
}

func _AgentService_Process_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).Process(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/agentpb.AgentService/Process"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentServiceServer).Process(ctx, req.(*Request))
	}
	return interceptor(ctx, in, info, handler)
}

func _AgentService_ProcessStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(Request)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(AgentServiceServer).ProcessStream(m, &agentServiceProcessStreamServer{stream})
}

// AgentService_ProcessStreamServer is the stream handle passed to the
// server-side ProcessStream implementation.
type AgentService_ProcessStreamServer interface {
	Send(*StreamChunk) error
	grpc.ServerStream
}

type agentServiceProcessStreamServer struct {
	grpc.ServerStream
}

func (x *agentServiceProcessStreamServer) Send(m *StreamChunk) error {
	return x.ServerStream.SendMsg(m)
}

// AgentService_ServiceDesc is the grpc.ServiceDesc for AgentService.
var AgentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "agentpb.AgentService",
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Process",
			Handler:    _AgentService_Process_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ProcessStream",
			Handler:       _AgentService_ProcessStream_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "agent.proto",
}
