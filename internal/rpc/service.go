package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "notesync.v1.NoteSync"

const (
	MethodRegister     = "/" + ServiceName + "/Register"
	MethodLogin        = "/" + ServiceName + "/Login"
	MethodRefreshToken = "/" + ServiceName + "/RefreshToken"
	MethodPing         = "/" + ServiceName + "/Ping"
	MethodUpsertNote   = "/" + ServiceName + "/UpsertNote"
	MethodSelectNotes  = "/" + ServiceName + "/SelectNotes"
	MethodExportNotes  = "/" + ServiceName + "/ExportNotes"
	MethodSubscribe    = "/" + ServiceName + "/Subscribe"
)

// NoteSyncServer is implemented by the server-side handler.
type NoteSyncServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpsertNote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectNotes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportNotes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, SubscribeServer) error
}

// SubscribeServer is the server side of the change-feed stream.
type SubscribeServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type subscribeServer struct {
	grpc.ServerStream
}

func (x *subscribeServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

type unaryCall func(NoteSyncServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NoteSyncServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(NoteSyncServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(NoteSyncServer).Subscribe(in, &subscribeServer{stream})
}

// ServiceDesc is the grpc.ServiceDesc for the NoteSync service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NoteSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(MethodRegister, NoteSyncServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(MethodLogin, NoteSyncServer.Login)},
		{MethodName: "RefreshToken", Handler: unaryHandler(MethodRefreshToken, NoteSyncServer.RefreshToken)},
		{MethodName: "Ping", Handler: unaryHandler(MethodPing, NoteSyncServer.Ping)},
		{MethodName: "UpsertNote", Handler: unaryHandler(MethodUpsertNote, NoteSyncServer.UpsertNote)},
		{MethodName: "SelectNotes", Handler: unaryHandler(MethodSelectNotes, NoteSyncServer.SelectNotes)},
		{MethodName: "ExportNotes", Handler: unaryHandler(MethodExportNotes, NoteSyncServer.ExportNotes)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "notesync/v1/notesync.proto",
}

func RegisterNoteSyncServer(s grpc.ServiceRegistrar, srv NoteSyncServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NoteSyncClient is the client stub for the NoteSync service.
type NoteSyncClient struct {
	cc grpc.ClientConnInterface
}

func NewNoteSyncClient(cc grpc.ClientConnInterface) *NoteSyncClient {
	return &NoteSyncClient{cc: cc}
}

func (c *NoteSyncClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *NoteSyncClient) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRegister, in, opts...)
}

func (c *NoteSyncClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogin, in, opts...)
}

func (c *NoteSyncClient) RefreshToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRefreshToken, in, opts...)
}

func (c *NoteSyncClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPing, in, opts...)
}

func (c *NoteSyncClient) UpsertNote(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpsertNote, in, opts...)
}

func (c *NoteSyncClient) SelectNotes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSelectNotes, in, opts...)
}

func (c *NoteSyncClient) ExportNotes(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodExportNotes, in, opts...)
}

// SubscribeClient is the client side of the change-feed stream.
type SubscribeClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type subscribeClient struct {
	grpc.ClientStream
}

func (x *subscribeClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *NoteSyncClient) Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodSubscribe, opts...)
	if err != nil {
		return nil, err
	}
	x := &subscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
