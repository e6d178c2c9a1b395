// Package comm holds the gRPC definition of the journal service. Messages are protobuf well known types so no
// generated message code is required.
package comm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const JournalServiceName = "chronolog.JournalService"

// JournalServiceServer is the server API for the journal service.
type JournalServiceServer interface {
	// Store appends a single payload. Empty payloads are rejected.
	Store(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	// RetrieveHistory streams the payloads currently in the journal.
	RetrieveHistory(*emptypb.Empty, ValueStreamServer) error
	// RetrieveNewValues streams the payloads stored after the call.
	RetrieveNewValues(*emptypb.Empty, ValueStreamServer) error
	// RetrieveAll streams all the payloads followed by the new ones. The request tells whether segments must be
	// deleted once read.
	RetrieveAll(*wrapperspb.BoolValue, ValueStreamServer) error
	// Replay replays the history at the requested time acceleration. Values <= 0 replay as fast as possible.
	Replay(*wrapperspb.DoubleValue, ValueStreamServer) error
	// ReplayLoop replays the history with its original timing forever. The request holds the restart delay in
	// milliseconds. An empty payload is sent before the first payload of every iteration.
	ReplayLoop(*wrapperspb.Int64Value, ValueStreamServer) error
}

// UnimplementedJournalServiceServer can be embedded to have forward compatible implementations.
type UnimplementedJournalServiceServer struct {
}

func (UnimplementedJournalServiceServer) Store(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Store not implemented")
}
func (UnimplementedJournalServiceServer) RetrieveHistory(*emptypb.Empty, ValueStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method RetrieveHistory not implemented")
}
func (UnimplementedJournalServiceServer) RetrieveNewValues(*emptypb.Empty, ValueStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method RetrieveNewValues not implemented")
}
func (UnimplementedJournalServiceServer) RetrieveAll(*wrapperspb.BoolValue, ValueStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method RetrieveAll not implemented")
}
func (UnimplementedJournalServiceServer) Replay(*wrapperspb.DoubleValue, ValueStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method Replay not implemented")
}
func (UnimplementedJournalServiceServer) ReplayLoop(*wrapperspb.Int64Value, ValueStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method ReplayLoop not implemented")
}

// ValueStreamServer is the server side of a payload stream.
type ValueStreamServer interface {
	Send(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type valueStreamServer struct {
	grpc.ServerStream
}

func (x *valueStreamServer) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

// ValueStreamClient is the client side of a payload stream.
type ValueStreamClient interface {
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ClientStream
}

type valueStreamClient struct {
	grpc.ClientStream
}

func (x *valueStreamClient) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func RegisterJournalServiceServer(s grpc.ServiceRegistrar, srv JournalServiceServer) {
	s.RegisterService(&JournalServiceDesc, srv)
}

func storeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JournalServiceServer).Store(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + JournalServiceName + "/Store",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JournalServiceServer).Store(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func retrieveHistoryHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(JournalServiceServer).RetrieveHistory(m, &valueStreamServer{stream})
}

func retrieveNewValuesHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(JournalServiceServer).RetrieveNewValues(m, &valueStreamServer{stream})
}

func retrieveAllHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.BoolValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(JournalServiceServer).RetrieveAll(m, &valueStreamServer{stream})
}

func replayHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.DoubleValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(JournalServiceServer).Replay(m, &valueStreamServer{stream})
}

func replayLoopHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.Int64Value)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(JournalServiceServer).ReplayLoop(m, &valueStreamServer{stream})
}

// JournalServiceDesc is the grpc.ServiceDesc for the journal service.
var JournalServiceDesc = grpc.ServiceDesc{
	ServiceName: JournalServiceName,
	HandlerType: (*JournalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Store",
			Handler:    storeHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "RetrieveHistory", Handler: retrieveHistoryHandler, ServerStreams: true},
		{StreamName: "RetrieveNewValues", Handler: retrieveNewValuesHandler, ServerStreams: true},
		{StreamName: "RetrieveAll", Handler: retrieveAllHandler, ServerStreams: true},
		{StreamName: "Replay", Handler: replayHandler, ServerStreams: true},
		{StreamName: "ReplayLoop", Handler: replayLoopHandler, ServerStreams: true},
	},
	Metadata: "chronolog/journal_service",
}

// JournalServiceClient is the client API for the journal service.
type JournalServiceClient interface {
	Store(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	RetrieveHistory(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (ValueStreamClient, error)
	RetrieveNewValues(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (ValueStreamClient, error)
	RetrieveAll(ctx context.Context, in *wrapperspb.BoolValue, opts ...grpc.CallOption) (ValueStreamClient, error)
	Replay(ctx context.Context, in *wrapperspb.DoubleValue, opts ...grpc.CallOption) (ValueStreamClient, error)
	ReplayLoop(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (ValueStreamClient, error)
}

type journalServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewJournalServiceClient(cc grpc.ClientConnInterface) JournalServiceClient {
	return &journalServiceClient{cc}
}

func (c *journalServiceClient) Store(ctx context.Context, in *wrapperspb.BytesValue,
	opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/"+JournalServiceName+"/Store", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *journalServiceClient) RetrieveHistory(ctx context.Context, in *emptypb.Empty,
	opts ...grpc.CallOption) (ValueStreamClient, error) {
	return c.openStream(ctx, 0, in, opts...)
}

func (c *journalServiceClient) RetrieveNewValues(ctx context.Context, in *emptypb.Empty,
	opts ...grpc.CallOption) (ValueStreamClient, error) {
	return c.openStream(ctx, 1, in, opts...)
}

func (c *journalServiceClient) RetrieveAll(ctx context.Context, in *wrapperspb.BoolValue,
	opts ...grpc.CallOption) (ValueStreamClient, error) {
	return c.openStream(ctx, 2, in, opts...)
}

func (c *journalServiceClient) Replay(ctx context.Context, in *wrapperspb.DoubleValue,
	opts ...grpc.CallOption) (ValueStreamClient, error) {
	return c.openStream(ctx, 3, in, opts...)
}

func (c *journalServiceClient) ReplayLoop(ctx context.Context, in *wrapperspb.Int64Value,
	opts ...grpc.CallOption) (ValueStreamClient, error) {
	return c.openStream(ctx, 4, in, opts...)
}

// openStream opens the server stream at the given index of JournalServiceDesc.Streams and sends the request.
func (c *journalServiceClient) openStream(ctx context.Context, streamIdx int, in interface{},
	opts ...grpc.CallOption) (ValueStreamClient, error) {
	desc := &JournalServiceDesc.Streams[streamIdx]
	stream, err := c.cc.NewStream(ctx, desc, "/"+JournalServiceName+"/"+desc.StreamName, opts...)
	if err != nil {
		return nil, err
	}
	x := &valueStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
