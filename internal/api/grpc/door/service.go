package door

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "doorwatch.v1.DoorService"

// Full method names.
const (
	SetDoorStateMethod = "/" + ServiceName + "/SetDoorState"
	GetStatusMethod    = "/" + ServiceName + "/GetStatus"
	GetHistoryMethod   = "/" + ServiceName + "/GetHistory"
)

// DoorServiceServer is the server API for the door service.
type DoorServiceServer interface {
	// SetDoorState applies an open (true) or closed (false) signal.
	SetDoorState(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error)
	// GetStatus returns the status document.
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	// GetHistory returns the event history, oldest first.
	GetHistory(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
}

// RegisterDoorServiceServer registers srv on s.
func RegisterDoorServiceServer(s grpc.ServiceRegistrar, srv DoorServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the door service for grpc.Server.
//
//nolint:gochecknoglobals // grpc.RegisterService needs a descriptor value.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DoorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetDoorState", Handler: setDoorStateHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "GetHistory", Handler: getHistoryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "doorwatch/v1/door.proto",
}

func setDoorStateHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.BoolValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(DoorServiceServer).SetDoorState(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SetDoorStateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DoorServiceServer).SetDoorState(ctx, req.(*wrapperspb.BoolValue))
	}

	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(DoorServiceServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DoorServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func getHistoryHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(DoorServiceServer).GetHistory(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetHistoryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DoorServiceServer).GetHistory(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// DoorServiceClient is the client API for the door service.
type DoorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDoorServiceClient creates a client on top of cc.
func NewDoorServiceClient(cc grpc.ClientConnInterface) *DoorServiceClient {
	return &DoorServiceClient{cc: cc}
}

// SetDoorState calls SetDoorState.
func (c *DoorServiceClient) SetDoorState(
	ctx context.Context,
	in *wrapperspb.BoolValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SetDoorStateMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GetStatus calls GetStatus.
func (c *DoorServiceClient) GetStatus(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStatusMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GetHistory calls GetHistory.
func (c *DoorServiceClient) GetHistory(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, GetHistoryMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
