package estimator

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/banshee-data/posebench/internal/monitoring"
)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Estimator)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResetObject", Handler: resetObjectHandler},
		{MethodName: "Register", Handler: registerHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

// RegisterService exposes est on s under the estimator wire service.
func RegisterService(s grpc.ServiceRegistrar, est Estimator) {
	s.RegisterService(&serviceDesc, est)
}

// NewServer returns a gRPC server with est registered and message limits
// large enough for full frames.
func NewServer(est Estimator, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterService(s, est)
	return s
}

// incomingDevice moves the x-device metadata into the context value read by
// DeviceFromContext.
func incomingDevice(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if vals := md.Get(DeviceMetadataKey); len(vals) > 0 {
		return WithDevice(ctx, vals[0])
	}
	return ctx
}

func resetObjectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := dynamicpb.NewMessage(schema.resetReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		obj, err := decodeObject(req.(*dynamicpb.Message))
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "reset object: %v", err)
		}
		ctx = incomingDevice(ctx)
		monitoring.Logf("[estimator] reset object %d: %d points, %d symmetries, device=%q",
			obj.ID, len(obj.Points), len(obj.SymmetryTFs), DeviceFromContext(ctx))
		if err := srv.(Estimator).ResetObject(ctx, obj); err != nil {
			return nil, toStatus(err)
		}
		return dynamicpb.NewMessage(schema.resetResp), nil
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: resetObjectMethod}
	return interceptor(ctx, in, info, handler)
}

func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := dynamicpb.NewMessage(schema.registerReq)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		obs, err := decodeObservation(req.(*dynamicpb.Message))
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "register: %v", err)
		}
		pose, err := srv.(Estimator).Register(incomingDevice(ctx), obs)
		if err != nil {
			return nil, toStatus(err)
		}
		return encodePose(pose), nil
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: registerMethod}
	return interceptor(ctx, in, info, handler)
}
