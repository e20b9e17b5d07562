// Package periodrpc serves simulation periods over gRPC and provides the
// matching client. The service is described by hand with protobuf
// well-known types, so no generated code is involved:
//
//	service PeriodService {
//	  rpc GetRange(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc GetPeriod(google.protobuf.Int64Value) returns (google.protobuf.Struct);
//	}
package periodrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "flowview.v1.PeriodService"

// Full method names.
const (
	GetRangeMethod  = "/" + ServiceName + "/GetRange"
	GetPeriodMethod = "/" + ServiceName + "/GetPeriod"
)

// PeriodServiceServer is the server API for PeriodService.
type PeriodServiceServer interface {
	// GetRange returns {first, last}.
	GetRange(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetPeriod returns the snapshot document of one period.
	GetPeriod(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
}

// RegisterPeriodServiceServer registers srv on s.
func RegisterPeriodServiceServer(s grpc.ServiceRegistrar, srv PeriodServiceServer) {
	s.RegisterService(&PeriodServiceDesc, srv)
}

// PeriodServiceDesc is the grpc.ServiceDesc for PeriodService.
var PeriodServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PeriodServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRange", Handler: getRangeHandler},
		{MethodName: "GetPeriod", Handler: getPeriodHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "flowview/v1/period.proto",
}

func getRangeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PeriodServiceServer).GetRange(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetRangeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PeriodServiceServer).GetRange(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getPeriodHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PeriodServiceServer).GetPeriod(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetPeriodMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PeriodServiceServer).GetPeriod(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}
