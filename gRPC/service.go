package proto

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The service is declared over protobuf well-known types, so no generated
// message code is needed. Frame rotation travels in RotationMetadataKey and
// the uploaded model name in ModelNameMetadataKey.
const (
	ServiceName          = "facestate.StabilityService"
	RotationMetadataKey  = "x-frame-rotation"
	ModelNameMetadataKey = "x-model-name"
)

const (
	analyzeMethod     = "/" + ServiceName + "/Analyze"
	overlayMethod     = "/" + ServiceName + "/Overlay"
	shutdownMethod    = "/" + ServiceName + "/Shutdown"
	uploadModelMethod = "/" + ServiceName + "/UploadModel"
)

type StabilityServiceServer interface {
	Analyze(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	Overlay(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	UploadModel(StabilityService_UploadModelServer) error
}

type StabilityService_UploadModelServer interface {
	Recv() (*wrapperspb.BytesValue, error)
	SendAndClose(*wrapperspb.StringValue) error
	grpc.ServerStream
}

type uploadModelServer struct {
	grpc.ServerStream
}

func (x *uploadModelServer) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *uploadModelServer) SendAndClose(m *wrapperspb.StringValue) error {
	return x.ServerStream.SendMsg(m)
}

func RegisterStabilityServiceServer(s grpc.ServiceRegistrar, srv StabilityServiceServer) {
	s.RegisterService(&StabilityService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(StabilityServiceServer, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StabilityServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(StabilityServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var StabilityService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StabilityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Analyze",
			Handler: unaryHandler(analyzeMethod, func(s StabilityServiceServer, ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
				return s.Analyze(ctx, in)
			}),
		},
		{
			MethodName: "Overlay",
			Handler: unaryHandler(overlayMethod, func(s StabilityServiceServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.Overlay(ctx, in)
			}),
		},
		{
			MethodName: "Shutdown",
			Handler: unaryHandler(shutdownMethod, func(s StabilityServiceServer, ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
				return s.Shutdown(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "UploadModel",
			Handler: func(srv interface{}, stream grpc.ServerStream) error {
				return srv.(StabilityServiceServer).UploadModel(&uploadModelServer{stream})
			},
			ClientStreams: true,
		},
	},
	Metadata: "facestate/stability.proto",
}

type StabilityServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewStabilityServiceClient(cc grpc.ClientConnInterface) *StabilityServiceClient {
	return &StabilityServiceClient{cc}
}

func (c *StabilityServiceClient) Analyze(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, analyzeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StabilityServiceClient) Overlay(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, overlayMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StabilityServiceClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, shutdownMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadModel streams data in chunkSize pieces and returns the stored path.
func (c *StabilityServiceClient) UploadModel(ctx context.Context, data []byte, chunkSize int, opts ...grpc.CallOption) (string, error) {
	stream, err := c.cc.NewStream(ctx, &StabilityService_ServiceDesc.Streams[0], uploadModelMethod, opts...)
	if err != nil {
		return "", err
	}
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		if err := stream.SendMsg(wrapperspb.Bytes(data[:n])); err != nil {
			// the server ended the stream early, its status comes from RecvMsg
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		data = data[n:]
	}
	if err := stream.CloseSend(); err != nil {
		return "", err
	}
	out := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}
