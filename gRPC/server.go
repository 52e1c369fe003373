// Package proto serves the stability analyzer over gRPC.
package proto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"FaceStabilityServer/capture"
	"FaceStabilityServer/logger"
	iface "FaceStabilityServer/interface"
	"FaceStabilityServer/monitor"
	"FaceStabilityServer/overlay"
	"FaceStabilityServer/pipeline"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Analyzer interface {
	Process(ctx context.Context, frame iface.Frame) (pipeline.FrameResult, error)
}

type OverlayView interface {
	Snapshot() overlay.Snapshot
}

type Server struct {
	Analyzer Analyzer
	View     OverlayView
	// Decode turns request bytes into a frame; capture.DecodeFrame if nil.
	Decode   func(data []byte, rotation int) (iface.Frame, error)
	ModelDir string
	Metrics  *monitor.Metrics
	Log      *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func NewServer(analyzer Analyzer, view OverlayView, metrics *monitor.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = logger.Log()
	}
	return &Server{
		Analyzer: analyzer,
		View:     view,
		Decode:   capture.DecodeFrame,
		ModelDir: "models",
		Metrics:  metrics,
		Log:      log,
		closed:   make(chan struct{}),
	}
}

// Done is closed once a client has requested Shutdown.
func (s *Server) Done() <-chan struct{} { return s.closed }

func rotationFrom(ctx context.Context) (int, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, nil
	}
	vals := md.Get(RotationMetadataKey)
	if len(vals) == 0 {
		return 0, nil
	}
	deg, err := strconv.Atoi(vals[0])
	if err != nil || !iface.ValidRotation(deg) {
		return 0, fmt.Errorf("invalid rotation %q", vals[0])
	}
	return deg, nil
}

// toStruct converts any JSON-encodable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func (s *Server) Analyze(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	s.Metrics.GRPCRequest()
	rotation, err := rotationFrom(ctx)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	frame, err := s.Decode(req.GetValue(), rotation)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid image: %v", err)
	}
	res, err := s.Analyzer.Process(ctx, frame)
	if err != nil {
		var df *pipeline.DetectionFailure
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			return nil, status.Error(codes.ResourceExhausted, err.Error())
		case errors.Is(err, pipeline.ErrStopped):
			return nil, status.Error(codes.Unavailable, err.Error())
		case errors.As(err, &df):
			return nil, status.Error(codes.Internal, err.Error())
		}
		return nil, status.Error(codes.Unknown, err.Error())
	}
	out, err := toStruct(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.Log.Debug("Analyze", zap.String("frameId", res.FrameID), zap.Int("faces", res.Faces))
	return out, nil
}

func (s *Server) Overlay(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.Metrics.GRPCRequest()
	out, err := toStruct(s.View.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Shutdown(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.Metrics.GRPCRequest()
	s.closeOnce.Do(func() {
		s.Log.Warn("Shutdown requested over gRPC")
		close(s.closed)
	})
	return &emptypb.Empty{}, nil
}

// UploadModel stores a streamed model file under ModelDir. The file name
// comes from ModelNameMetadataKey.
func (s *Server) UploadModel(stream StabilityService_UploadModelServer) error {
	s.Metrics.GRPCRequest()
	md, _ := metadata.FromIncomingContext(stream.Context())
	names := md.Get(ModelNameMetadataKey)
	if len(names) == 0 || names[0] == "" {
		return status.Error(codes.InvalidArgument, "file name cannot be empty")
	}
	name := filepath.Base(names[0])
	switch filepath.Ext(name) {
	case ".onnx", ".tflite":
	default:
		return status.Errorf(codes.InvalidArgument, "unsupported model file %q", name)
	}
	if err := os.MkdirAll(s.ModelDir, 0o755); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	path := filepath.Join(s.ModelDir, name)
	out, err := os.Create(path)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	size := 0
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Close()
			return err
		}
		n, err := out.Write(chunk.GetValue())
		if err != nil {
			out.Close()
			return status.Errorf(codes.Internal, "failed to write chunk data: %v", err)
		}
		size += n
	}
	if err := out.Close(); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	s.Log.Info("Model uploaded", zap.String("path", path), zap.Int("bytes", size))
	return stream.SendAndClose(wrapperspb.String(path))
}

// Serve registers srv on a new gRPC server and serves lis in the background.
func Serve(lis net.Listener, srv *Server) *grpc.Server {
	s := grpc.NewServer()
	RegisterStabilityServiceServer(s, srv)
	go func() {
		srv.Log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			srv.Log.Error("Failed to serve gRPC server", zap.Error(err))
		}
	}()
	return s
}

func StartGRPCServer(port int, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	return Serve(lis, srv), nil
}
