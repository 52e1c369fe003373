package proto

import (
	"context"
	"errors"
	"image"
	"net"
	"os"
	"path/filepath"
	"testing"

	iface "FaceStabilityServer/interface"
	"FaceStabilityServer/logger"
	"FaceStabilityServer/monitor"
	"FaceStabilityServer/overlay"
	"FaceStabilityServer/pipeline"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type mockAnalyzer struct {
	rotation int
	err      error
}

func (m *mockAnalyzer) Process(ctx context.Context, frame iface.Frame) (pipeline.FrameResult, error) {
	m.rotation = frame.Rotation
	if m.err != nil {
		return pipeline.FrameResult{Err: m.err}, m.err
	}
	return pipeline.FrameResult{
		FrameID: "frame-1",
		Faces:   2,
		Records: []iface.Record{{Label: iface.Stable, Score: 0.3}, {Label: iface.Unstable, Score: 0.9}},
	}, nil
}

type staticView struct{}

func (staticView) Snapshot() overlay.Snapshot {
	return overlay.Snapshot{Generation: 4, Size: iface.Size{Width: 640, Height: 480}}
}

func fakeDecode(data []byte, rotation int) (iface.Frame, error) {
	if string(data) == "garbage" {
		return iface.Frame{}, errors.New("decoded image is empty or unsupported format")
	}
	return iface.Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), Rotation: rotation}, nil
}

func startBufServer(t *testing.T, srv *Server) *StabilityServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := Serve(lis, srv)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewStabilityServiceClient(conn)
}

func TestStabilityService(t *testing.T) {
	analyzer := &mockAnalyzer{}
	metrics := monitor.NewMetrics()
	srv := NewServer(analyzer, staticView{}, metrics, nil)
	srv.Decode = fakeDecode
	srv.ModelDir = t.TempDir()
	client := startBufServer(t, srv)

	t.Run("Test Analyze", func(t *testing.T) {
		ctx := metadata.AppendToOutgoingContext(context.Background(), RotationMetadataKey, "270")
		resp, err := client.Analyze(ctx, wrapperspb.Bytes([]byte("jpeg")))
		require.NoError(t, err)
		m := resp.AsMap()
		assert.Equal(t, "frame-1", m["frameId"])
		assert.Equal(t, 2.0, m["faces"])
		records := m["records"].([]any)
		require.Len(t, records, 2)
		first := records[0].(map[string]any)
		assert.Equal(t, "Stable", first["label"])
		assert.InDelta(t, 0.3, first["score"], 1e-6)
		assert.Equal(t, 270, analyzer.rotation)
	})

	t.Run("Test Analyze bad input", func(t *testing.T) {
		_, err := client.Analyze(context.Background(), wrapperspb.Bytes([]byte("garbage")))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		ctx := metadata.AppendToOutgoingContext(context.Background(), RotationMetadataKey, "45")
		_, err = client.Analyze(ctx, wrapperspb.Bytes([]byte("jpeg")))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("Test Analyze pipeline errors", func(t *testing.T) {
		cases := map[codes.Code]error{
			codes.ResourceExhausted: pipeline.ErrBusy,
			codes.Unavailable:       pipeline.ErrStopped,
			codes.Internal:          &pipeline.DetectionFailure{FrameID: "f", Err: errors.New("boom")},
		}
		for code, err := range cases {
			analyzer.err = err
			_, got := client.Analyze(context.Background(), wrapperspb.Bytes([]byte("jpeg")))
			assert.Equal(t, code, status.Code(got))
		}
		analyzer.err = nil
	})

	t.Run("Test Overlay", func(t *testing.T) {
		resp, err := client.Overlay(context.Background(), &emptypb.Empty{})
		require.NoError(t, err)
		m := resp.AsMap()
		assert.Equal(t, 4.0, m["generation"])
		assert.Equal(t, map[string]any{"width": 640.0, "height": 480.0}, m["size"])
	})

	t.Run("Test UploadModel", func(t *testing.T) {
		ctx := metadata.AppendToOutgoingContext(context.Background(), ModelNameMetadataKey, "../stability.tflite")
		payload := make([]byte, 10000)
		for i := range payload {
			payload[i] = byte(i)
		}
		path, err := client.UploadModel(ctx, payload, 4096)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(srv.ModelDir, "stability.tflite"), path)
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, payload, got)

		ctx = metadata.AppendToOutgoingContext(context.Background(), ModelNameMetadataKey, "model.param")
		_, err = client.UploadModel(ctx, payload, 0)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("Test Shutdown", func(t *testing.T) {
		_, err := client.Shutdown(context.Background(), &emptypb.Empty{})
		require.NoError(t, err)
		_, err = client.Shutdown(context.Background(), &emptypb.Empty{})
		require.NoError(t, err)
		select {
		case <-srv.Done():
		default:
			t.Fatal("Done not closed after Shutdown")
		}
	})

	assert.Greater(t, testutil.ToFloat64(metrics.GRPCTotal), 5.0)
}

func TestNewServerUsesProcessLogger(t *testing.T) {
	l, err := logger.Init(false, "error")
	require.NoError(t, err)
	srv := NewServer(&mockAnalyzer{}, nil, nil, nil)
	assert.Same(t, l, srv.Log)
}
