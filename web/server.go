// Package web exposes the analyzer over HTTP and a websocket overlay stream.
package web

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"FaceStabilityServer/capture"
	"FaceStabilityServer/logger"
	iface "FaceStabilityServer/interface"
	"FaceStabilityServer/overlay"
	"FaceStabilityServer/pipeline"
	"FaceStabilityServer/recorder"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultRecordLimit = 100

type Analyzer interface {
	Process(ctx context.Context, frame iface.Frame) (pipeline.FrameResult, error)
}

type OverlayView interface {
	Snapshot() overlay.Snapshot
	Render() *image.RGBA
	OnRedraw(fn func(overlay.Snapshot)) func()
}

type RecordSource interface {
	Recent(ctx context.Context, n int) ([]recorder.Row, error)
}

type Server struct {
	Analyzer Analyzer
	View     OverlayView
	// Records serves /api/records; when nil the CSV log at CSVPath is read.
	Records  RecordSource
	CSVPath  string
	ModelDir string

	Decode       func(data []byte, rotation int) (iface.Frame, error)
	DecodeBase64 func(b64 string, rotation int) (iface.Frame, error)

	Log *zap.Logger
}

func NewServer(analyzer Analyzer, view OverlayView, log *zap.Logger) *Server {
	if log == nil {
		log = logger.Log()
	}
	return &Server{
		Analyzer:     analyzer,
		View:         view,
		ModelDir:     "models",
		Decode:       capture.DecodeFrame,
		DecodeBase64: capture.DecodeBase64Frame,
		Log:          log,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/api/frames", s.postFrame)
	r.GET("/api/overlay", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.View.Snapshot())
	})
	r.GET("/api/overlay.png", s.overlayPNG)
	r.GET("/api/records", s.records)
	r.POST("/api/models/upload", s.uploadModel)
	r.GET("/ws/overlay", s.overlayStream)
	return r
}

// Start serves the router on port in the background.
func (s *Server) Start(port int) *http.Server {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
	go func() {
		s.Log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Error("HTTP server ListenAndServe error", zap.Error(err))
		}
	}()
	return srv
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func rotationParam(c *gin.Context) (int, error) {
	raw := c.Query("rotation")
	if raw == "" {
		raw = c.PostForm("rotation")
	}
	if raw == "" {
		return 0, nil
	}
	deg, err := strconv.Atoi(raw)
	if err != nil || !iface.ValidRotation(deg) {
		return 0, fmt.Errorf("invalid rotation %q", raw)
	}
	return deg, nil
}

// statusFor maps an analysis error onto an HTTP status.
func statusFor(err error) int {
	var df *pipeline.DetectionFailure
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, pipeline.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.As(err, &df):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// postFrame accepts the image either as multipart field "image" or as the
// raw request body.
func (s *Server) postFrame(c *gin.Context) {
	rotation, err := rotationParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var data []byte
	if file, ferr := c.FormFile("image"); ferr == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		data, err = io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty image"})
		return
	}
	frame, err := s.Decode(data, rotation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image: " + err.Error()})
		return
	}
	res, err := s.Analyzer.Process(c.Request.Context(), frame)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "frameId": res.FrameID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (s *Server) overlayPNG(c *gin.Context) {
	img := s.View.Render()
	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, img); err != nil {
		s.Log.Error("Encode overlay png", zap.Error(err))
	}
}

func (s *Server) records(c *gin.Context) {
	limit := defaultRecordLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	if s.Records != nil {
		rows, err := s.Records.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
		return
	}
	recs, err := recorder.ReadCSV(s.CSVPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// newest first, like the SQLite mirror
	rows := make([]recorder.Row, 0, min(limit, len(recs)))
	for i := len(recs) - 1; i >= 0 && len(rows) < limit; i-- {
		rows = append(rows, recorder.Row{ID: int64(i + 1), Label: recs[i].Label, Score: recs[i].Score})
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) uploadModel(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File upload failed: " + err.Error()})
		return
	}
	name := filepath.Base(file.Filename)
	switch filepath.Ext(name) {
	case ".onnx", ".tflite":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported model file " + name})
		return
	}
	modelPath := filepath.Join(s.ModelDir, name)
	if err := c.SaveUploadedFile(file, modelPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": modelPath})
}
