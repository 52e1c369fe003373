package detector

import (
	"context"
	"fmt"
	"image"
	"sync"

	iface "FaceStabilityServer/interface"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Cascade detects faces with an OpenCV Haar cascade. Frames are rotated
// upright before detection, so boxes come back in upright image space.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	minRatio   float64
	closed     bool
	log        *zap.Logger
}

func NewCascade(cfg Config, log *zap.Logger) (*Cascade, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CascadePath == "" {
		return nil, fmt.Errorf("cascade path is empty")
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		_ = classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier from %s", cfg.CascadePath)
	}
	log.Info("Face cascade loaded", zap.String("path", cfg.CascadePath))
	return &Cascade{classifier: classifier, minRatio: cfg.minFaceRatio(), log: log}, nil
}

func rotateCode(deg int) (gocv.RotateFlag, bool) {
	switch deg {
	case 90:
		return gocv.Rotate90Clockwise, true
	case 180:
		return gocv.Rotate180Clockwise, true
	case 270:
		return gocv.Rotate90CounterClockwise, true
	}
	return 0, false
}

// uprightGray rotates the frame upright and returns its luma. The
// Mat from ImageToMatRGB is in BGR channel order.
func uprightGray(frame iface.Frame) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()
	upright := mat
	if code, ok := rotateCode(frame.Rotation); ok {
		rotated := gocv.NewMat()
		defer rotated.Close()
		gocv.Rotate(mat, &rotated, code)
		upright = rotated
	}

	gray := gocv.NewMat()
	gocv.CvtColor(upright, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

func (c *Cascade) Detect(ctx context.Context, frame iface.Frame) ([]iface.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Image == nil {
		return nil, fmt.Errorf("frame has no image")
	}
	if !iface.ValidRotation(frame.Rotation) {
		return nil, fmt.Errorf("invalid rotation %d", frame.Rotation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, iface.ErrAlreadyReleased
	}

	gray, err := uprightGray(frame)
	if err != nil {
		return nil, err
	}
	defer gray.Close()
	gocv.EqualizeHist(gray, &gray)

	side := int(c.minRatio * float64(gray.Cols()))
	rects := c.classifier.DetectMultiScaleWithParams(
		gray,
		1.1,
		3,
		0,
		image.Pt(side, side),
		image.Point{},
	)
	faces := make([]iface.Face, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, iface.Face{Box: iface.Box{
			Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y,
		}})
	}
	c.log.Debug("Cascade detection", zap.Int("faces", len(faces)), zap.Int("rotation", frame.Rotation))
	return faces, nil
}

func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return iface.ErrAlreadyReleased
	}
	c.closed = true
	return c.classifier.Close()
}
