// Package capture feeds camera frames to the analysis pipeline.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	iface "FaceStabilityServer/interface"

	"gocv.io/x/gocv"
)

// Source produces frames. Next returns io.EOF when the stream ends.
type Source interface {
	Next(ctx context.Context) (iface.Frame, error)
	Close() error
}

type Camera struct {
	mu       sync.Mutex
	device   *gocv.VideoCapture
	mat      gocv.Mat
	rotation int
	closed   bool
}

// OpenCamera opens a capture device by index ("0") or by file/URL.
func OpenCamera(device string, rotation int) (*Camera, error) {
	if !iface.ValidRotation(rotation) {
		return nil, fmt.Errorf("invalid rotation %d", rotation)
	}
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", device, err)
	}
	return &Camera{device: vc, mat: gocv.NewMat(), rotation: rotation}, nil
}

// Next reads one frame. Each frame owns a copy of the pixels.
func (c *Camera) Next(ctx context.Context) (iface.Frame, error) {
	if err := ctx.Err(); err != nil {
		return iface.Frame{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return iface.Frame{}, io.EOF
	}
	if ok := c.device.Read(&c.mat); !ok || c.mat.Empty() {
		return iface.Frame{}, io.EOF
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return iface.Frame{}, err
	}
	return iface.Frame{Image: img, Rotation: c.rotation}, nil
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return iface.ErrAlreadyReleased
	}
	c.closed = true
	return errors.Join(c.mat.Close(), c.device.Close())
}
