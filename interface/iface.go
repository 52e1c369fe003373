package iface

import (
	"context"
	"image/draw"
)

// Detector finds faces in a frame. Boxes are reported in the upright
// detector-image space of the frame, in the detector's own order.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Face, error)
	Close() error
}

// Engine evaluates the stability model on one input tensor.
type Engine interface {
	Infer(input InputTensor) (float32, error)
	Close() error
}

// Graphic is something the overlay can draw.
type Graphic interface {
	Draw(dst draw.Image)
	Describe() GraphicInfo
}

// OverlaySink receives the graphics produced for each frame.
type OverlaySink interface {
	Size() Size
	Clear()
	Add(g Graphic)
	RequestRedraw()
}

type Recorder interface {
	Append(label Label, score float32) error
}

type FailureSink interface {
	OnFailure(err error)
}

// FailureFunc adapts a plain function to FailureSink.
type FailureFunc func(err error)

func (f FailureFunc) OnFailure(err error) { f(err) }
