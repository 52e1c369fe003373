package iface

import (
	"encoding/binary"
	"errors"
	"image"
	"math"
)

// ErrAlreadyReleased is returned by Close on a detector or engine handle that
// has already been released.
var ErrAlreadyReleased = errors.New("resource already released")

const (
	TensorSize     = 48
	TensorChannels = 3
	TensorLen      = TensorSize * TensorSize * TensorChannels
	TensorBytes    = 4 * TensorLen
)

// StabilityThreshold separates Stable from Unstable. A score equal to the
// threshold is Stable.
const StabilityThreshold = 0.5

type Label string

const (
	Stable   Label = "Stable"
	Unstable Label = "Unstable"
)

// Classify maps an inference score onto a label.
func Classify(score float32) Label {
	if score > StabilityThreshold {
		return Unstable
	}
	return Stable
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Frame is one camera buffer. It is borrowed for the duration of a single
// analysis call and must not be retained afterwards.
type Frame struct {
	Image    image.Image
	Rotation int
}

func ValidRotation(deg int) bool {
	switch deg {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// EffectiveSize returns the upright dimensions of the frame: width and height
// are swapped when the buffer is rotated by 90 or 270 degrees.
func (f Frame) EffectiveSize() Size {
	if f.Rotation == 90 || f.Rotation == 270 {
		return Size{Width: f.Height(), Height: f.Width()}
	}
	return Size{Width: f.Width(), Height: f.Height()}
}

// Box is a bounding box in detector-image coordinates. Edges may be negative
// or lie outside the image.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

type Face struct {
	Box        Box  `json:"box"`
	TrackingID *int `json:"trackingId,omitempty"`
}

// MappedRect is a box translated into overlay coordinates.
type MappedRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

func (r MappedRect) Width() float64  { return r.Right - r.Left }
func (r MappedRect) Height() float64 { return r.Bottom - r.Top }

// InputTensor is the fixed 48x48x3 float32 input of the stability model,
// row-major with interleaved R, G, B components in [0,1].
type InputTensor struct {
	Data []float32
}

func NewInputTensor() InputTensor {
	return InputTensor{Data: make([]float32, 0, TensorLen)}
}

// Bytes encodes the tensor in native byte order, four bytes per component.
// This is the buffer the TFLite interpreter copies in.
func (t InputTensor) Bytes() []byte {
	buf := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.NativeEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

type Record struct {
	Label Label   `json:"label"`
	Score float32 `json:"score"`
}

// GraphicInfo describes an overlay graphic without its pixels.
type GraphicInfo struct {
	Rect       MappedRect `json:"rect"`
	Label      Label      `json:"label,omitempty"`
	TrackingID *int       `json:"trackingId,omitempty"`
}
