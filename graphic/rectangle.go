// Package graphic draws face overlay graphics and renders the face region
// bitmap that is fed to the stability model.
package graphic

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	iface "FaceStabilityServer/interface"
)

const (
	StrokeWidth = 3.0
	// LabelMargin is the distance between the box top edge and the label baseline.
	LabelMargin = 10
	// MaxRegionPixels bounds the region buffer; larger regions are rejected.
	MaxRegionPixels = 4096 * 4096
)

var BoxColor = color.NRGBA{R: 0, G: 255, B: 0, A: 255}

// InvalidRegionError reports a mapped rectangle that collapses to a
// non-positive pixel width or height, or one too large to render.
type InvalidRegionError struct {
	Width, Height int
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("invalid face region %dx%d", e.Width, e.Height)
}

// Rectangle is the overlay graphic of one detected face: a box outline and an
// optional label above it.
type Rectangle struct {
	face  iface.Face
	rect  iface.MappedRect
	label iface.Label
}

func NewRectangle(face iface.Face, rect iface.MappedRect) *Rectangle {
	return &Rectangle{face: face, rect: rect}
}

func (r *Rectangle) SetLabel(label iface.Label) { r.label = label }

func (r *Rectangle) Label() iface.Label { return r.label }

func (r *Rectangle) Rect() iface.MappedRect { return r.rect }

func (r *Rectangle) Describe() iface.GraphicInfo {
	return iface.GraphicInfo{Rect: r.rect, Label: r.label, TrackingID: r.face.TrackingID}
}

// Draw paints the outline at its overlay position and, once a label is set,
// the label text. Everything outside dst is clipped.
func (r *Rectangle) Draw(dst draw.Image) {
	strokeRect(dst, r.rect, StrokeWidth, BoxColor)
	if r.label != "" {
		drawLabel(dst, string(r.label), r.rect.Left, r.rect.Top-LabelMargin, BoxColor)
	}
}

// Bitmap renders the graphic into a transparent buffer of
// ceil(width) x ceil(height). The graphic keeps its overlay coordinates, so
// only the part overlapping the buffer origin is visible.
func (r *Rectangle) Bitmap() (*image.RGBA, error) {
	wf := math.Ceil(r.rect.Width())
	hf := math.Ceil(r.rect.Height())
	// NaN fails both comparisons
	if !(wf > 0 && hf > 0) || wf*hf > MaxRegionPixels {
		return nil, &InvalidRegionError{Width: clampInt(wf), Height: clampInt(hf)}
	}
	img := image.NewRGBA(image.Rect(0, 0, int(wf), int(hf)))
	r.Draw(img)
	return img, nil
}

func clampInt(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// Extract renders the unlabeled region bitmap for face at rect.
func Extract(face iface.Face, rect iface.MappedRect) (*image.RGBA, error) {
	return NewRectangle(face, rect).Bitmap()
}

// strokeRect draws four bands of the given width centred on the edges of rect.
func strokeRect(dst draw.Image, rect iface.MappedRect, width float64, c color.Color) {
	half := width / 2
	px := func(v float64) int { return int(math.Round(v)) }
	outerL, outerT := px(rect.Left-half), px(rect.Top-half)
	outerR, outerB := px(rect.Right+half), px(rect.Bottom+half)
	src := image.NewUniform(c)
	bands := []image.Rectangle{
		image.Rect(outerL, outerT, outerR, px(rect.Top+half)),
		image.Rect(outerL, px(rect.Bottom-half), outerR, outerB),
		image.Rect(outerL, outerT, px(rect.Left+half), outerB),
		image.Rect(px(rect.Right-half), outerT, outerR, outerB),
	}
	for _, b := range bands {
		draw.Draw(dst, b.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}
