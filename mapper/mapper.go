// Package mapper translates detector-space boxes into overlay space.
package mapper

import iface "FaceStabilityServer/interface"

// Map scales box from a source image of sourceWidth x sourceHeight into an
// overlay of overlayWidth x overlayHeight. The two axes are scaled
// independently and the result is not clamped to the overlay.
//
// The source height comes before the source width: callers pass the upright
// (rotation adjusted) dimensions, see ForFrame.
func Map(overlayWidth, overlayHeight int, sourceHeight, sourceWidth float64, box iface.Box) iface.MappedRect {
	scaleX := float64(overlayWidth) / sourceWidth
	scaleY := float64(overlayHeight) / sourceHeight
	return iface.MappedRect{
		Left:   float64(box.Left) * scaleX,
		Top:    float64(box.Top) * scaleY,
		Right:  float64(box.Right) * scaleX,
		Bottom: float64(box.Bottom) * scaleY,
	}
}

// ForFrame maps box from an upright source size, normally Frame.EffectiveSize.
func ForFrame(overlay iface.Size, source iface.Size, box iface.Box) iface.MappedRect {
	return Map(overlay.Width, overlay.Height, float64(source.Height), float64(source.Width), box)
}
