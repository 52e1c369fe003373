package graphic

import (
	"errors"
	"image"
	"math"
	"testing"

	iface "FaceStabilityServer/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opaqueIn(img *image.RGBA, area image.Rectangle) int {
	n := 0
	area = area.Intersect(img.Bounds())
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if img.RGBAAt(x, y).A != 0 {
				n++
			}
		}
	}
	return n
}

func TestRectangleBitmap(t *testing.T) {
	t.Run("size is ceil of mapped size", func(t *testing.T) {
		img, err := Extract(iface.Face{}, iface.MappedRect{Left: 0, Top: 0, Right: 10.2, Bottom: 20.9})
		require.NoError(t, err)
		assert.Equal(t, 11, img.Bounds().Dx())
		assert.Equal(t, 21, img.Bounds().Dy())
	})

	t.Run("outline drawn at overlay coordinates", func(t *testing.T) {
		img, err := Extract(iface.Face{}, iface.MappedRect{Left: 0, Top: 0, Right: 20, Bottom: 10})
		require.NoError(t, err)
		left := img.RGBAAt(0, 5)
		assert.Equal(t, uint8(0), left.R)
		assert.Equal(t, uint8(255), left.G)
		assert.Equal(t, uint8(255), left.A)
		assert.Equal(t, uint8(0), img.RGBAAt(10, 5).A, "interior stays transparent")
	})

	t.Run("offset rectangle mostly falls outside the buffer", func(t *testing.T) {
		img, err := Extract(iface.Face{}, iface.MappedRect{Left: 100, Top: 100, Right: 130, Bottom: 140})
		require.NoError(t, err)
		assert.Equal(t, 0, opaqueIn(img, img.Bounds()))
	})

	t.Run("zero width", func(t *testing.T) {
		_, err := Extract(iface.Face{}, iface.MappedRect{Left: 5, Top: 0, Right: 5, Bottom: 10})
		var regionErr *InvalidRegionError
		require.True(t, errors.As(err, &regionErr))
		assert.Equal(t, 0, regionErr.Width)
	})

	t.Run("inverted height", func(t *testing.T) {
		_, err := Extract(iface.Face{}, iface.MappedRect{Left: 0, Top: 10, Right: 5, Bottom: 2})
		var regionErr *InvalidRegionError
		assert.True(t, errors.As(err, &regionErr))
	})

	t.Run("oversized region rejected", func(t *testing.T) {
		huge := float64(int64(1) << 40)
		_, err := Extract(iface.Face{}, iface.MappedRect{Right: huge, Bottom: huge})
		var regionErr *InvalidRegionError
		require.True(t, errors.As(err, &regionErr))
		assert.Equal(t, math.MaxInt32, regionErr.Width)

		_, err = Extract(iface.Face{}, iface.MappedRect{Right: 200000, Bottom: 200000})
		assert.True(t, errors.As(err, &regionErr))
	})

	t.Run("non-finite region rejected", func(t *testing.T) {
		_, err := Extract(iface.Face{}, iface.MappedRect{Right: math.NaN(), Bottom: 10})
		var regionErr *InvalidRegionError
		assert.True(t, errors.As(err, &regionErr))
		_, err = Extract(iface.Face{}, iface.MappedRect{Right: math.Inf(1), Bottom: 10})
		assert.True(t, errors.As(err, &regionErr))
	})
}

func TestRectangleLabel(t *testing.T) {
	rect := iface.MappedRect{Left: 20, Top: 80, Right: 120, Bottom: 180}
	above := image.Rect(0, 0, 200, 70)

	g := NewRectangle(iface.Face{}, rect)
	canvas := image.NewRGBA(image.Rect(0, 0, 200, 200))
	g.Draw(canvas)
	assert.Equal(t, 0, opaqueIn(canvas, above), "no text before a label is set")

	g.SetLabel(iface.Unstable)
	canvas = image.NewRGBA(image.Rect(0, 0, 200, 200))
	g.Draw(canvas)
	assert.Greater(t, opaqueIn(canvas, above), 0)
	assert.Equal(t, iface.Unstable, g.Describe().Label)
}

func TestDescribeCarriesTrackingID(t *testing.T) {
	id := 7
	g := NewRectangle(iface.Face{TrackingID: &id}, iface.MappedRect{Right: 1, Bottom: 1})
	info := g.Describe()
	if assert.NotNil(t, info.TrackingID) {
		assert.Equal(t, 7, *info.TrackingID)
	}
}
