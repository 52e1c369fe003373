package detector

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os"
	"testing"

	iface "FaceStabilityServer/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeMissingFile(t *testing.T) {
	_, err := NewCascade(Config{CascadePath: "testdata/missing.xml"}, nil)
	assert.Error(t, err)
}

func TestUprightGray(t *testing.T) {
	red := image.NewRGBA(image.Rect(0, 0, 4, 2))
	draw.Draw(red, red.Bounds(), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)

	t.Run("luma weights red as red", func(t *testing.T) {
		gray, err := uprightGray(iface.Frame{Image: red})
		require.NoError(t, err)
		defer gray.Close()
		assert.Equal(t, 4, gray.Cols())
		assert.Equal(t, 2, gray.Rows())
		// 0.299 * 255; swapped channels would give 0.114 * 255
		assert.InDelta(t, 76, int(gray.GetUCharAt(0, 0)), 1)
	})

	t.Run("rotated frame is upright", func(t *testing.T) {
		gray, err := uprightGray(iface.Frame{Image: red, Rotation: 90})
		require.NoError(t, err)
		defer gray.Close()
		assert.Equal(t, 2, gray.Cols())
		assert.Equal(t, 4, gray.Rows())
	})
}

// FACE_CASCADE points at an OpenCV haarcascade_frontalface xml.
func TestCascade_All(t *testing.T) {
	path := os.Getenv("FACE_CASCADE")
	if path == "" {
		t.Skip("FACE_CASCADE not set")
	}
	c, err := NewCascade(Config{CascadePath: path}, nil)
	require.NoError(t, err)

	t.Run("Test Detect blank frame", func(t *testing.T) {
		for _, rot := range []int{0, 90, 180, 270} {
			faces, err := c.Detect(context.Background(), iface.Frame{Image: image.NewRGBA(image.Rect(0, 0, 320, 240)), Rotation: rot})
			require.NoError(t, err)
			assert.Empty(t, faces)
		}
	})

	t.Run("Test Detect invalid rotation", func(t *testing.T) {
		_, err := c.Detect(context.Background(), iface.Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), Rotation: 45})
		assert.Error(t, err)
	})

	t.Run("Test Close", func(t *testing.T) {
		require.NoError(t, c.Close())
		assert.ErrorIs(t, c.Close(), iface.ErrAlreadyReleased)
	})
}
