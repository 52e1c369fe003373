// Package tensor converts face region bitmaps into stability model input.
package tensor

import (
	"image"

	iface "FaceStabilityServer/interface"

	xdraw "golang.org/x/image/draw"
)

// Resize stretches src to a TensorSize square with bilinear interpolation.
// The aspect ratio is not preserved.
func Resize(src image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, iface.TensorSize, iface.TensorSize))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// ToTensor resizes src and packs it row by row as R, G, B floats divided by
// 255. Alpha is ignored.
func ToTensor(src image.Image) iface.InputTensor {
	img := Resize(src)
	t := iface.NewInputTensor()
	for y := 0; y < iface.TensorSize; y++ {
		for x := 0; x < iface.TensorSize; x++ {
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+3 : i+3]
			t.Data = append(t.Data,
				float32(p[0])/255.0,
				float32(p[1])/255.0,
				float32(p[2])/255.0,
			)
		}
	}
	return t
}
