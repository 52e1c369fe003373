package graphic

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const TextSize = 40

var (
	faceOnce  sync.Once
	labelFace font.Face
)

func loadFace() font.Face {
	faceOnce.Do(func() {
		labelFace = basicfont.Face7x13
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    TextSize,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return
		}
		labelFace = face
	})
	return labelFace
}

// drawLabel draws text with its baseline starting at (x, y).
func drawLabel(dst draw.Image, text string, x, y float64, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: loadFace(),
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}
	d.DrawString(text)
}
