package render

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// fixedFace is a monospace test face: every rune is 10px wide and the ink
// box is 12px tall, so text widths are exact.
type fixedFace struct{}

const fixedAdvance = 10

func (fixedFace) Close() error { return nil }

func (fixedFace) Glyph(dot fixed.Point26_6, r rune) (image.Rectangle, image.Image, image.Point, fixed.Int26_6, bool) {
	x, y := dot.X.Floor(), dot.Y.Floor()
	dr := image.Rect(x+1, y-8, x+fixedAdvance-1, y)
	return dr, image.Opaque, image.Point{}, fixed.I(fixedAdvance), true
}

func (fixedFace) GlyphBounds(r rune) (fixed.Rectangle26_6, fixed.Int26_6, bool) {
	return fixed.R(0, -10, fixedAdvance, 2), fixed.I(fixedAdvance), true
}

func (fixedFace) GlyphAdvance(r rune) (fixed.Int26_6, bool) { return fixed.I(fixedAdvance), true }

func (fixedFace) Kern(r0, r1 rune) fixed.Int26_6 { return 0 }

func (fixedFace) Metrics() font.Metrics {
	return font.Metrics{Height: fixed.I(12), Ascent: fixed.I(10), Descent: fixed.I(2)}
}

type fixedFaces struct{}

func (fixedFaces) NewFaceSet() *FaceSet {
	f := fixedFace{}
	return &FaceSet{Title: f, Sub: f, Body: f, Temp: f, Meta: f}
}

func testFaceSet() *FaceSet { return fixedFaces{}.NewFaceSet() }

func countIndex(img *image.Paletted, r image.Rectangle, idx uint8) int {
	n := 0
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.ColorIndexAt(x, y) == idx {
				n++
			}
		}
	}
	return n
}
