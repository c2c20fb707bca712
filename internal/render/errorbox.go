package render

import (
	"image"

	"github.com/rook-computer/inkpanel/internal/palette"
)

const (
	errorPad   = 6
	errorLabel = "Error"
)

// DrawError replaces rect's content with an error box: a framed background,
// an "Error" label in the attention colour and message wrapped to the box
// width. Lines that do not fit vertically are dropped. It returns the lines
// that were drawn.
func DrawError(dst *image.Paletted, rect image.Rectangle, message string, faces *FaceSet, pal *palette.Palette) []string {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return nil
	}
	bg := pal.IndexOr("white", palette.White)
	fg := pal.IndexOr("black", palette.Black)
	attention := pal.IndexOr("red", palette.Red)

	palette.Fill(dst, rect, bg)
	outline(dst, rect, fg)

	sub := faces.Face(FaceSub)
	body := faces.Face(FaceBody)
	drawString(dst, sub, errorLabel, rect.Min.X+errorPad, rect.Min.Y+errorPad, attention)

	_, titleH := Measure(errorLabel, sub)
	_, lineH := Measure("Ag", body)
	lineH += 2
	y := rect.Min.Y + errorPad + titleH + 4
	maxY := rect.Max.Y - 1 - errorPad
	maxWidth := rect.Dx() - 1 - 2*errorPad

	var drawn []string
	for _, line := range Wrap(message, maxWidth, body) {
		if y+lineH > maxY {
			break
		}
		drawString(dst, body, line, rect.Min.X+errorPad, y, fg)
		drawn = append(drawn, line)
		y += lineH
	}
	return drawn
}

// outline draws a one pixel frame along rect's edges.
func outline(dst *image.Paletted, rect image.Rectangle, idx uint8) {
	palette.Fill(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1), idx)
	palette.Fill(dst, image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y), idx)
	palette.Fill(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+1, rect.Max.Y), idx)
	palette.Fill(dst, image.Rect(rect.Max.X-1, rect.Min.Y, rect.Max.X, rect.Max.Y), idx)
}
