package render

import (
	"image"
	"math"

	"github.com/rook-computer/inkpanel/internal/palette"
)

type BorderStyle string

const (
	BorderSolid  BorderStyle = "solid"
	BorderDotted BorderStyle = "dotted"
	BorderNone   BorderStyle = "none"
)

const defaultDotGap = 4

// Border decorates every tile of a layout.
type Border struct {
	Width  int
	Radius int
	Style  BorderStyle
	Color  string
	// Dot is the dotted style's square size; 0 means the stroke width.
	Dot int
	// Gap is the spacing between dots; 0 means 4px.
	Gap int
}

// DrawBorder draws b inside rect on dst. Width and radius are clamped to
// half of rect's shorter side, and nothing is written outside rect.
func DrawBorder(dst *image.Paletted, rect image.Rectangle, b Border, pal *palette.Palette) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() || b.Width <= 0 || b.Style == BorderNone {
		return
	}
	limit := max(min(rect.Dx(), rect.Dy())/2, 1)
	width := min(b.Width, limit)
	radius := min(max(b.Radius, 0), limit)
	idx := pal.IndexOr(b.Color, palette.Black)

	if b.Style == BorderDotted {
		drawDottedBorder(dst, rect, width, radius, b.Dot, b.Gap, idx)
		return
	}
	drawSolidBorder(dst, rect, width, radius, idx)
}

// drawSolidBorder fills the ring between the outer rounded rectangle and the
// same shape inset by width. Pixels are tested at their centres.
func drawSolidBorder(dst *image.Paletted, rect image.Rectangle, width, radius int, idx uint8) {
	outer := roundRect{
		x0: float64(rect.Min.X), y0: float64(rect.Min.Y),
		x1: float64(rect.Max.X), y1: float64(rect.Max.Y),
		r: float64(radius),
	}
	inner := roundRect{
		x0: outer.x0 + float64(width), y0: outer.y0 + float64(width),
		x1: outer.x1 - float64(width), y1: outer.y1 - float64(width),
		r: math.Max(float64(radius-width), 0),
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			if outer.contains(px, py) && !inner.contains(px, py) {
				dst.SetColorIndex(x, y, idx)
			}
		}
	}
}

// drawDottedBorder walks the straight edges and then each corner arc,
// placing square dots. Arcs advance by (dot+gap)/radius radians so dots on
// curves are spaced like dots on edges.
func drawDottedBorder(dst *image.Paletted, rect image.Rectangle, width, radius, dot, gap int, idx uint8) {
	if dot <= 0 {
		dot = width
	}
	dot = min(dot, max(min(rect.Dx(), rect.Dy()), 1))
	if gap <= 0 {
		gap = defaultDotGap
	}
	step := dot + gap

	// Dots are anchored by their top-left corner inside this box, which
	// keeps every dot within rect.
	x0, y0 := rect.Min.X, rect.Min.Y
	x1, y1 := rect.Max.X-dot, rect.Max.Y-dot
	r := min(radius, (x1-x0)/2, (y1-y0)/2)
	if r < 0 {
		r = 0
	}

	square := func(x, y int) {
		palette.Fill(dst, image.Rect(x, y, x+dot, y+dot).Intersect(rect), idx)
	}

	for x := x0 + r; x <= x1-r; x += step {
		square(x, y0)
		square(x, y1)
	}
	for y := y0 + r; y <= y1-r; y += step {
		square(x0, y)
		square(x1, y)
	}
	if r == 0 {
		return
	}

	angleStep := float64(step) / float64(r)
	corners := []struct {
		cx, cy int
		start  float64
	}{
		{x0 + r, y0 + r, math.Pi},
		{x1 - r, y0 + r, 1.5 * math.Pi},
		{x1 - r, y1 - r, 0},
		{x0 + r, y1 - r, 0.5 * math.Pi},
	}
	for _, c := range corners {
		end := c.start + math.Pi/2
		for a := c.start; a <= end+1e-9; a += angleStep {
			x := c.cx + int(math.Round(math.Cos(a)*float64(r)))
			y := c.cy + int(math.Round(math.Sin(a)*float64(r)))
			square(x, y)
		}
	}
}

type roundRect struct {
	x0, y0, x1, y1 float64
	r              float64
}

func (rr roundRect) contains(x, y float64) bool {
	if rr.x1 <= rr.x0 || rr.y1 <= rr.y0 {
		return false
	}
	if x < rr.x0 || x > rr.x1 || y < rr.y0 || y > rr.y1 {
		return false
	}
	if rr.r <= 0 {
		return true
	}
	cx := math.Min(math.Max(x, rr.x0+rr.r), rr.x1-rr.r)
	cy := math.Min(math.Max(y, rr.y0+rr.r), rr.y1-rr.r)
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= rr.r*rr.r
}
