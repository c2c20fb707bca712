package render

import (
	"context"
	"image"
	"time"

	"github.com/rook-computer/inkpanel/internal/palette"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
)

// GridInfo describes the grid a tile was placed on.
type GridInfo struct {
	Cols    int
	Rows    int
	ColSpan int
	RowSpan int
}

// Fullscreen reports whether the tile covers the whole grid.
func (g GridInfo) Fullscreen() bool {
	return g.ColSpan >= g.Cols && g.RowSpan >= g.Rows
}

// TileContext is handed to a Renderer for exactly one tile. The surface is
// owned by the engine and pasted onto the canvas after the renderer returns.
type TileContext struct {
	// Context carries the caller's deadline for plugins that do I/O.
	Context context.Context
	Surface *image.Paletted
	Bounds  image.Rectangle
	Faces   *FaceSet
	Palette *palette.Palette
	Now     time.Time
	// Preview asks plugins to use stub data instead of live sources.
	Preview bool
	Grid    GridInfo
	Logger  Logger
}

// Size returns the tile size in pixels.
func (tc *TileContext) Size() (width int, height int) {
	return tc.Bounds.Dx(), tc.Bounds.Dy()
}

// Ctx returns the tile's context, never nil.
func (tc *TileContext) Ctx() context.Context {
	if tc.Context == nil {
		return context.Background()
	}
	return tc.Context
}

// Log returns the tile's logger, never nil.
func (tc *TileContext) Log() Logger {
	if tc.Logger == nil {
		return noopLogger{}
	}
	return tc.Logger
}

// Color resolves a palette colour name, returning fallback when unknown.
func (tc *TileContext) Color(name string, fallback uint8) uint8 {
	return tc.Palette.IndexOr(name, fallback)
}

func (tc *TileContext) Face(role FaceRole) font.Face { return tc.Faces.Face(role) }

func (tc *TileContext) FillBackground() {
	palette.Fill(tc.Surface, tc.Bounds, tc.Palette.IndexOr("white", palette.White))
}

// Fill paints r (clipped to the tile) with palette index idx.
func (tc *TileContext) Fill(r image.Rectangle, idx uint8) {
	palette.Fill(tc.Surface, r.Intersect(tc.Bounds), idx)
}

// Outline draws a one pixel frame along r.
func (tc *TileContext) Outline(r image.Rectangle, idx uint8) {
	outline(tc.Surface, r.Intersect(tc.Bounds), idx)
}

// HLine draws a horizontal line from x0 to x1 inclusive.
func (tc *TileContext) HLine(x0, x1, y, thickness int, idx uint8) {
	tc.Fill(image.Rect(min(x0, x1), y, max(x0, x1)+1, y+max(thickness, 1)), idx)
}

// VLine draws a vertical line from y0 to y1 inclusive.
func (tc *TileContext) VLine(x, y0, y1, thickness int, idx uint8) {
	tc.Fill(image.Rect(x, min(y0, y1), x+max(thickness, 1), max(y0, y1)+1), idx)
}

func (tc *TileContext) MeasureText(text string, style TextStyle) TextMetrics {
	return Metrics(text, tc.Face(style.Face))
}

// DrawText draws a single line of text and returns its metrics. y is the top
// of the line; x is the left edge, centre or right edge depending on Align.
func (tc *TileContext) DrawText(text string, x, y int, style TextStyle) TextMetrics {
	face := tc.Face(style.Face)
	m := Metrics(text, face)
	switch style.Align {
	case TextAlignCenter:
		x -= m.Width / 2
	case TextAlignRight:
		x -= m.Width
	}
	drawString(tc.Surface, face, text, x, y, style.Color)
	return m
}

// DrawTextFit truncates text to maxWidth before drawing it.
func (tc *TileContext) DrawTextFit(text string, x, y, maxWidth int, style TextStyle) TextMetrics {
	return tc.DrawText(Truncate(text, maxWidth, tc.Face(style.Face)), x, y, style)
}

// ImageSize returns the pixel size of img.
func (tc *TileContext) ImageSize(img image.Image) (width int, height int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// DrawImage places img with its top-left corner at pt. Paletted images that
// share the tile palette are copied as is. Everything else is quantized with
// mode; Nearest respects alpha, Dither flattens onto white first.
func (tc *TileContext) DrawImage(img image.Image, pt image.Point, mode palette.Mode) {
	if p, ok := img.(*image.Paletted); ok && tc.Palette.Owns(p) {
		palette.Paste(tc.Surface, p, pt)
		return
	}
	if mode == palette.Dither {
		b := img.Bounds()
		flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(flat, flat.Bounds(), image.White, image.Point{}, xdraw.Src)
		xdraw.Draw(flat, flat.Bounds(), img, b.Min, xdraw.Over)
		palette.Paste(tc.Surface, tc.Palette.Quantize(flat, palette.Dither), pt)
		return
	}
	tc.Palette.Composite(tc.Surface, img, pt)
}

// DrawImageInRect scales img into r using mode and draws it.
func (tc *TileContext) DrawImageInRect(img image.Image, r image.Rectangle, mode ScaleMode, q palette.Mode) {
	src := img.Bounds()
	if src.Empty() || r.Empty() {
		return
	}
	srcRect := src
	dstSize := r.Size()
	switch mode {
	case ScaleModeFit:
		scale := min(float64(r.Dx())/float64(src.Dx()), float64(r.Dy())/float64(src.Dy()))
		dstSize = image.Pt(max(1, int(float64(src.Dx())*scale)), max(1, int(float64(src.Dy())*scale)))
	case ScaleModeFill:
		scale := max(float64(r.Dx())/float64(src.Dx()), float64(r.Dy())/float64(src.Dy()))
		cw := min(src.Dx(), int(float64(r.Dx())/scale+0.5))
		ch := min(src.Dy(), int(float64(r.Dy())/scale+0.5))
		off := image.Pt((src.Dx()-cw)/2, (src.Dy()-ch)/2)
		srcRect = image.Rectangle{Min: src.Min.Add(off), Max: src.Min.Add(off).Add(image.Pt(cw, ch))}
	}
	scaled := image.NewRGBA(image.Rectangle{Max: dstSize})
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, srcRect, xdraw.Src, nil)
	at := r.Min.Add(image.Pt((r.Dx()-dstSize.X)/2, (r.Dy()-dstSize.Y)/2))
	tc.DrawImage(scaled, at, q)
}
