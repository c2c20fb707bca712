package layout

import (
	"errors"
	"fmt"
	"image"
)

// ErrInvalidLayout is returned when a grid cannot place any tile.
var ErrInvalidLayout = errors.New("invalid layout")

// TileRect is a tile's position in canvas pixels. All four edges are
// inclusive.
type TileRect struct {
	Left, Top, Right, Bottom int
}

func (r TileRect) Width() int  { return r.Right - r.Left + 1 }
func (r TileRect) Height() int { return r.Bottom - r.Top + 1 }

// Image converts r to a half-open image.Rectangle.
func (r TileRect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right+1, r.Bottom+1)
}

func (r TileRect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// AreaOf converts a half-open rectangle into an inclusive TileRect.
func AreaOf(rect image.Rectangle) TileRect {
	return TileRect{Left: rect.Min.X, Top: rect.Min.Y, Right: rect.Max.X - 1, Bottom: rect.Max.Y - 1}
}

// TileSpec places one plugin on the grid.
type TileSpec struct {
	Plugin  string
	Col     int
	Row     int
	ColSpan int
	RowSpan int
	Config  map[string]any
}

// Placement pairs a tile with its resolved rectangle.
type Placement struct {
	Spec TileSpec
	Rect TileRect
}

// Grid holds the derived cell size for an area.
//
// Cell sizes use integer division and the remainder is not distributed, so
// the last column and row may end a few pixels short of the area edge.
type Grid struct {
	Area      TileRect
	Cols      int
	Rows      int
	Gutter    int
	ColWidth  int
	RowHeight int
}

// NewGrid computes cell sizes for area. A negative gutter is treated as 0.
func NewGrid(area TileRect, cols, rows, gutter int) (Grid, error) {
	if cols <= 0 || rows <= 0 {
		return Grid{}, fmt.Errorf("%w: %d columns x %d rows", ErrInvalidLayout, cols, rows)
	}
	if gutter < 0 {
		gutter = 0
	}
	width := area.Right - area.Left
	height := area.Bottom - area.Top
	return Grid{
		Area:      area,
		Cols:      cols,
		Rows:      rows,
		Gutter:    gutter,
		ColWidth:  floorDiv(width-gutter*(cols-1), cols),
		RowHeight: floorDiv(height-gutter*(rows-1), rows),
	}, nil
}

// ColumnX is the left edge of column i. Indices past the last column keep
// the same pitch, so they land outside the area.
func (g Grid) ColumnX(i int) int { return g.Area.Left + i*(g.ColWidth+g.Gutter) }

// RowY is the top edge of row i.
func (g Grid) RowY(i int) int { return g.Area.Top + i*(g.RowHeight+g.Gutter) }

// Rect resolves a single tile. Spans below 1 count as 1.
func (g Grid) Rect(spec TileSpec) TileRect {
	colSpan := max(spec.ColSpan, 1)
	rowSpan := max(spec.RowSpan, 1)
	left := g.ColumnX(spec.Col)
	top := g.RowY(spec.Row)
	return TileRect{
		Left:   left,
		Top:    top,
		Right:  left + g.ColWidth*colSpan + g.Gutter*(colSpan-1),
		Bottom: top + g.RowHeight*rowSpan + g.Gutter*(rowSpan-1),
	}
}

// Resolve places every tile on a cols x rows grid inside area, in
// declaration order. Column and row indices are not range checked.
func Resolve(area TileRect, cols, rows, gutter int, tiles []TileSpec) ([]Placement, error) {
	grid, err := NewGrid(area, cols, rows, gutter)
	if err != nil {
		return nil, err
	}
	out := make([]Placement, 0, len(tiles))
	for _, spec := range tiles {
		out = append(out, Placement{Spec: spec, Rect: grid.Rect(spec)})
	}
	return out, nil
}

// Overlaps returns index pairs (i < j) of placements whose rectangles
// intersect. Later tiles paint over earlier ones.
func Overlaps(placements []Placement) [][2]int {
	var pairs [][2]int
	for i := range placements {
		a := placements[i].Rect.Image()
		for j := i + 1; j < len(placements); j++ {
			if a.Overlaps(placements[j].Rect.Image()) {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
