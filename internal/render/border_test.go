package render

import (
	"image"
	"testing"

	"github.com/rook-computer/inkpanel/internal/palette"
)

func TestBorderClampedInsideTile(t *testing.T) {
	pal := palette.Default()
	tile := image.Rect(10, 10, 50, 50)
	for _, style := range []BorderStyle{BorderSolid, BorderDotted} {
		t.Run(string(style), func(t *testing.T) {
			dst := pal.NewSurface(60, 60, palette.White)
			DrawBorder(dst, tile, Border{Width: 1000, Radius: 1000, Style: style, Color: "red"}, pal)

			inside := countIndex(dst, tile, palette.Red)
			total := countIndex(dst, dst.Bounds(), palette.Red)
			if inside == 0 {
				t.Fatalf("no border pixels drawn")
			}
			if total != inside {
				t.Fatalf("%d border pixels outside the tile", total-inside)
			}
		})
	}
}

func TestBorderZeroWidthDrawsNothing(t *testing.T) {
	pal := palette.Default()
	for _, w := range []int{0, -4} {
		dst := pal.NewSurface(20, 20, palette.White)
		DrawBorder(dst, dst.Bounds(), Border{Width: w, Radius: 4, Style: BorderSolid, Color: "black"}, pal)
		if n := countIndex(dst, dst.Bounds(), palette.Black); n != 0 {
			t.Fatalf("width %d drew %d pixels", w, n)
		}
	}
}

func TestSolidBorderSquareCorners(t *testing.T) {
	pal := palette.Default()
	dst := pal.NewSurface(5, 4, palette.White)
	DrawBorder(dst, dst.Bounds(), Border{Width: 1, Style: BorderSolid, Color: "black"}, pal)

	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			edge := x == 0 || y == 0 || x == 4 || y == 3
			got := dst.ColorIndexAt(x, y) == palette.Black
			if got != edge {
				t.Errorf("(%d,%d) black=%v, want %v", x, y, got, edge)
			}
		}
	}
}

func TestSolidBorderRoundedCornerIsClear(t *testing.T) {
	pal := palette.Default()
	dst := pal.NewSurface(40, 30, palette.White)
	DrawBorder(dst, dst.Bounds(), Border{Width: 2, Radius: 10, Style: BorderSolid, Color: "blue"}, pal)

	if dst.ColorIndexAt(0, 0) != palette.White {
		t.Fatalf("corner pixel painted on a rounded border")
	}
	if dst.ColorIndexAt(20, 0) != palette.Blue || dst.ColorIndexAt(20, 1) != palette.Blue {
		t.Fatalf("top edge not two pixels thick")
	}
	if dst.ColorIndexAt(20, 2) != palette.White {
		t.Fatalf("top edge thicker than stroke width")
	}
	if dst.ColorIndexAt(20, 15) != palette.White {
		t.Fatalf("interior painted")
	}
}

func TestDottedBorderLeavesGaps(t *testing.T) {
	pal := palette.Default()
	dst := pal.NewSurface(80, 40, palette.White)
	DrawBorder(dst, dst.Bounds(), Border{Width: 2, Radius: 8, Style: BorderDotted, Color: "black", Gap: 4}, pal)

	top := countIndex(dst, image.Rect(0, 0, 80, 1), palette.Black)
	if top == 0 || top == 80 {
		t.Fatalf("top row has %d black pixels, want dots with gaps", top)
	}
	for _, pt := range []image.Point{{0, 20}, {79, 20}} {
		row := countIndex(dst, image.Rect(pt.X, 0, pt.X+1, 40), palette.Black)
		if row == 0 {
			t.Fatalf("no dots on the side at x=%d", pt.X)
		}
	}
}
