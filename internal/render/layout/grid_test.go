package layout

import (
	"errors"
	"image"
	"reflect"
	"testing"
)

var dashboardArea = TileRect{Left: 0, Top: 0, Right: 799, Bottom: 479}

func TestResolveRowSpanScenario(t *testing.T) {
	got, err := Resolve(dashboardArea, 2, 2, 12, []TileSpec{{Plugin: "a", Col: 0, Row: 0, ColSpan: 1, RowSpan: 2}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// colW = (799-12)/2 = 393, rowH = (479-12)/2 = 233.
	want := TileRect{Left: 0, Top: 0, Right: 393, Bottom: 478}
	if got[0].Rect != want {
		t.Fatalf("rect = %v, want %v", got[0].Rect, want)
	}
	if got[0].Rect.Height() != 479 {
		t.Fatalf("height = %d, want 479", got[0].Rect.Height())
	}
}

func TestResolveSpans(t *testing.T) {
	tests := []struct {
		name string
		spec TileSpec
		want TileRect
	}{
		{"single cell", TileSpec{Col: 0, Row: 0, ColSpan: 1, RowSpan: 1}, TileRect{0, 0, 393, 233}},
		{"second column", TileSpec{Col: 1, Row: 0, ColSpan: 1, RowSpan: 1}, TileRect{405, 0, 798, 233}},
		{"second row", TileSpec{Col: 0, Row: 1, ColSpan: 1, RowSpan: 1}, TileRect{0, 245, 393, 478}},
		{"full width", TileSpec{Col: 0, Row: 0, ColSpan: 2, RowSpan: 1}, TileRect{0, 0, 798, 233}},
		{"zero span counts as one", TileSpec{Col: 1, Row: 1}, TileRect{405, 245, 798, 478}},
		{"past last column", TileSpec{Col: 2, Row: 0, ColSpan: 1, RowSpan: 1}, TileRect{810, 0, 1203, 233}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(dashboardArea, 2, 2, 12, []TileSpec{tt.spec})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got[0].Rect != tt.want {
				t.Fatalf("rect = %v, want %v", got[0].Rect, tt.want)
			}
		})
	}
}

func TestResolveWithOffsetArea(t *testing.T) {
	// The default safe area on an 800x480 panel.
	area := TileRect{Left: 60, Top: 35, Right: 744, Bottom: 469}
	got, err := Resolve(area, 2, 2, 12, []TileSpec{
		{Plugin: "transit", Col: 0, Row: 0, ColSpan: 1, RowSpan: 1},
		{Plugin: "weather", Col: 1, Row: 0, ColSpan: 1, RowSpan: 1},
		{Plugin: "transit", Col: 0, Row: 1, ColSpan: 2, RowSpan: 1},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// width = 684, colW = 336; height = 434, rowH = 211.
	want := []TileRect{
		{60, 35, 396, 246},
		{408, 35, 744, 246},
		{60, 258, 744, 469},
	}
	for i, w := range want {
		if got[i].Rect != w {
			t.Errorf("tile %d = %v, want %v", i, got[i].Rect, w)
		}
	}
	if got[2].Spec.Plugin != "transit" {
		t.Fatalf("spec not carried through: %+v", got[2].Spec)
	}
}

func TestResolveDeterministic(t *testing.T) {
	tiles := []TileSpec{{Col: 0, Row: 0, ColSpan: 1, RowSpan: 2}, {Col: 1, Row: 1, ColSpan: 1, RowSpan: 1}}
	first, err := Resolve(dashboardArea, 3, 2, 7, tiles)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := Resolve(dashboardArea, 3, 2, 7, tiles)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
}

func TestResolveInvalid(t *testing.T) {
	for _, dims := range [][2]int{{0, 2}, {2, 0}, {-1, 3}} {
		_, err := Resolve(dashboardArea, dims[0], dims[1], 12, nil)
		if !errors.Is(err, ErrInvalidLayout) {
			t.Errorf("Resolve(%d,%d) err = %v, want ErrInvalidLayout", dims[0], dims[1], err)
		}
	}
}

func TestResolveDegenerateCells(t *testing.T) {
	got, err := Resolve(TileRect{0, 0, 9, 9}, 4, 1, 12, []TileSpec{{Col: 0, Row: 0, ColSpan: 1, RowSpan: 1}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if w := got[0].Rect.Width(); w > 0 {
		t.Fatalf("width = %d, want a non-positive width", w)
	}
}

func TestOverlaps(t *testing.T) {
	placements, _ := Resolve(dashboardArea, 2, 2, 12, []TileSpec{
		{Col: 0, Row: 0, ColSpan: 2, RowSpan: 1},
		{Col: 1, Row: 0, ColSpan: 1, RowSpan: 1},
		{Col: 0, Row: 1, ColSpan: 1, RowSpan: 1},
	})
	got := Overlaps(placements)
	want := [][2]int{{0, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Overlaps = %v, want %v", got, want)
	}
}

func TestTileRectImage(t *testing.T) {
	r := TileRect{Left: 2, Top: 3, Right: 5, Bottom: 3}
	if r.Image() != image.Rect(2, 3, 6, 4) {
		t.Fatalf("Image() = %v", r.Image())
	}
	if AreaOf(r.Image()) != r {
		t.Fatalf("AreaOf round trip = %v", AreaOf(r.Image()))
	}
}

func TestSplitAndFit(t *testing.T) {
	rect := image.Rect(0, 0, 100, 40)
	left, right := SplitVertical(rect, 30)
	if left != image.Rect(0, 0, 30, 40) || right != image.Rect(30, 0, 100, 40) {
		t.Fatalf("SplitVertical = %v %v", left, right)
	}
	top, bottom := SplitHorizontal(rect, 100)
	if top != rect || !bottom.Empty() {
		t.Fatalf("SplitHorizontal clamp = %v %v", top, bottom)
	}
	if got := FitSquare(rect); got != image.Rect(30, 0, 70, 40) {
		t.Fatalf("FitSquare = %v", got)
	}
	if got := Inset(rect, 5); got != image.Rect(5, 5, 95, 35) {
		t.Fatalf("Inset = %v", got)
	}
}
