package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render/layout"
)

func fillWith(idx uint8) Renderer {
	return RendererFunc(func(tc *TileContext, bounds image.Rectangle, cfg map[string]any) error {
		tc.Fill(bounds, idx)
		return nil
	})
}

func newTestEngine(reg *Registry, opts ...Option) *Engine {
	return NewEngine(reg, fixedFaces{}, opts...)
}

func cell(plugin string, col, row, colSpan, rowSpan int) layout.TileSpec {
	return layout.TileSpec{Plugin: plugin, Col: col, Row: row, ColSpan: colSpan, RowSpan: rowSpan}
}

func TestRenderUnknownPlugin(t *testing.T) {
	e := newTestEngine(NewRegistry())
	canvas, err := e.Render(context.Background(), Job{Layout: Layout{
		Cols: 2, Rows: 2, Gutter: 12,
		Tiles: []layout.TileSpec{cell("does-not-exist", 0, 0, 1, 1)},
	}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	res := canvas.Tiles[0]
	if res.Status != TileUnknownPlugin {
		t.Fatalf("status = %s, want unknown_plugin", res.Status)
	}
	if !errors.Is(res.Err, ErrUnknownPlugin) {
		t.Fatalf("err = %v, want ErrUnknownPlugin", res.Err)
	}
	if len(res.Lines) == 0 || res.Lines[0] != "Unknown plugin: does-not-exist" {
		t.Fatalf("lines = %q", res.Lines)
	}
	if countIndex(canvas.Image, res.Rect.Image(), palette.Red) == 0 {
		t.Fatalf("error label not visible in the tile region")
	}
}

func TestRenderIsolatesFailures(t *testing.T) {
	reg := NewRegistry()
	reg.Register("ok", fillWith(palette.Blue))
	reg.Register("boom", RendererFunc(func(tc *TileContext, bounds image.Rectangle, cfg map[string]any) error {
		tc.Fill(bounds, palette.Green)
		return errors.New("upstream exploded")
	}))
	reg.Register("panics", RendererFunc(func(*TileContext, image.Rectangle, map[string]any) error {
		var m map[string]int
		m["x"] = 1
		return nil
	}))

	canvas, err := newTestEngine(reg).Render(context.Background(), Job{Layout: Layout{
		Cols: 2, Rows: 2, Gutter: 12,
		Tiles: []layout.TileSpec{
			cell("ok", 0, 0, 1, 1),
			cell("boom", 1, 0, 1, 1),
			cell("panics", 0, 1, 2, 1),
		},
	}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	okTile := canvas.Tiles[0]
	if okTile.Status != TileOK {
		t.Fatalf("ok tile status = %s", okTile.Status)
	}
	okRect := okTile.Rect.Image()
	if got := countIndex(canvas.Image, okRect, palette.Blue); got != okRect.Dx()*okRect.Dy() {
		t.Fatalf("ok tile has %d blue pixels, want all %d", got, okRect.Dx()*okRect.Dy())
	}

	boom := canvas.Tiles[1]
	if boom.Status != TileFailed || boom.Lines[0] != "upstream exploded" {
		t.Fatalf("boom tile = %s %q", boom.Status, boom.Lines)
	}
	if countIndex(canvas.Image, boom.Rect.Image(), palette.Green) != 0 {
		t.Fatalf("partial plugin output left under the error box")
	}

	panicked := canvas.Tiles[2]
	if panicked.Status != TileFailed || !strings.HasPrefix(panicked.Err.Error(), "panic:") {
		t.Fatalf("panicking tile = %s %v", panicked.Status, panicked.Err)
	}
	if len(canvas.Failed()) != 2 {
		t.Fatalf("Failed() = %d tiles, want 2", len(canvas.Failed()))
	}
}

func TestRenderInvalidLayout(t *testing.T) {
	canvas, err := newTestEngine(NewRegistry()).Render(context.Background(), Job{Layout: Layout{Cols: 0, Rows: 2}})
	if !errors.Is(err, layout.ErrInvalidLayout) {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
	if canvas != nil {
		t.Fatalf("canvas returned with an invalid layout")
	}
}

func TestRenderLaterTilesWin(t *testing.T) {
	reg := NewRegistry()
	reg.Register("green", fillWith(palette.Green))
	reg.Register("red", fillWith(palette.Red))

	canvas, err := newTestEngine(reg).Render(context.Background(), Job{Layout: Layout{
		Cols: 1, Rows: 1,
		Tiles: []layout.TileSpec{cell("green", 0, 0, 1, 1), cell("red", 0, 0, 1, 1)},
	}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := canvas.Image.ColorIndexAt(400, 240); got != palette.Red {
		t.Fatalf("overlapped pixel = %d, want red", got)
	}
}

func TestRenderPastesAtMarginsWithBorder(t *testing.T) {
	reg := NewRegistry()
	reg.Register("blank", fillWith(palette.White))
	canvas, err := newTestEngine(reg).Render(context.Background(), Job{
		Margins: DefaultMargins,
		Layout: Layout{
			Cols: 2, Rows: 2, Gutter: 12,
			Border: Border{Width: 1, Style: BorderSolid, Color: "black"},
			Tiles:  []layout.TileSpec{cell("blank", 0, 0, 1, 1)},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := layout.TileRect{Left: 60, Top: 35, Right: 396, Bottom: 246}
	if canvas.Tiles[0].Rect != want {
		t.Fatalf("rect = %v, want %v", canvas.Tiles[0].Rect, want)
	}
	img := canvas.Image
	if img.ColorIndexAt(60, 35) != palette.Black || img.ColorIndexAt(396, 246) != palette.Black {
		t.Fatalf("border corners missing")
	}
	if img.ColorIndexAt(59, 35) != palette.White || img.ColorIndexAt(397, 246) != palette.White {
		t.Fatalf("border drawn outside the tile")
	}
}

func TestRenderSkipsDegenerateAndOffCanvasTiles(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	reg.Register("count", RendererFunc(func(*TileContext, image.Rectangle, map[string]any) error {
		calls++
		return nil
	}))

	e := newTestEngine(reg, WithSize(20, 20))
	canvas, err := e.Render(context.Background(), Job{Layout: Layout{
		Cols: 4, Rows: 1, Gutter: 12,
		Tiles: []layout.TileSpec{cell("count", 0, 0, 1, 1), cell("count", 9, 0, 1, 1)},
	}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if calls != 0 {
		t.Fatalf("plugin invoked %d times", calls)
	}
	if canvas.Tiles[0].Status != TileDegenerate {
		t.Fatalf("tile 0 status = %s, want degenerate", canvas.Tiles[0].Status)
	}
	if canvas.Tiles[1].Status != TileOffCanvas {
		t.Fatalf("tile 1 status = %s, want off_canvas", canvas.Tiles[1].Status)
	}
}

func TestRenderPassesContext(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)
	var got *TileContext
	var gotCfg map[string]any
	reg := NewRegistry()
	reg.Register("recorder", RendererFunc(func(tc *TileContext, bounds image.Rectangle, cfg map[string]any) error {
		got = tc
		gotCfg = cfg
		if bounds.Min != (image.Point{}) {
			return errors.New("bounds not local")
		}
		return nil
	}))

	spec := cell("recorder", 0, 0, 2, 2)
	spec.Config = map[string]any{"city": "Berlin"}
	canvas, err := newTestEngine(reg).Render(context.Background(), Job{
		Preview: true,
		Now:     fixed,
		Layout:  Layout{Cols: 2, Rows: 2, Gutter: 12, Tiles: []layout.TileSpec{spec}},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if canvas.Tiles[0].Status != TileOK {
		t.Fatalf("status = %s (%v)", canvas.Tiles[0].Status, canvas.Tiles[0].Err)
	}
	if !got.Preview || !got.Now.Equal(fixed) {
		t.Fatalf("preview=%v now=%v", got.Preview, got.Now)
	}
	if !got.Grid.Fullscreen() {
		t.Fatalf("grid = %+v, want fullscreen", got.Grid)
	}
	if gotCfg["city"] != "Berlin" {
		t.Fatalf("config not passed through: %v", gotCfg)
	}
}

func TestRenderConcurrentCallsAreIndependent(t *testing.T) {
	reg := NewRegistry()
	reg.Register("blue", fillWith(palette.Blue))
	e := newTestEngine(reg)
	job := Job{Layout: Layout{Cols: 2, Rows: 2, Gutter: 12, Tiles: []layout.TileSpec{cell("blue", 0, 0, 1, 1), cell("nope", 1, 1, 1, 1)}}}

	var wg sync.WaitGroup
	canvases := make([]*Canvas, 8)
	for i := range canvases {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := e.Render(context.Background(), job)
			if err != nil {
				t.Errorf("Render: %v", err)
				return
			}
			canvases[i] = c
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(canvases); i++ {
		if canvases[i] == nil || canvases[i].Image == canvases[0].Image {
			t.Fatalf("render %d shares or lacks a canvas", i)
		}
		if !bytes.Equal(canvases[i].Image.Pix, canvases[0].Image.Pix) {
			t.Fatalf("render %d differs from render 0", i)
		}
	}
}

func TestCanvasPNG(t *testing.T) {
	canvas, err := newTestEngine(NewRegistry()).Render(context.Background(), Job{Layout: Layout{Cols: 1, Rows: 1}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	data, err := canvas.PNG()
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, CanvasWidth, CanvasHeight) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if _, ok := img.(*image.Paletted); !ok {
		t.Fatalf("decoded %T, want *image.Paletted", img)
	}
}
