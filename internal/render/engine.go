package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render/layout"
)

// Layout is the grid and decoration for one dashboard.
type Layout struct {
	Cols   int
	Rows   int
	Gutter int
	Border Border
	Tiles  []layout.TileSpec
}

// Job is one render request.
type Job struct {
	Layout  Layout
	Margins Margins
	// Preview selects stub data in plugins that support it.
	Preview bool
	// Now overrides the render timestamp; zero means the engine clock.
	Now time.Time
}

type TileStatus int

const (
	TileOK TileStatus = iota
	TileUnknownPlugin
	TileFailed
	TileDegenerate
	TileOffCanvas
)

func (s TileStatus) String() string {
	switch s {
	case TileOK:
		return "ok"
	case TileUnknownPlugin:
		return "unknown_plugin"
	case TileFailed:
		return "failed"
	case TileDegenerate:
		return "degenerate"
	case TileOffCanvas:
		return "off_canvas"
	}
	return fmt.Sprintf("TileStatus(%d)", int(s))
}

// TileResult records what happened to one tile.
type TileResult struct {
	Index  int
	Plugin string
	Rect   layout.TileRect
	Status TileStatus
	// Err is set for unknown plugins and failed renders.
	Err error
	// Lines holds the error box text that was drawn, if any.
	Lines []string
}

// Canvas is a finished render.
type Canvas struct {
	Image *image.Paletted
	Tiles []TileResult
}

// EncodePNG writes the canvas as an indexed PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return png.Encode(w, c.Image)
}

func (c *Canvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Failed returns the results of tiles that show an error box.
func (c *Canvas) Failed() []TileResult {
	var out []TileResult
	for _, t := range c.Tiles {
		if t.Status == TileUnknownPlugin || t.Status == TileFailed {
			out = append(out, t)
		}
	}
	return out
}

// Engine composes tiles into a canvas. It holds no per-render state, so one
// Engine may serve concurrent renders.
type Engine struct {
	registry *Registry
	faces    FaceSource
	palette  *palette.Palette
	width    int
	height   int
	logger   Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithPalette(p *palette.Palette) Option { return func(e *Engine) { e.palette = p } }
func WithSize(w, h int) Option              { return func(e *Engine) { e.width, e.height = w, h } }
func WithLogger(l Logger) Option            { return func(e *Engine) { e.logger = l } }
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(registry *Registry, faces FaceSource, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		faces:    faces,
		palette:  palette.Default(),
		width:    CanvasWidth,
		height:   CanvasHeight,
		logger:   noopLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.faces == nil {
		e.faces = BasicFonts()
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	return e
}

func (e *Engine) Size() (int, int)          { return e.width, e.height }
func (e *Engine) Palette() *palette.Palette { return e.palette }
func (e *Engine) Registry() *Registry       { return e.registry }

// Render draws every tile of job in declaration order and returns the
// canvas. Only layout.ErrInvalidLayout is returned; tile failures become
// error boxes and are reported in Canvas.Tiles.
func (e *Engine) Render(ctx context.Context, job Job) (*Canvas, error) {
	lay := job.Layout
	area := job.Margins.Area(e.width, e.height)
	placements, err := layout.Resolve(area, lay.Cols, lay.Rows, lay.Gutter, lay.Tiles)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	for _, pair := range layout.Overlaps(placements) {
		e.logger.Infof("render", "tile %d overlaps tile %d, tile %d is drawn on top", pair[0], pair[1], pair[1])
	}

	now := job.Now
	if now.IsZero() {
		now = e.now()
	}
	faces := e.faces.NewFaceSet()
	defer faces.Close()

	canvas := e.palette.NewSurface(e.width, e.height, e.palette.IndexOr("white", palette.White))
	out := &Canvas{Image: canvas, Tiles: make([]TileResult, 0, len(placements))}
	for i, p := range placements {
		tc := &TileContext{
			Context: ctx,
			Faces:   faces,
			Palette: e.palette,
			Now:     now,
			Preview: job.Preview,
			Grid:    GridInfo{Cols: lay.Cols, Rows: lay.Rows, ColSpan: max(p.Spec.ColSpan, 1), RowSpan: max(p.Spec.RowSpan, 1)},
			Logger:  e.logger,
		}
		res := e.renderTile(canvas, i, p, lay.Border, tc)
		switch res.Status {
		case TileOK:
		case TileUnknownPlugin, TileFailed:
			e.logger.Errorf("render", "tile %d (%s) at %v: %v", i, res.Plugin, res.Rect, res.Err)
		default:
			e.logger.Infof("render", "tile %d (%s) at %v skipped: %s", i, res.Plugin, res.Rect, res.Status)
		}
		out.Tiles = append(out.Tiles, res)
	}
	return out, nil
}

func (e *Engine) renderTile(canvas *image.Paletted, index int, p layout.Placement, border Border, tc *TileContext) TileResult {
	res := TileResult{Index: index, Plugin: p.Spec.Plugin, Rect: p.Rect, Status: TileOK}

	w, h := p.Rect.Width(), p.Rect.Height()
	degenerate := w <= 0 || h <= 0
	w, h = max(w, 1), max(h, 1)
	origin := image.Pt(p.Rect.Left, p.Rect.Top)
	dest := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}
	if !dest.Overlaps(canvas.Bounds()) {
		res.Status = TileOffCanvas
		return res
	}

	surface := e.palette.NewSurface(w, h, e.palette.IndexOr("white", palette.White))
	if degenerate {
		res.Status = TileDegenerate
		palette.Paste(canvas, surface, origin)
		return res
	}

	tc.Surface = surface
	tc.Bounds = surface.Bounds()
	renderer, ok := e.registry.Lookup(p.Spec.Plugin)
	if !ok {
		res.Status = TileUnknownPlugin
		res.Err = fmt.Errorf("%w: %s", ErrUnknownPlugin, p.Spec.Plugin)
		res.Lines = DrawError(surface, tc.Bounds, "Unknown plugin: "+p.Spec.Plugin, tc.Faces, e.palette)
	} else if err := invoke(renderer, tc, p.Spec.Config); err != nil {
		res.Status = TileFailed
		res.Err = err
		res.Lines = DrawError(surface, tc.Bounds, err.Error(), tc.Faces, e.palette)
	}

	DrawBorder(surface, tc.Bounds, border, e.palette)
	palette.Paste(canvas, surface, origin)
	return res
}

// invoke runs a renderer, turning a panic into an error.
func invoke(r Renderer, tc *TileContext, cfg map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	if cfg == nil {
		cfg = map[string]any{}
	}
	return r.Render(tc, tc.Bounds, cfg)
}
