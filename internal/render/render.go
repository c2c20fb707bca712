package render

import (
	"errors"
	"image"
	"sort"
	"sync"
)

// ErrUnknownPlugin marks a tile whose plugin name has no registered renderer.
var ErrUnknownPlugin = errors.New("unknown plugin")

// Renderer draws one tile. bounds is the tile's rectangle in the local
// coordinates of tc.Surface (origin at 0,0). cfg is the tile's config map as
// given in the layout document and must not be modified.
//
// A returned error or a panic is shown in place of the tile's content.
type Renderer interface {
	Render(tc *TileContext, bounds image.Rectangle, cfg map[string]any) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(tc *TileContext, bounds image.Rectangle, cfg map[string]any) error

func (f RendererFunc) Render(tc *TileContext, bounds image.Rectangle, cfg map[string]any) error {
	return f(tc, bounds, cfg)
}

// Registry maps plugin names to renderers. It is populated at startup and
// read by every render.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Register adds or replaces the renderer for name.
func (r *Registry) Register(name string, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[name] = renderer
}

func (r *Registry) Lookup(name string) (Renderer, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[name]
	return renderer, ok
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Logger is the component logger used across the rendering packages.
type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(string, string, ...interface{})  {}
func (noopLogger) Errorf(string, string, ...interface{}) {}

type TextAlign int

const (
	TextAlignLeft TextAlign = iota
	TextAlignCenter
	TextAlignRight
)

// TextStyle describes how to render text.
// Coordinates for DrawText use a top-left anchor for Y.
// For X, Align controls how x is interpreted.
type TextStyle struct {
	Face  FaceRole
	Color uint8 // palette index
	Align TextAlign
}

type TextMetrics struct {
	Width      int
	Height     int
	Ascent     int
	Descent    int
	LineHeight int
}

type ScaleMode int

const (
	ScaleModeFit ScaleMode = iota
	ScaleModeFill
	ScaleModeStretch
)
