// Package plugins holds the tile renderers that ship with inkpanel.
package plugins

import (
	"sort"
	"time"

	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/source"
)

// Plugin is a tile renderer with the metadata the editor needs.
type Plugin interface {
	render.Renderer
	Name() string
	DisplayName() string
	// Defaults is a fresh copy of the plugin's default config.
	Defaults() map[string]any
	Schema() Schema
}

// Field describes one config key for the editor.
type Field struct {
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Step     float64  `json:"step,omitempty"`
	ItemType string   `json:"itemType,omitempty"`
	Help     string   `json:"help,omitempty"`
	// Target names the field an upload fills in.
	Target string `json:"target,omitempty"`
	// ItemFields describe the keys of each entry of an object list.
	ItemFields []ItemField `json:"itemFields,omitempty"`
}

type ItemField struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Options     []string `json:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// Schema maps config keys to editor fields.
type Schema map[string]Field

func bounds(lo, hi float64) (*float64, *float64) { return &lo, &hi }

func number(label string, lo, hi float64) Field {
	minV, maxV := bounds(lo, hi)
	return Field{Type: "number", Label: label, Min: minV, Max: maxV}
}

func enum(label string, options ...string) Field {
	return Field{Type: "enum", Label: label, Options: options}
}

// Deps are the collaborators plugins draw data from.
type Deps struct {
	Weather  source.WeatherSource
	Transit  source.TransitSource
	Calendar source.CalendarSource
	// Stub replaces live sources when a tile renders in preview mode.
	Stub      source.Stub
	PhotosDir string
	// Location formats clock and departure times; nil means time.Local.
	Location *time.Location
}

func (d Deps) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.Local
}

func (d Deps) weather(preview bool) source.WeatherSource {
	if preview || d.Weather == nil {
		return d.Stub
	}
	return d.Weather
}

func (d Deps) transit(preview bool) source.TransitSource {
	if preview || d.Transit == nil {
		return d.Stub
	}
	return d.Transit
}

func (d Deps) calendar(preview bool) source.CalendarSource {
	if preview || d.Calendar == nil {
		return d.Stub
	}
	return d.Calendar
}

// All returns every built-in plugin wired to deps.
func All(deps Deps) []Plugin {
	return []Plugin{
		&Transit{deps: deps},
		&Weather{deps: deps},
		&Photo{deps: deps},
		&QRCode{},
		&Clock{deps: deps},
		&Text{},
		&Calendar{deps: deps},
	}
}

// Catalog indexes plugins by name for the API.
type Catalog struct {
	plugins map[string]Plugin
}

func NewCatalog(plugins []Plugin) *Catalog {
	c := &Catalog{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		c.plugins[p.Name()] = p
	}
	return c
}

// Register adds every plugin to reg and returns the catalog.
func Register(reg *render.Registry, plugins []Plugin) *Catalog {
	for _, p := range plugins {
		reg.Register(p.Name(), p)
	}
	return NewCatalog(plugins)
}

func (c *Catalog) Get(name string) (Plugin, bool) {
	p, ok := c.plugins[name]
	return p, ok
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.plugins))
	for name := range c.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Defaults() map[string]map[string]any {
	out := make(map[string]map[string]any, len(c.plugins))
	for name, p := range c.plugins {
		out[name] = p.Defaults()
	}
	return out
}

func (c *Catalog) Schemas() map[string]Schema {
	out := make(map[string]Schema, len(c.plugins))
	for name, p := range c.plugins {
		out[name] = p.Schema()
	}
	return out
}

func (c *Catalog) DisplayNames() map[string]string {
	out := make(map[string]string, len(c.plugins))
	for name, p := range c.plugins {
		out[name] = p.DisplayName()
	}
	return out
}

// WithDefaults returns cfg layered over the plugin's defaults. Unknown
// plugins get cfg back unchanged.
func (c *Catalog) WithDefaults(name string, cfg map[string]any) map[string]any {
	p, ok := c.plugins[name]
	if !ok {
		return cfg
	}
	merged := p.Defaults()
	for k, v := range cfg {
		merged[k] = v
	}
	return merged
}
