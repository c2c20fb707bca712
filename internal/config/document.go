// Package config holds the dashboard document, the host settings and the
// on-disk store that keeps both.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/render/layout"
)

const (
	DocumentVersion        = 1
	DefaultIntervalMinutes = 15
)

// ErrInvalidDocument wraps every validation failure of a Document.
var ErrInvalidDocument = errors.New("invalid document")

type Border struct {
	Width  int    `json:"width"`
	Radius int    `json:"radius"`
	Style  string `json:"style"`
	Color  string `json:"color"`
	Dot    int    `json:"dot,omitempty"`
	Gap    int    `json:"gap,omitempty"`
}

// DefaultBorder is a one pixel black outline with softened corners.
var DefaultBorder = Border{Width: 1, Radius: 8, Style: string(render.BorderSolid), Color: "black"}

type Tile struct {
	Plugin  string         `json:"plugin"`
	Col     int            `json:"col"`
	Row     int            `json:"row"`
	ColSpan int            `json:"colspan"`
	RowSpan int            `json:"rowspan"`
	Config  map[string]any `json:"config,omitempty"`
}

// UnmarshalJSON defaults both spans to 1.
func (t *Tile) UnmarshalJSON(data []byte) error {
	type plain Tile
	v := plain{ColSpan: 1, RowSpan: 1}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Tile(v)
	return nil
}

type Layout struct {
	Cols   int    `json:"cols"`
	Rows   int    `json:"rows"`
	Gutter int    `json:"gutter"`
	Border Border `json:"border"`
	Tiles  []Tile `json:"tiles"`
}

// Document is the dashboard definition edited through the control UI and
// stored as config.json.
type Document struct {
	Version               int    `json:"version"`
	UpdateIntervalMinutes int    `json:"update_interval_minutes"`
	ActivePreset          string `json:"active_preset,omitempty"`
	Layout                Layout `json:"layout"`
}

// UnmarshalJSON starts from the default grid so fields missing from data
// keep their defaults. Tiles are never defaulted.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	v := plain{
		Version:               DocumentVersion,
		UpdateIntervalMinutes: DefaultIntervalMinutes,
		Layout:                Layout{Cols: 2, Rows: 2, Gutter: 12, Border: DefaultBorder},
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = Document(v)
	return nil
}

// Default returns the document used when nothing is stored yet: a tram
// board and the weather on top, a bus board across the bottom row.
func Default() Document {
	return Document{
		Version:               DocumentVersion,
		UpdateIntervalMinutes: DefaultIntervalMinutes,
		Layout: Layout{
			Cols: 2, Rows: 2, Gutter: 12,
			Border: DefaultBorder,
			Tiles: []Tile{
				{Plugin: "transit", Col: 0, Row: 0, ColSpan: 1, RowSpan: 1, Config: map[string]any{
					"stops":           []any{"Genslerstr", "Werneuchener Str"},
					"max_rows":        8,
					"title_color":     "red",
					"line_bg":         "red",
					"line_text_color": "white",
				}},
				{Plugin: "weather", Col: 1, Row: 0, ColSpan: 1, RowSpan: 1, Config: map[string]any{}},
				{Plugin: "transit", Col: 0, Row: 1, ColSpan: 2, RowSpan: 1, Config: map[string]any{
					"stops":           []any{"Werneuchener Str./Große-Leege-Str."},
					"max_rows":        8,
					"title_color":     "blue",
					"line_bg":         "blue",
					"line_text_color": "white",
				}},
			},
		},
	}
}

// Clone returns a deep enough copy for callers that mutate tiles or their
// top-level config keys.
func (d Document) Clone() Document {
	out := d
	out.Layout.Tiles = make([]Tile, len(d.Layout.Tiles))
	for i, t := range d.Layout.Tiles {
		if t.Config != nil {
			cfg := make(map[string]any, len(t.Config))
			for k, v := range t.Config {
				cfg[k] = v
			}
			t.Config = cfg
		}
		out.Layout.Tiles[i] = t
	}
	return out
}

// Interval returns the refresh period, never shorter than a minute.
func (d Document) Interval() time.Duration {
	return time.Duration(max(d.UpdateIntervalMinutes, 1)) * time.Minute
}

// Specs converts the tiles to grid resolver input.
func (d Document) Specs() []layout.TileSpec {
	specs := make([]layout.TileSpec, 0, len(d.Layout.Tiles))
	for _, t := range d.Layout.Tiles {
		specs = append(specs, layout.TileSpec{
			Plugin:  t.Plugin,
			Col:     t.Col,
			Row:     t.Row,
			ColSpan: t.ColSpan,
			RowSpan: t.RowSpan,
			Config:  t.Config,
		})
	}
	return specs
}

// ToJob builds an engine job for the document.
func (d Document) ToJob(margins render.Margins, preview bool, now time.Time) render.Job {
	b := d.Layout.Border
	return render.Job{
		Layout: render.Layout{
			Cols:   d.Layout.Cols,
			Rows:   d.Layout.Rows,
			Gutter: d.Layout.Gutter,
			Border: render.Border{
				Width:  b.Width,
				Radius: b.Radius,
				Style:  render.BorderStyle(b.Style),
				Color:  b.Color,
				Dot:    b.Dot,
				Gap:    b.Gap,
			},
			Tiles: d.Specs(),
		},
		Margins: margins,
		Preview: preview,
		Now:     now,
	}
}

// Validate reports structural problems that would make the document
// unrenderable on a canvas with the default margins.
func (d Document) Validate() error { return d.ValidateFor(render.DefaultMargins) }

// ValidateFor checks d against the drawing area left inside margins m.
func (d Document) ValidateFor(m render.Margins) error {
	if d.UpdateIntervalMinutes < 1 {
		return fmt.Errorf("%w: update_interval_minutes must be at least 1", ErrInvalidDocument)
	}
	switch render.BorderStyle(d.Layout.Border.Style) {
	case render.BorderSolid, render.BorderDotted, render.BorderNone, "":
	default:
		return fmt.Errorf("%w: border style %q must be solid, dotted or none", ErrInvalidDocument, d.Layout.Border.Style)
	}
	for i, t := range d.Layout.Tiles {
		if t.Plugin == "" {
			return fmt.Errorf("%w: tile %d has no plugin", ErrInvalidDocument, i)
		}
		if t.Col < 0 || t.Row < 0 || t.ColSpan < 1 || t.RowSpan < 1 {
			return fmt.Errorf("%w: tile %d has a negative position or an empty span", ErrInvalidDocument, i)
		}
	}
	area := m.Area(render.CanvasWidth, render.CanvasHeight)
	if area.Right < area.Left || area.Bottom < area.Top {
		return fmt.Errorf("%w: margins %+v leave no drawing area", ErrInvalidDocument, m)
	}
	if _, err := layout.Resolve(area, d.Layout.Cols, d.Layout.Rows, d.Layout.Gutter, d.Specs()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// Defaulter supplies per plugin default configuration.
type Defaulter interface {
	WithDefaults(plugin string, cfg map[string]any) map[string]any
}

// Normalize validates d for a canvas with margins m, layers plugin defaults
// under every tile config and returns warnings for overlapping tiles.
// Overlap is allowed; later tiles are drawn on top.
func Normalize(d Document, defaults Defaulter, m render.Margins) (Document, []string, error) {
	if err := d.ValidateFor(m); err != nil {
		return d, nil, err
	}
	out := d.Clone()
	out.Version = DocumentVersion
	if out.Layout.Border.Style == "" {
		out.Layout.Border.Style = string(render.BorderSolid)
	}
	if defaults != nil {
		for i, t := range out.Layout.Tiles {
			out.Layout.Tiles[i].Config = defaults.WithDefaults(t.Plugin, t.Config)
		}
	}

	area := m.Area(render.CanvasWidth, render.CanvasHeight)
	placements, err := layout.Resolve(area, out.Layout.Cols, out.Layout.Rows, out.Layout.Gutter, out.Specs())
	if err != nil {
		return d, nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	var warnings []string
	for _, pair := range layout.Overlaps(placements) {
		warnings = append(warnings, fmt.Sprintf("tile %d overlaps tile %d; tile %d is drawn on top", pair[0], pair[1], pair[1]))
	}
	return out, warnings, nil
}
