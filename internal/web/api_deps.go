package web

import (
	"context"
	"errors"

	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/plugins"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/state"
)

// Dashboard is the host the API drives. *app.App implements it.
type Dashboard interface {
	Document() (config.Document, error)
	SaveDocument(doc config.Document) ([]string, error)
	// Preview renders doc, or the stored document when nil, with stub data.
	Preview(ctx context.Context, doc *config.Document) (*render.Canvas, error)
	// Apply starts a live render job and returns its id.
	Apply(ctx context.Context, doc *config.Document) (string, error)
	ActivatePreset(name string) (config.Document, error)
}

// PresetStore abstracts preset files. *config.Store implements it.
type PresetStore interface {
	Presets() ([]string, error)
	SavePreset(name string, doc config.Document) (string, error)
	DeletePreset(name string) error
}

// PluginCatalog exposes editor metadata. *plugins.Catalog implements it.
type PluginCatalog interface {
	Names() []string
	DisplayNames() map[string]string
	Defaults() map[string]map[string]any
	Schemas() map[string]plugins.Schema
}

// StatusSource abstracts the apply status. *state.Store implements it.
type StatusSource interface {
	Snapshot() state.State
	Subscribe() (<-chan state.State, func())
}

// SafeArea describes where tiles may be drawn.
type SafeArea struct {
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Margins render.Margins `json:"margins"`
}

type APIV1Deps struct {
	Dashboard Dashboard
	Presets   PresetStore
	Catalog   PluginCatalog
	Status    StatusSource
	// PhotosDir receives uploads and backs the photo listing.
	PhotosDir string
	SafeArea  SafeArea
	// MaxPhotoBytes caps a single upload; zero means DefaultMaxPhotoBytes.
	MaxPhotoBytes int64
	Logger        Logger
}

const DefaultMaxPhotoBytes = 20 << 20

func (d APIV1Deps) withDefaults() APIV1Deps {
	out := d
	if out.Dashboard == nil {
		out.Dashboard = noopDashboard{}
	}
	if out.Presets == nil {
		out.Presets = noopPresets{}
	}
	if out.Catalog == nil {
		out.Catalog = plugins.NewCatalog(nil)
	}
	if out.Status == nil {
		out.Status = state.NewStore()
	}
	if out.SafeArea.Width == 0 || out.SafeArea.Height == 0 {
		out.SafeArea = SafeArea{Width: render.CanvasWidth, Height: render.CanvasHeight, Margins: render.DefaultMargins}
	}
	if out.MaxPhotoBytes <= 0 {
		out.MaxPhotoBytes = DefaultMaxPhotoBytes
	}
	if out.Logger == nil {
		out.Logger = nopLogger{}
	}
	return out
}

// Logger matches the host's component logger.
type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, string, ...interface{})  {}
func (nopLogger) Errorf(string, string, ...interface{}) {}

var errNotConfigured = errors.New("not configured")

type noopDashboard struct{}

func (noopDashboard) Document() (config.Document, error) { return config.Default(), nil }
func (noopDashboard) SaveDocument(config.Document) ([]string, error) {
	return nil, errNotConfigured
}
func (noopDashboard) Preview(context.Context, *config.Document) (*render.Canvas, error) {
	return nil, errNotConfigured
}
func (noopDashboard) Apply(context.Context, *config.Document) (string, error) {
	return "", errNotConfigured
}
func (noopDashboard) ActivatePreset(string) (config.Document, error) {
	return config.Document{}, errNotConfigured
}

type noopPresets struct{}

func (noopPresets) Presets() ([]string, error)                         { return []string{}, nil }
func (noopPresets) SavePreset(string, config.Document) (string, error) { return "", errNotConfigured }
func (noopPresets) DeletePreset(string) error                          { return errNotConfigured }
