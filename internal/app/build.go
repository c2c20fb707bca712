package app

import (
	"context"
	"fmt"

	"github.com/rook-computer/inkpanel/internal/cache"
	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/plugins"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/sink"
	"github.com/rook-computer/inkpanel/internal/source"
	"github.com/rook-computer/inkpanel/internal/state"
	"github.com/rook-computer/inkpanel/internal/system"
)

// BuildOptions adjust Build for the binary at hand.
type BuildOptions struct {
	// Offline renders every tile with stub data and skips the upstream APIs.
	Offline bool
	// NoDisplay leaves out the framebuffer and upload sinks.
	NoDisplay bool
	Runner    system.Runner
}

// Build wires an App from host settings: cache, data sources, plugins,
// fonts, engine, sinks and the document store. The returned catalog feeds
// the API.
func Build(ctx context.Context, s config.Settings, logger Logger, opts BuildOptions) (*App, *plugins.Catalog, error) {
	if logger == nil {
		logger = NoopLogger{}
	}
	c, err := cache.Open(ctx, s.CacheConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("cache: %w", err)
	}
	logger.Infof("app", "cache backend %q", s.Cache.Backend)

	deps := plugins.Deps{Stub: source.Stub{}, PhotosDir: s.PhotosDir}
	if !opts.Offline {
		fetcher := source.NewFetcher(c, source.WithRetry(s.HTTP.RetryMax, s.HTTP.Timeout()))
		deps.Weather = &source.OpenMeteo{Fetcher: fetcher}
		deps.Transit = &source.BVG{Fetcher: fetcher}
		deps.Calendar = &source.Calendars{Fetcher: fetcher}
	}
	reg := render.NewRegistry()
	catalog := plugins.Register(reg, plugins.All(deps))

	fonts := render.LoadFonts(s.FontPath, render.FontSizes{}, logger)
	engine := render.NewEngine(reg, fonts, render.WithLogger(logger))

	var sinks []sink.Sink
	if s.OutputPNG != "" {
		sinks = append(sinks, sink.PNGFile{Path: s.OutputPNG})
	}
	if !opts.NoDisplay {
		if s.Display.Framebuffer {
			sinks = append(sinks, sink.NewFramebuffer(s.Display.Device, logger))
		}
		if s.Display.UploadCommand != "" {
			sinks = append(sinks, sink.NewScript(s.Display.UploadCommand, s.Display.UploadArgs, opts.Runner))
		}
	}

	docs := config.NewStore(s.DocumentPath(), s.PresetDir())
	a := New(docs, state.NewStore(), engine, catalog, sinks)
	a.Logger = logger
	a.Margins = s.Display.Margins
	a.StubData = s.PreviewStub || opts.Offline
	a.Resources = append(a.Resources, c)
	return a, catalog, nil
}

// closeResources closes everything Build opened besides the sinks.
func (app *App) closeResources() {
	for _, r := range app.Resources {
		if err := r.Close(); err != nil {
			app.Logger.Errorf("app", "close: %v", err)
		}
	}
}

// Close releases sinks and resources of an App that was never started.
func (app *App) Close() {
	if err := sink.CloseAll(app.Sinks); err != nil {
		app.Logger.Errorf("app", "closing sinks: %v", err)
	}
	app.closeResources()
}
