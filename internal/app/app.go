package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rook-computer/inkpanel/internal/buttons"
	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/sink"
	"github.com/rook-computer/inkpanel/internal/state"
)

// Server is the control surface started alongside the scheduler.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

type NoopServer struct{}

func (NoopServer) Start(context.Context) error { return nil }
func (NoopServer) Stop() error                 { return nil }

// Watcher reports changes of the stored document.
type Watcher interface {
	Events() <-chan struct{}
	Close() error
}

// Catalog supplies plugin defaults for document normalization.
type Catalog interface {
	WithDefaults(plugin string, cfg map[string]any) map[string]any
}

// App runs the dashboard host: it renders the stored document on a
// schedule, on document changes and on button presses, and serves the
// control API.
type App struct {
	Docs    *config.Store
	Status  *state.Store
	Engine  *render.Engine
	Catalog Catalog
	Sinks   []sink.Sink
	Web     Server
	Buttons buttons.Buttons
	Watcher Watcher
	Logger  Logger

	// Margins place the grid on the canvas.
	Margins render.Margins
	// Resources are closed when Start returns.
	Resources []io.Closer
	// StubData renders scheduled refreshes with stub data.
	StubData bool
	Now      func() time.Time

	baseCtx      atomic.Pointer[context.Context]
	job          atomic.Pointer[string]
	refresh      chan string
	lastRendered atomic.Pointer[[]byte]
	jobs         sync.WaitGroup

	exitOnce atomic.Bool
	exitCh   chan error
}

func New(docs *config.Store, status *state.Store, engine *render.Engine, catalog Catalog, sinks []sink.Sink) *App {
	return &App{
		Docs:    docs,
		Status:  status,
		Engine:  engine,
		Catalog: catalog,
		Sinks:   sinks,
		Web:     NoopServer{},
		Buttons: buttons.NewNoopButtons(),
		Logger:  NoopLogger{},
		Margins: render.DefaultMargins,
		Now:     time.Now,
		refresh: make(chan string, 1),
		exitCh:  make(chan error, 1),
	}
}

// Exit requests the app to stop running.
func (app *App) Exit(err error) {
	if app.exitCh == nil {
		return
	}
	if !app.exitOnce.CompareAndSwap(false, true) {
		return
	}
	select {
	case app.exitCh <- err:
	default:
	}
}

// Start runs until ctx is done or Exit is called. The first render happens
// immediately.
func (app *App) Start(ctx context.Context) error {
	if app.exitCh == nil {
		app.exitCh = make(chan error, 1)
	}
	if app.refresh == nil {
		app.refresh = make(chan string, 1)
	}
	app.exitOnce.Store(false)
	app.baseCtx.Store(&ctx)

	if err := app.Web.Start(ctx); err != nil {
		app.Logger.Errorf("app", "web server start error: %v", err)
		return err
	}
	defer func() {
		if err := app.Web.Stop(); err != nil {
			app.Logger.Errorf("app", "web server stop: %v", err)
		}
	}()

	if err := app.Buttons.Start(ctx); err != nil {
		app.Logger.Errorf("app", "buttons start error: %v", err)
	}
	defer func() { _ = app.Buttons.Stop() }()

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.runScheduler(loopCtx)
	}()
	go func() {
		defer wg.Done()
		app.runEvents(loopCtx)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-app.exitCh:
	}
	cancel()
	wg.Wait()
	app.jobs.Wait()
	if app.Watcher != nil {
		_ = app.Watcher.Close()
	}
	if cerr := sink.CloseAll(app.Sinks); cerr != nil {
		app.Logger.Errorf("app", "closing sinks: %v", cerr)
	}
	app.closeResources()
	return err
}

// Refresh asks the scheduler for an immediate render. Requests arriving
// while one is pending are merged.
func (app *App) Refresh(trigger string) {
	select {
	case app.refresh <- trigger:
	default:
	}
}

func (app *App) runScheduler(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		trigger := "timer"
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case trigger = <-app.refresh:
		}
		doc := app.scheduledRender(ctx, trigger)
		timer.Reset(doc.Interval())
	}
}

// scheduledRender renders the stored document unless an apply job holds
// the slot, and returns the document whose interval sets the next tick.
func (app *App) scheduledRender(ctx context.Context, trigger string) config.Document {
	doc, err := app.resolve(nil)
	if err != nil {
		app.Logger.Errorf("app", "%s refresh skipped: %v", trigger, err)
		app.Status.UpdateRender(state.RenderInfo{At: app.Now(), Trigger: trigger, Err: err.Error()})
		stored, _ := app.Docs.Load()
		return stored
	}
	id, ok := app.acquire()
	if !ok {
		app.Logger.Infof("app", "%s refresh skipped, job %s is running", trigger, id)
		return doc
	}
	defer app.release()
	app.run(ctx, id, doc, trigger, app.StubData)
	return doc
}

func (app *App) runEvents(ctx context.Context) {
	var changes <-chan struct{}
	if app.Watcher != nil {
		changes = app.Watcher.Events()
	}
	presses := app.Buttons.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if app.documentChanged() {
				app.Logger.Infof("app", "document changed on disk")
				app.Refresh("config")
			}
		case ev, ok := <-presses:
			if !ok {
				presses = nil
				continue
			}
			app.handleButton(ev)
		}
	}
}

func (app *App) handleButton(ev buttons.Event) {
	switch ev {
	case buttons.Refresh:
		app.Refresh("button")
	case buttons.NextPreset:
		name, err := app.NextPreset()
		if err != nil {
			app.Logger.Errorf("app", "next preset: %v", err)
			return
		}
		app.Logger.Infof("app", "preset %s activated", name)
		app.Refresh("button")
	case buttons.Exit:
		app.Exit(nil)
	}
}

// NextPreset activates the preset after the active one, in name order.
func (app *App) NextPreset() (string, error) {
	names, err := app.Docs.Presets()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no presets stored", config.ErrPresetNotFound)
	}
	current, _ := app.Docs.Load()
	next := names[0]
	for i, n := range names {
		if n == current.ActivePreset {
			next = names[(i+1)%len(names)]
			break
		}
	}
	if _, err := app.Docs.ActivatePreset(next); err != nil {
		return "", err
	}
	return next, nil
}

// documentChanged reports whether the stored document differs from the one
// rendered last, so the app's own saves do not trigger a second render.
func (app *App) documentChanged() bool {
	stored, err := app.Docs.Load()
	if err != nil {
		app.Logger.Warnf("app", "changed document unreadable: %v", err)
		return true
	}
	doc, _, err := config.Normalize(stored, app.Catalog, app.Margins)
	if err != nil {
		return true
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return true
	}
	last := app.lastRendered.Load()
	return last == nil || string(*last) != string(data)
}

func (app *App) rememberRendered(doc config.Document) {
	if data, err := json.Marshal(doc); err == nil {
		app.lastRendered.Store(&data)
	}
}

// Document returns the stored document.
func (app *App) Document() (config.Document, error) {
	return app.Docs.Load()
}

// SaveDocument normalizes and stores doc, returning overlap warnings.
func (app *App) SaveDocument(doc config.Document) ([]string, error) {
	normalized, warnings, err := config.Normalize(doc, app.Catalog, app.Margins)
	if err != nil {
		return nil, err
	}
	if err := app.Docs.Save(normalized); err != nil {
		return nil, err
	}
	return warnings, nil
}

// ActivatePreset makes a preset the live document.
func (app *App) ActivatePreset(name string) (config.Document, error) {
	return app.Docs.ActivatePreset(name)
}

// Preview renders doc, or the stored document when doc is nil, with stub
// data. Nothing is written to the sinks.
func (app *App) Preview(ctx context.Context, doc *config.Document) (*render.Canvas, error) {
	d, err := app.resolve(doc)
	if err != nil {
		return nil, err
	}
	return app.Engine.Render(ctx, d.ToJob(app.Margins, true, app.Now()))
}

func (app *App) resolve(doc *config.Document) (config.Document, error) {
	if doc == nil {
		stored, err := app.Docs.Load()
		if err != nil {
			app.Logger.Warnf("app", "using default document: %v", err)
		}
		doc = &stored
	}
	normalized, _, err := config.Normalize(*doc, app.Catalog, app.Margins)
	if err != nil {
		return config.Document{}, err
	}
	return normalized, nil
}

func (app *App) Stop() error {
	app.Exit(nil)
	return nil
}
