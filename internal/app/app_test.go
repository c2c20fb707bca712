package app

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rook-computer/inkpanel/internal/buttons"
	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/sink"
	"github.com/rook-computer/inkpanel/internal/state"
)

type recordingSink struct {
	name  string
	err   error
	gate  chan struct{}
	mu    sync.Mutex
	count int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(ctx context.Context, c *render.Canvas) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func newTestApp(t *testing.T, sinks ...*recordingSink) *App {
	t.Helper()
	dir := t.TempDir()
	docs := config.NewStore(filepath.Join(dir, "config.json"), filepath.Join(dir, "presets"))

	reg := render.NewRegistry()
	noop := render.RendererFunc(func(*render.TileContext, image.Rectangle, map[string]any) error { return nil })
	reg.Register("transit", noop)
	reg.Register("weather", noop)
	reg.Register("broken", render.RendererFunc(func(*render.TileContext, image.Rectangle, map[string]any) error {
		return errors.New("upstream down")
	}))

	var out []sink.Sink
	for _, s := range sinks {
		out = append(out, s)
	}
	app := New(docs, state.NewStore(), render.NewEngine(reg, nil), nil, out)
	app.Now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	return app
}

func waitFinished(t *testing.T, status *state.Store) state.ApplyInfo {
	t.Helper()
	ch, cancel := status.Subscribe()
	defer cancel()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch:
			if s.Apply.Phase.Finished() {
				return s.Apply
			}
		case <-timeout:
			t.Fatalf("job did not finish, last state %+v", status.Snapshot().Apply)
		}
	}
}

func TestApplyRendersAndWritesSinks(t *testing.T) {
	png := &recordingSink{name: "png"}
	app := newTestApp(t, png)

	id, err := app.Apply(context.Background(), nil)
	if err != nil || id == "" {
		t.Fatalf("Apply = %q, %v", id, err)
	}
	a := waitFinished(t, app.Status)
	if a.Phase != state.DONE || a.Percent != 100 || a.JobID != id {
		t.Fatalf("apply = %+v", a)
	}
	if png.writes() != 1 {
		t.Fatalf("sink writes = %d", png.writes())
	}
	if r := app.Status.Snapshot().LastRender; r.Trigger != "apply" || r.FailedTiles != 0 {
		t.Fatalf("last render = %+v", r)
	}
}

func TestApplyRejectsSecondJob(t *testing.T) {
	gate := make(chan struct{})
	slow := &recordingSink{name: "slow", gate: gate}
	app := newTestApp(t, slow)

	first, err := app.Apply(context.Background(), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	second, err := app.Apply(context.Background(), nil)
	if !errors.Is(err, ErrApplyRunning) || second != first {
		t.Fatalf("second Apply = %q, %v; want %q, ErrApplyRunning", second, err, first)
	}
	close(gate)
	waitFinished(t, app.Status)
	app.jobs.Wait()
	if _, running := app.Running(); running {
		t.Fatalf("slot still held after the job finished")
	}
}

func TestApplySavesDocument(t *testing.T) {
	app := newTestApp(t)
	doc := config.Default()
	doc.UpdateIntervalMinutes = 5

	if _, err := app.Apply(context.Background(), &doc); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	waitFinished(t, app.Status)
	app.jobs.Wait()

	stored, err := app.Docs.Load()
	if err != nil || stored.UpdateIntervalMinutes != 5 {
		t.Fatalf("stored = %+v, %v", stored, err)
	}
	if app.documentChanged() {
		t.Fatalf("own save reported as an external change")
	}
}

func TestApplyInvalidDocument(t *testing.T) {
	app := newTestApp(t)
	doc := config.Default()
	doc.Layout.Tiles[0].Col = -1

	if _, err := app.Apply(context.Background(), &doc); !errors.Is(err, config.ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
	if _, running := app.Running(); running {
		t.Fatalf("invalid document took the slot")
	}
}

func TestSinkFailureIsReported(t *testing.T) {
	bad := &recordingSink{name: "display", err: errors.New("device gone")}
	good := &recordingSink{name: "png"}
	app := newTestApp(t, bad, good)

	if _, err := app.Apply(context.Background(), nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	a := waitFinished(t, app.Status)
	if a.Phase != state.ERROR || a.Err == "" {
		t.Fatalf("apply = %+v", a)
	}
	if good.writes() != 1 {
		t.Fatalf("later sink skipped after a failure")
	}
}

func TestFailedTilesCounted(t *testing.T) {
	app := newTestApp(t)
	doc := config.Default()
	doc.Layout.Tiles[1].Plugin = "broken"
	doc.Layout.Tiles[0].Plugin = "missing"
	if _, err := app.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if _, err := app.Apply(context.Background(), nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if a := waitFinished(t, app.Status); a.Phase != state.DONE {
		t.Fatalf("tile failures failed the job: %+v", a)
	}
	if got := app.Status.Snapshot().LastRender.FailedTiles; got != 2 {
		t.Fatalf("failed tiles = %d, want 2", got)
	}
}

func TestPreviewLeavesSinksAlone(t *testing.T) {
	png := &recordingSink{name: "png"}
	app := newTestApp(t, png)
	canvas, err := app.Preview(context.Background(), nil)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if w, h := app.Engine.Size(); canvas.Image.Bounds() != image.Rect(0, 0, w, h) {
		t.Fatalf("bounds = %v", canvas.Image.Bounds())
	}
	if png.writes() != 0 {
		t.Fatalf("preview wrote a sink")
	}
}

func TestNextPresetCycles(t *testing.T) {
	app := newTestApp(t)
	if _, err := app.NextPreset(); !errors.Is(err, config.ErrPresetNotFound) {
		t.Fatalf("err = %v, want ErrPresetNotFound", err)
	}
	for _, name := range []string{"b", "a"} {
		if _, err := app.Docs.SavePreset(name, config.Default()); err != nil {
			t.Fatalf("SavePreset: %v", err)
		}
	}
	var got []string
	for range 3 {
		name, err := app.NextPreset()
		if err != nil {
			t.Fatalf("NextPreset: %v", err)
		}
		got = append(got, name)
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "a" {
		t.Fatalf("order = %v", got)
	}
}

func TestStartRendersAndExitsOnButton(t *testing.T) {
	png := &recordingSink{name: "png"}
	app := newTestApp(t, png)
	manual := buttons.NewManual()
	app.Buttons = manual

	done := make(chan error, 1)
	go func() { done <- app.Start(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for png.writes() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no render after start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	manual.Press(buttons.Exit)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("exit button ignored")
	}
}

func TestRenderOnce(t *testing.T) {
	png := &recordingSink{name: "png"}
	app := newTestApp(t, png)
	if err := app.RenderOnce(context.Background(), "cli"); err != nil {
		t.Fatalf("RenderOnce: %v", err)
	}
	if png.writes() != 1 || app.Status.Snapshot().LastRender.Trigger != "cli" {
		t.Fatalf("writes = %d, last = %+v", png.writes(), app.Status.Snapshot().LastRender)
	}

	png.err = errors.New("disk full")
	if err := app.RenderOnce(context.Background(), "cli"); err == nil {
		t.Fatalf("sink failure not returned")
	}
}

type fakeCatalog map[string]map[string]any

func (c fakeCatalog) WithDefaults(plugin string, cfg map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range c[plugin] {
		out[k] = v
	}
	for k, v := range cfg {
		out[k] = v
	}
	return out
}

func writeStoredDocument(t *testing.T, app *App, body string) {
	t.Helper()
	path := app.Docs.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScheduledRenderAppliesPluginDefaults(t *testing.T) {
	png := &recordingSink{name: "png"}
	app := newTestApp(t, png)
	app.Catalog = fakeCatalog{"weather": {"variant": "split"}}

	var mu sync.Mutex
	var seen map[string]any
	reg := render.NewRegistry()
	reg.Register("weather", render.RendererFunc(func(_ *render.TileContext, _ image.Rectangle, cfg map[string]any) error {
		mu.Lock()
		seen = cfg
		mu.Unlock()
		return nil
	}))
	app.Engine = render.NewEngine(reg, nil)
	writeStoredDocument(t, app, `{"update_interval_minutes":3,"layout":{"cols":1,"rows":1,"tiles":[{"plugin":"weather","col":0,"row":0}]}}`)

	doc := app.scheduledRender(context.Background(), "timer")
	if doc.Interval() != 3*time.Minute {
		t.Fatalf("interval = %s", doc.Interval())
	}
	mu.Lock()
	defer mu.Unlock()
	if seen["variant"] != "split" {
		t.Fatalf("renderer config = %v, want plugin defaults", seen)
	}
	if png.writes() != 1 {
		t.Fatalf("sink writes = %d", png.writes())
	}
	if app.documentChanged() {
		t.Fatalf("unchanged hand-written document reported as changed")
	}
}

func TestScheduledRenderRejectsInvalidDocument(t *testing.T) {
	png := &recordingSink{name: "png"}
	app := newTestApp(t, png)
	writeStoredDocument(t, app, `{"update_interval_minutes":4,"layout":{"cols":1,"rows":1,"tiles":[{"plugin":"weather","col":-1,"row":0}]}}`)

	doc := app.scheduledRender(context.Background(), "button")
	if doc.Interval() != 4*time.Minute {
		t.Fatalf("interval = %s", doc.Interval())
	}
	if png.writes() != 0 {
		t.Fatalf("invalid document reached the sinks")
	}
	r := app.Status.Snapshot().LastRender
	if r.Trigger != "button" || !strings.Contains(r.Err, "invalid document") {
		t.Fatalf("last render = %+v", r)
	}
	if _, running := app.Running(); running {
		t.Fatalf("job slot still held")
	}
}

func TestPreviewUsesConfiguredMargins(t *testing.T) {
	app := newTestApp(t)
	if _, err := app.Preview(context.Background(), nil); err != nil {
		t.Fatalf("Preview with default margins: %v", err)
	}
	app.Margins = render.Margins{Left: 400, Right: 400}
	if _, err := app.Preview(context.Background(), nil); !errors.Is(err, config.ErrInvalidDocument) {
		t.Fatalf("Preview err = %v, want ErrInvalidDocument for margins without a drawing area", err)
	}
}
