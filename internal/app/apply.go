package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/state"
)

// ErrApplyRunning is returned by Apply while another job holds the slot.
var ErrApplyRunning = errors.New("apply already running")

const jobTimeout = 5 * time.Minute

// Apply stores doc (when given), then renders it with live data and writes
// every sink in the background. It returns the new job id, or the running
// job's id together with ErrApplyRunning.
func (app *App) Apply(ctx context.Context, doc *config.Document) (string, error) {
	d, err := app.resolve(doc)
	if err != nil {
		return "", err
	}
	id, ok := app.acquire()
	if !ok {
		return id, ErrApplyRunning
	}
	if doc != nil {
		if err := app.Docs.Save(d); err != nil {
			app.release()
			return "", fmt.Errorf("save document: %w", err)
		}
		if stored, err := app.Docs.Load(); err == nil {
			d = stored
			app.rememberRendered(d)
		}
	}

	// Published before returning so a client that follows the job id never
	// sees the previous job's final state.
	app.Status.UpdateApply(state.ApplyInfo{JobID: id, Phase: state.RENDERING, Message: "Starting", StartedAt: app.Now()})

	jobCtx, cancel := context.WithTimeout(app.jobContext(ctx), jobTimeout)
	app.jobs.Add(1)
	go func() {
		defer app.jobs.Done()
		defer cancel()
		defer app.release()
		app.run(jobCtx, id, d, "apply", false)
	}()
	return id, nil
}

// jobContext outlives the request that started the job but not the app.
func (app *App) jobContext(ctx context.Context) context.Context {
	if base := app.baseCtx.Load(); base != nil {
		return *base
	}
	return context.WithoutCancel(ctx)
}

// Running returns the id of the job holding the slot, if any.
func (app *App) Running() (string, bool) {
	if id := app.job.Load(); id != nil {
		return *id, true
	}
	return "", false
}

func (app *App) acquire() (string, bool) {
	id := uuid.NewString()
	for {
		if app.job.CompareAndSwap(nil, &id) {
			return id, true
		}
		if cur := app.job.Load(); cur != nil {
			return *cur, false
		}
	}
}

func (app *App) release() { app.job.Store(nil) }

// run renders doc and writes the sinks, reporting progress to the status
// store. The caller holds the job slot.
func (app *App) run(ctx context.Context, id string, doc config.Document, trigger string, stub bool) {
	started := app.Now()
	app.Status.UpdateApply(state.ApplyInfo{
		JobID:     id,
		Phase:     state.RENDERING,
		Percent:   20,
		Message:   "Rendering dashboard",
		StartedAt: started,
	})
	app.Logger.Infof("app", "job %s (%s) started", id, trigger)

	canvas, err := app.Engine.Render(ctx, doc.ToJob(app.Margins, stub, started))
	if err != nil {
		app.Status.UpdateRender(state.RenderInfo{At: started, Trigger: trigger, Err: err.Error()})
		app.finish(id, started, err)
		return
	}
	app.rememberRendered(doc)
	failed := len(canvas.Failed())
	if failed > 0 {
		app.Logger.Warnf("app", "job %s: %d of %d tiles show an error", id, failed, len(canvas.Tiles))
	}

	err = app.Output(ctx, canvas)
	info := state.RenderInfo{At: started, Trigger: trigger, FailedTiles: failed}
	if err != nil {
		info.Err = err.Error()
	}
	app.Status.UpdateRender(info)
	app.finish(id, started, err)
}

// Output writes canvas to every sink in order. A failing sink does not
// stop the others; all failures are returned together.
func (app *App) Output(ctx context.Context, canvas *render.Canvas) error {
	if len(app.Sinks) == 0 {
		app.Logger.Warnf("app", "no output configured, render discarded")
		return nil
	}
	var errs []error
	for i, s := range app.Sinks {
		percent := 40 + i*50/len(app.Sinks)
		app.Status.SetPhase(state.OUTPUT, percent, "Sending data to "+s.Name())
		if err := s.Write(ctx, canvas); err != nil {
			app.Logger.Errorf("app", "sink %s: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		app.Logger.Debugf("app", "sink %s written", s.Name())
	}
	return errors.Join(errs...)
}

func (app *App) finish(id string, started time.Time, err error) {
	a := state.ApplyInfo{
		JobID:      id,
		Phase:      state.DONE,
		Percent:    100,
		Message:    "Refresh complete",
		StartedAt:  started,
		FinishedAt: app.Now(),
	}
	if err != nil {
		a.Phase = state.ERROR
		a.Message = "Refresh failed"
		a.Err = err.Error()
		app.Logger.Errorf("app", "job %s failed: %v", id, err)
	} else {
		app.Logger.Infof("app", "job %s done in %s", id, a.FinishedAt.Sub(started).Round(time.Millisecond))
	}
	app.Status.UpdateApply(a)
}

// RenderOnce renders the stored document and writes every sink in the
// calling goroutine. It backs the one-shot CLI command.
func (app *App) RenderOnce(ctx context.Context, trigger string) error {
	doc, err := app.resolve(nil)
	if err != nil {
		return err
	}
	id, ok := app.acquire()
	if !ok {
		return fmt.Errorf("%w: job %s", ErrApplyRunning, id)
	}
	defer app.release()
	app.run(ctx, id, doc, trigger, app.StubData)
	if a := app.Status.Snapshot().Apply; a.Phase == state.ERROR {
		return errors.New(a.Err)
	}
	return nil
}
