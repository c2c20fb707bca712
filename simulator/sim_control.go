package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rook-computer/inkpanel/internal/app"
	"github.com/rook-computer/inkpanel/internal/buttons"
	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/render"
)

type SimFaults struct {
	// DisplayFail makes every display write fail.
	DisplayFail bool `json:"displayFail"`
	// DisplayDelayMs slows display writes down so overlapping applies can
	// be tried by hand.
	DisplayDelayMs int `json:"displayDelayMs"`
}

// SimDisplay stands in for the panel: it keeps the last written image.
type SimDisplay struct {
	mu     sync.RWMutex
	png    []byte
	writes int
	faults SimFaults
}

func NewSimDisplay() *SimDisplay { return &SimDisplay{} }

func (d *SimDisplay) Name() string { return "simulated display" }

func (d *SimDisplay) Write(ctx context.Context, canvas *render.Canvas) error {
	faults := d.Faults()
	if faults.DisplayDelayMs > 0 {
		timer := time.NewTimer(time.Duration(faults.DisplayDelayMs) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if faults.DisplayFail {
		return errors.New("simulated display failure")
	}
	data, err := canvas.PNG()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.png = data
	d.writes++
	d.mu.Unlock()
	return nil
}

func (d *SimDisplay) Last() ([]byte, int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.png, d.writes
}

func (d *SimDisplay) Faults() SimFaults {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.faults
}

func (d *SimDisplay) SetFaults(v SimFaults) {
	d.mu.Lock()
	d.faults = v
	d.mu.Unlock()
}

// SimControl exposes the simulated hardware over HTTP.
type SimControl struct {
	App     *app.App
	Display *SimDisplay
	Buttons *buttons.Manual
}

func NewSimControl(a *app.App, display *SimDisplay) *SimControl {
	return &SimControl{App: a, Display: display, Buttons: buttons.NewManual()}
}

// Reset restores the default document and clears all faults.
func (c *SimControl) Reset() error {
	c.Display.SetFaults(SimFaults{})
	_, err := c.App.SaveDocument(config.Default())
	return err
}

func (c *SimControl) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
		if err := c.Reset(); err != nil {
			writeSimError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeSimJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Post("/button/{event}", func(w http.ResponseWriter, r *http.Request) {
		ev := buttons.Event(chi.URLParam(r, "event"))
		switch ev {
		case buttons.Refresh, buttons.NextPreset, buttons.Exit:
		default:
			writeSimError(w, http.StatusBadRequest, "unknown button event")
			return
		}
		if !c.Buttons.Press(ev) {
			writeSimError(w, http.StatusServiceUnavailable, "button queue full")
			return
		}
		writeSimJSON(w, http.StatusOK, map[string]any{"ok": true, "event": ev})
	})

	r.Get("/display.png", func(w http.ResponseWriter, r *http.Request) {
		data, _ := c.Display.Last()
		if data == nil {
			writeSimError(w, http.StatusNotFound, "nothing displayed yet")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	})

	r.Get("/faults", func(w http.ResponseWriter, r *http.Request) {
		writeSimJSON(w, http.StatusOK, c.Display.Faults())
	})
	r.Post("/faults", func(w http.ResponseWriter, r *http.Request) {
		var patch struct {
			DisplayFail    *bool `json:"displayFail"`
			DisplayDelayMs *int  `json:"displayDelayMs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeSimError(w, http.StatusBadRequest, "invalid json")
			return
		}
		current := c.Display.Faults()
		if patch.DisplayFail != nil {
			current.DisplayFail = *patch.DisplayFail
		}
		if patch.DisplayDelayMs != nil {
			current.DisplayDelayMs = max(*patch.DisplayDelayMs, 0)
		}
		c.Display.SetFaults(current)
		writeSimJSON(w, http.StatusOK, current)
	})
	return r
}

func writeSimJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSimError(w http.ResponseWriter, status int, message string) {
	writeSimJSON(w, status, map[string]any{"error": message})
}
