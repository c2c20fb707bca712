package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const sseKeepalive = 15 * time.Second

// streamApplyStatus sends the apply status as server-sent "status" events
// until no job is running or the client goes away.
func (h *apiHandlers) streamApplyStatus(w http.ResponseWriter, r *http.Request) {
	updates, cancel := h.deps.Status.Subscribe()
	defer cancel()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.deps.Logger.Errorf("web", "status stream: %v", err)
		return
	}

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case s := <-updates:
			data, err := json.Marshal(s)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
				return
			}
			if !s.Apply.Phase.Running() {
				_ = rc.Flush()
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
