package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig configures the full HTTP surface.
type RouterConfig struct {
	// StaticDir, when set to an existing directory, replaces the embedded UI.
	StaticDir string
	DevMode   bool
	Deps      APIV1Deps
}

// NewRouter builds the handler used by both the device and the simulator:
//   - /api/v1/* for the API
//   - / for the web UI
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(cfg.Deps.withDefaults().Logger))
	if cfg.DevMode {
		r.Use(WithDevCORS)
	}
	r.Mount("/api/v1", apiV1Router(cfg.Deps))
	r.Handle("/*", StaticUIHandler(cfg.StaticDir))
	return r
}

func requestLogger(l Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			if ww.Status() >= http.StatusBadRequest {
				l.Errorf("web", "%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
			}
		})
	}
}
