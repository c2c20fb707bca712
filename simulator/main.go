package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/rook-computer/inkpanel/internal/app"
	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/sink"
	"github.com/rook-computer/inkpanel/internal/web"
)

func main() {
	defaults, err := web.DefaultServerConfigFromEnv(":8080")
	if err != nil {
		fmt.Println("server config error:", err)
		os.Exit(2)
	}

	listenAddr := flag.String("listen", defaults.ListenAddr, "http listen address; also configurable via "+web.EnvListenAddr)
	devMode := flag.Bool("dev", defaults.DevMode, "enable dev mode; also configurable via "+web.EnvDevMode)
	staticDir := flag.String("static-dir", "", "serve static UI from this directory (optional); when empty, embedded web UI assets are served")
	dataDir := flag.String("data-dir", filepath.Join(os.TempDir(), "inkpanel-sim"), "simulated data directory")
	logLevel := flag.String("log-level", "debug", "log level")
	flag.Parse()

	processCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := config.DefaultSettings()
	settings.DataDir = filepath.Clean(*dataDir)
	settings.PhotosDir = filepath.Join(settings.DataDir, "photos")
	settings.OutputPNG = ""
	settings.Log.Level = *logLevel
	settings.Cache.Backend = "memory"

	logger, err := app.NewLogger(settings.Log, os.Stderr)
	if err != nil {
		fmt.Println("logger error:", err)
		os.Exit(2)
	}
	defer logger.Close()

	a, catalog, err := app.Build(processCtx, settings, logger, app.BuildOptions{Offline: true, NoDisplay: true})
	if err != nil {
		fmt.Println("build error:", err)
		os.Exit(1)
	}
	display := NewSimDisplay()
	a.Sinks = []sink.Sink{display}
	control := NewSimControl(a, display)
	a.Buttons = control.Buttons

	if watcher, err := config.NewWatcher(a.Docs.Path(), logger); err == nil {
		a.Watcher = watcher
	}

	api := web.NewRouter(web.RouterConfig{
		StaticDir: *staticDir,
		DevMode:   *devMode,
		Deps: web.APIV1Deps{
			Dashboard: a,
			Presets:   a.Docs,
			Catalog:   catalog,
			Status:    a.Status,
			PhotosDir: settings.PhotosDir,
			SafeArea:  web.SafeArea{Width: render.CanvasWidth, Height: render.CanvasHeight, Margins: settings.Display.Margins},
			Logger:    logger,
		},
	})
	r := chi.NewRouter()
	r.Mount("/sim", control.Routes())
	r.Mount("/", api)
	a.Web = web.NewHTTPServer(*listenAddr, r, logger)

	fmt.Println("inkpanel simulator listening on", *listenAddr)
	fmt.Println("Data dir:", settings.DataDir)
	fmt.Println("API: http://" + trimLeadingColon(*listenAddr) + "/api/v1/")
	fmt.Println("Display: http://" + trimLeadingColon(*listenAddr) + "/sim/display.png")

	if err := a.Start(processCtx); err != nil && processCtx.Err() == nil {
		fmt.Println("app error:", err)
		os.Exit(1)
	}
}

func trimLeadingColon(addr string) string {
	// Best-effort for display; don't attempt full URL parsing here.
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	if addr == "" {
		return "127.0.0.1:8080"
	}
	// If it's already a host:port, keep it.
	return addr
}
