package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rook-computer/inkpanel/internal/app"
	"github.com/rook-computer/inkpanel/internal/buttons"
	"github.com/rook-computer/inkpanel/internal/config"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/system"
	"github.com/rook-computer/inkpanel/internal/web"
)

const envStdioLog = "INKPANEL_STDIO_LOG"

type globalFlags struct {
	settingsPath string
	stdioLog     string
	logLevel     string
}

func rootCommand() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "inkpanel",
		Short:         "Tile dashboard renderer for e-ink panels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Best-effort: send stdout/stderr, panics included, to a file so
			// crashes are diagnosable while the console is in graphics mode.
			path := g.stdioLog
			if path == "" {
				path = os.Getenv(envStdioLog)
			}
			if path != "" {
				if err := redirectStdIO(path); err != nil {
					fmt.Fprintln(os.Stderr, "stdio log redirect error:", err)
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.settingsPath, "settings", config.DefaultSettingsFile, "host settings file (TOML)")
	root.PersistentFlags().StringVar(&g.stdioLog, "stdio-log", "", "redirect stdout+stderr to this file; also "+envStdioLog)
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the log level from the settings file")

	root.AddCommand(serveCommand(&g), renderCommand(&g), pluginsCommand(&g))
	return root
}

// setup loads settings and opens the logger shared by every command.
func setup(g *globalFlags) (config.Settings, *app.CharmLogger, error) {
	s, err := config.LoadSettings(g.settingsPath)
	if err != nil {
		return s, nil, err
	}
	if g.logLevel != "" {
		s.Log.Level = g.logLevel
	}
	logger, err := app.NewLogger(s.Log, os.Stderr)
	if err != nil {
		return s, nil, err
	}
	return s, logger, nil
}

func serveCommand(g *globalFlags) *cobra.Command {
	var noButtons bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, hardware buttons and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Close()
			return serve(cmd.Context(), s, logger, noButtons)
		},
	}
	cmd.Flags().BoolVar(&noButtons, "no-buttons", false, "do not read key presses from /dev/input")
	return cmd
}

func serve(ctx context.Context, s config.Settings, logger *app.CharmLogger, noButtons bool) error {
	a, catalog, err := app.Build(ctx, s, logger, app.BuildOptions{Runner: system.ShellRunner{}})
	if err != nil {
		return err
	}

	srvCfg, err := web.DefaultServerConfigFromEnv(s.Listen)
	if err != nil {
		return err
	}
	handler := web.NewRouter(web.RouterConfig{
		DevMode: srvCfg.DevMode,
		Deps: web.APIV1Deps{
			Dashboard: a,
			Presets:   a.Docs,
			Catalog:   catalog,
			Status:    a.Status,
			PhotosDir: s.PhotosDir,
			SafeArea:  web.SafeArea{Width: render.CanvasWidth, Height: render.CanvasHeight, Margins: s.Display.Margins},
			Logger:    logger,
		},
	})
	a.Web = web.NewHTTPServer(srvCfg.ListenAddr, handler, logger)

	watcher, err := config.NewWatcher(a.Docs.Path(), logger)
	if err != nil {
		logger.Warnf("main", "document watcher disabled: %v", err)
	} else {
		a.Watcher = watcher
	}
	if !noButtons {
		a.Buttons = buttons.NewEvdev(buttons.DefaultKeymap, logger)
	}

	logger.Infof("main", "inkpanel serving on %s, document %s", srvCfg.ListenAddr, a.Docs.Path())
	if url, err := system.ControlURL(ctx, system.ShellRunner{}, srvCfg.ListenAddr); err == nil {
		logger.Infof("main", "control UI at %s", url)
	} else {
		logger.Debugf("main", "control UI address unknown: %v", err)
	}
	return a.Start(ctx)
}

func renderCommand(g *globalFlags) *cobra.Command {
	var (
		out     string
		stub    bool
		display bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the stored document once and write the outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Close()
			if out != "" {
				s.OutputPNG = out
			}
			a, _, err := app.Build(cmd.Context(), s, logger, app.BuildOptions{
				Offline:   stub,
				NoDisplay: !display,
				Runner:    system.ShellRunner{},
			})
			if err != nil {
				return err
			}
			err = a.RenderOnce(cmd.Context(), "cli")
			a.Close()
			if err != nil {
				return err
			}
			r := a.Status.Snapshot().LastRender
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %s (%d failed tiles)\n", s.OutputPNG, r.FailedTiles)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "PNG output path (default from settings)")
	cmd.Flags().BoolVar(&stub, "stub", false, "use sample data instead of the upstream APIs")
	cmd.Flags().BoolVar(&display, "display", false, "also write the framebuffer and upload sinks")
	return cmd
}

func pluginsCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the available tile plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Close()
			a, catalog, err := app.Build(cmd.Context(), s, logger, app.BuildOptions{Offline: true, NoDisplay: true})
			if err != nil {
				return err
			}
			defer a.Close()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			names := catalog.DisplayNames()
			for _, name := range catalog.Names() {
				fmt.Fprintf(tw, "%s\t%s\n", name, names[name])
			}
			return tw.Flush()
		},
	}
}
