package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rook-computer/inkpanel/internal/config"
)

// Logger is the component logger shared by every package of the host.
type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
	Warnf(component string, format string, args ...interface{})
	Debugf(component string, format string, args ...interface{})
}

type NoopLogger struct{}

func (NoopLogger) Infof(component, format string, args ...interface{})  {}
func (NoopLogger) Errorf(component, format string, args ...interface{}) {}
func (NoopLogger) Warnf(component, format string, args ...interface{})  {}
func (NoopLogger) Debugf(component, format string, args ...interface{}) {}

// CharmLogger writes leveled, timestamped lines with the component as a
// structured key.
type CharmLogger struct {
	l      *log.Logger
	closer io.Closer
}

// NewLogger builds the process logger. With a log file configured, output
// is rotated by lumberjack; otherwise it goes to console.
func NewLogger(settings config.LogSettings, console io.Writer) (*CharmLogger, error) {
	level, err := log.ParseLevel(strings.ToLower(settings.Level))
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", settings.Level, err)
	}
	if console == nil {
		console = os.Stderr
	}
	var w io.Writer = console
	var closer io.Closer
	if settings.File != "" {
		lj := &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    max(settings.MaxSizeMB, 1),
			MaxBackups: 3,
			MaxAge:     28,
		}
		w, closer = lj, lj
	}
	return &CharmLogger{
		l: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		closer: closer,
	}, nil
}

func (c *CharmLogger) Infof(component, format string, args ...interface{}) {
	c.l.Info(fmt.Sprintf(format, args...), "component", component)
}

func (c *CharmLogger) Errorf(component, format string, args ...interface{}) {
	c.l.Error(fmt.Sprintf(format, args...), "component", component)
}

func (c *CharmLogger) Warnf(component, format string, args ...interface{}) {
	c.l.Warn(fmt.Sprintf(format, args...), "component", component)
}

func (c *CharmLogger) Debugf(component, format string, args ...interface{}) {
	c.l.Debug(fmt.Sprintf(format, args...), "component", component)
}

// Close flushes and closes the log file, if any.
func (c *CharmLogger) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
