package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rook-computer/inkpanel/internal/cache"
	"github.com/rook-computer/inkpanel/internal/render"
)

const DefaultSettingsFile = "inkpanel.toml"

// Settings configure the host process. They are read once at startup from
// a TOML file; the dashboard document lives separately in DataDir.
type Settings struct {
	Listen    string `toml:"listen"`
	DataDir   string `toml:"data_dir"`
	PhotosDir string `toml:"photos_dir"`
	// OutputPNG is where every live render is written. Empty disables the
	// PNG sink.
	OutputPNG string `toml:"output_png"`
	FontPath  string `toml:"font_path"`
	// PreviewStub forces stub data for scheduled renders too.
	PreviewStub bool `toml:"preview_stub"`

	Log     LogSettings     `toml:"log"`
	Cache   cache.Config    `toml:"cache"`
	Display DisplaySettings `toml:"display"`
	HTTP    HTTPSettings    `toml:"http"`
}

type LogSettings struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

type DisplaySettings struct {
	Framebuffer   bool           `toml:"framebuffer"`
	Device        string         `toml:"device"`
	UploadCommand string         `toml:"upload_command"`
	UploadArgs    []string       `toml:"upload_args"`
	Margins       render.Margins `toml:"margins"`
}

type HTTPSettings struct {
	RetryMax       int `toml:"retry_max"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the upstream request timeout.
func (h HTTPSettings) Timeout() time.Duration {
	return time.Duration(max(h.TimeoutSeconds, 1)) * time.Second
}

func DefaultSettings() Settings {
	return Settings{
		Listen:    ":8000",
		DataDir:   "data",
		PhotosDir: "photos",
		OutputPNG: filepath.Join("data", "generated", "dashboard.png"),
		Log:       LogSettings{Level: "info", MaxSizeMB: 10},
		Cache:     cache.Config{Backend: "memory", Prefix: "inkpanel:"},
		Display: DisplaySettings{
			Device:  "/dev/fb0",
			Margins: render.DefaultMargins,
		},
		HTTP: HTTPSettings{RetryMax: 2, TimeoutSeconds: 10},
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// LoadSettings reads path over the defaults. A missing file yields the
// defaults unchanged.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("validate settings %s: %w", path, err)
	}
	return s, nil
}

func (s Settings) Validate() error {
	if !validLogLevels[strings.ToLower(s.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be debug, info, warn or error", s.Log.Level)
	}
	if s.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	m := s.Display.Margins
	if m.Left < 0 || m.Top < 0 || m.Right < 0 || m.Bottom < 0 {
		return fmt.Errorf("display margins must not be negative: %+v", m)
	}
	if m.Left+m.Right >= render.CanvasWidth || m.Top+m.Bottom >= render.CanvasHeight {
		return fmt.Errorf("display margins leave no drawing area: %+v", m)
	}
	if s.HTTP.RetryMax < 0 {
		return fmt.Errorf("http.retry_max must not be negative: %d", s.HTTP.RetryMax)
	}
	return nil
}

func (s Settings) DocumentPath() string { return filepath.Join(s.DataDir, "config.json") }
func (s Settings) PresetDir() string    { return filepath.Join(s.DataDir, "presets") }

// CacheConfig fills in a file cache directory under DataDir when none is set.
func (s Settings) CacheConfig() cache.Config {
	c := s.Cache
	if c.Dir == "" {
		c.Dir = filepath.Join(s.DataDir, "cache")
	}
	return c
}
