package sink

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	fb "github.com/gonutz/framebuffer"

	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/system"
)

type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

// Framebuffer mirrors the canvas onto a Linux framebuffer device, scaled
// to the device resolution. The device is opened on first write and the
// console is held in graphics mode until Close.
type Framebuffer struct {
	Device string
	Logger Logger

	mu      sync.Mutex
	dev     *fb.Device
	restore func()
}

func NewFramebuffer(device string, logger Logger) *Framebuffer {
	if device == "" {
		device = "/dev/fb0"
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Framebuffer{Device: device, Logger: logger}
}

type nopLogger struct{}

func (nopLogger) Infof(string, string, ...interface{})  {}
func (nopLogger) Errorf(string, string, ...interface{}) {}

func (f *Framebuffer) Name() string { return "framebuffer" }

func (f *Framebuffer) Write(_ context.Context, canvas *render.Canvas) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dev == nil {
		dev, err := fb.Open(f.Device)
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Device, err)
		}
		f.dev = dev
		bounds := dev.Bounds()
		f.Logger.Infof("fb", "framebuffer open, bounds=%dx%d", bounds.Dx(), bounds.Dy())
		f.restore = system.EnterGraphicsConsole(f.Logger)
	}
	blit(f.dev, canvas.Image)
	return nil
}

func (f *Framebuffer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dev == nil {
		return nil
	}
	if f.restore != nil {
		f.restore()
		f.restore = nil
	}
	f.dev.Close()
	f.dev = nil
	return nil
}

// blit copies src into dst with nearest-neighbour sampling, stretching it
// over dst's full bounds. Palette colours are resolved once up front.
func blit(dst draw.Image, src *image.Paletted) {
	db := dst.Bounds()
	sb := src.Bounds()
	if db.Empty() || sb.Empty() {
		return
	}
	colors := make([]color.RGBA, len(src.Palette))
	for i, c := range src.Palette {
		r, g, b, _ := c.RGBA()
		colors[i] = color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xFF}
	}
	for y := 0; y < db.Dy(); y++ {
		sy := sb.Min.Y + (y*sb.Dy())/db.Dy()
		for x := 0; x < db.Dx(); x++ {
			sx := sb.Min.X + (x*sb.Dx())/db.Dx()
			idx := int(src.ColorIndexAt(sx, sy))
			if idx < len(colors) {
				dst.Set(db.Min.X+x, db.Min.Y+y, colors[idx])
			}
		}
	}
}
