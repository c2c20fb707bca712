package sink

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render"
)

func testCanvas() *render.Canvas {
	pal := palette.Default()
	img := pal.NewSurface(4, 2, palette.White)
	img.SetColorIndex(0, 0, palette.Red)
	img.SetColorIndex(3, 1, palette.Blue)
	return &render.Canvas{Image: img}
}

func TestPNGFileWritesIndexedImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dashboard.png")
	if err := (PNGFile{Path: path}).Write(context.Background(), testCanvas()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p, ok := img.(*image.Paletted)
	if !ok {
		t.Fatalf("decoded %T, want *image.Paletted", img)
	}
	if p.ColorIndexAt(0, 0) != palette.Red || p.ColorIndexAt(1, 0) != palette.White {
		t.Fatalf("pixels lost in round trip")
	}
}

func TestBlitScalesNearestNeighbour(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 8, 4))
	blit(dst, testCanvas().Image)

	red := palette.Default().Color(palette.Red)
	blue := palette.Default().Color(palette.Blue)
	for _, pt := range []image.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		if !sameColor(dst.At(pt.X, pt.Y), red) {
			t.Fatalf("pixel %v = %v, want red", pt, dst.At(pt.X, pt.Y))
		}
	}
	if !sameColor(dst.At(7, 3), blue) {
		t.Fatalf("bottom-right = %v, want blue", dst.At(7, 3))
	}
	if _, _, _, a := dst.At(4, 0).RGBA(); a != 0xffff {
		t.Fatalf("blitted pixels must be opaque")
	}
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, _ := a.RGBA()
	br, bg, bb, _ := b.RGBA()
	return ar == br && ag == bg && ab == bb
}

type recordingRunner struct {
	cmd    string
	args   []string
	stdin  []byte
	err    error
	errOut string
}

func (r *recordingRunner) Run(_ context.Context, stdin io.Reader, cmd string, args ...string) (string, string, error) {
	r.cmd, r.args = cmd, args
	if stdin != nil {
		r.stdin, _ = io.ReadAll(stdin)
	}
	return "", r.errOut, r.err
}

func TestScriptStreamsPNG(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScript("inky-show", []string{"--saturation", "0.5"}, runner)
	if err := s.Write(context.Background(), testCanvas()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if runner.cmd != "inky-show" || strings.Join(runner.args, " ") != "--saturation 0.5" {
		t.Fatalf("ran %s %v", runner.cmd, runner.args)
	}
	if _, err := png.Decode(bytes.NewReader(runner.stdin)); err != nil {
		t.Fatalf("stdin is not a PNG: %v", err)
	}
}

func TestScriptIncludesStderr(t *testing.T) {
	runner := &recordingRunner{err: errors.New("exit 1"), errOut: "panel busy"}
	err := NewScript("inky-show", nil, runner).Write(context.Background(), testCanvas())
	if err == nil || !strings.Contains(err.Error(), "panel busy") {
		t.Fatalf("err = %v, want stderr tail", err)
	}
}

type closingSink struct {
	name   string
	closed bool
	err    error
}

func (c *closingSink) Name() string                                { return c.name }
func (c *closingSink) Write(context.Context, *render.Canvas) error { return nil }
func (c *closingSink) Close() error                                { c.closed = true; return c.err }

func TestCloseAll(t *testing.T) {
	a := &closingSink{name: "a"}
	b := &closingSink{name: "b", err: errors.New("stuck")}
	err := CloseAll([]Sink{a, PNGFile{}, b})
	if !a.closed || !b.closed {
		t.Fatalf("closers not called")
	}
	if err == nil || !strings.Contains(err.Error(), "b: stuck") {
		t.Fatalf("err = %v", err)
	}
}

func TestFramebufferCloseWithoutOpen(t *testing.T) {
	f := NewFramebuffer("", nil)
	if f.Device != "/dev/fb0" {
		t.Fatalf("device = %s", f.Device)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFramebufferMissingDeviceStaysClosed(t *testing.T) {
	f := NewFramebuffer(filepath.Join(t.TempDir(), "fb9"), nil)
	err := f.Write(context.Background(), testCanvas())
	if err == nil || !strings.Contains(err.Error(), "fb9") {
		t.Fatalf("Write err = %v, want open failure naming the device", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close after failed open: %v", err)
	}
	if err := f.Write(context.Background(), testCanvas()); err == nil {
		t.Fatalf("second Write succeeded without a device")
	}
}
