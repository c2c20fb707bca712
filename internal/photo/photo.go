// Package photo prepares photographs for a paletted tile: decoding with EXIF
// orientation, fitting to the tile, optional rounded corners and the final
// quantization.
package photo

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/rook-computer/inkpanel/internal/palette"
)

// ErrEmptyImage is returned when a decoded image has no pixels.
var ErrEmptyImage = errors.New("photo: empty image")

// FitMode selects how a photo is scaled into a tile.
type FitMode int

const (
	// FitCover scales to fill the tile and crops the overflow around the centre.
	FitCover FitMode = iota
	// FitContain scales to fit inside the tile and letterboxes on white.
	FitContain
)

func (m FitMode) String() string {
	if m == FitContain {
		return "contain"
	}
	return "cover"
}

// ParseFit maps a config value to a FitMode. Anything but "contain" is cover.
func ParseFit(s string) FitMode {
	if strings.EqualFold(strings.TrimSpace(s), "contain") {
		return FitContain
	}
	return FitCover
}

// Load opens a photo and applies its EXIF orientation.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("photo: open %s: %w", path, err)
	}
	return Normalize(img)
}

// Decode reads a photo from r and applies its EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("photo: decode: %w", err)
	}
	return Normalize(img)
}

// Normalize converts img to 8-bit NRGBA. Embedded colour profiles are not
// applied; the panel palette is far coarser than any profile correction.
func Normalize(img image.Image) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return imaging.Clone(img), nil
}

// Fit scales img to exactly w x h using mode.
func Fit(img image.Image, w, h int, mode FitMode) (*image.NRGBA, error) {
	if mode == FitContain {
		return Contain(img, w, h)
	}
	return Cover(img, w, h)
}

// Cover scales img so it covers w x h and crops the centre.
func Cover(img image.Image, w, h int) (*image.NRGBA, error) {
	if err := checkSizes(img, w, h); err != nil {
		return nil, err
	}
	return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos), nil
}

// Contain scales img to fit inside w x h, keeping its aspect ratio, and
// centres it on a white background. Small photos are scaled up.
func Contain(img image.Image, w, h int) (*image.NRGBA, error) {
	if err := checkSizes(img, w, h); err != nil {
		return nil, err
	}
	b := img.Bounds()
	scale := min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	nw := max(1, int(float64(b.Dx())*scale))
	nh := max(1, int(float64(b.Dy())*scale))
	scaled := imaging.Resize(img, nw, nh, imaging.Lanczos)
	bg := imaging.New(w, h, color.White)
	return imaging.Paste(bg, scaled, image.Pt((w-nw)/2, (h-nh)/2)), nil
}

func checkSizes(img image.Image, w, h int) error {
	if img == nil || img.Bounds().Empty() {
		return ErrEmptyImage
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("photo: invalid target size %dx%d", w, h)
	}
	return nil
}

// RoundedMask returns a copy of img whose pixels outside a rounded
// rectangle of the given radius are transparent. A radius <= 0 returns an
// unmasked copy.
func RoundedMask(img image.Image, radius int) image.Image {
	b := img.Bounds()
	if radius <= 0 {
		return imaging.Clone(img)
	}
	radius = min(radius, min(b.Dx(), b.Dy())/2)
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.DrawRoundedRectangle(0, 0, float64(b.Dx()), float64(b.Dy()), float64(radius))
	dc.Clip()
	dc.DrawImage(imaging.Clone(img), 0, 0)
	return dc.Image()
}

// PrepareForPaste rounds img's corners, flattens it onto white and
// quantizes it with Floyd-Steinberg dithering, ready for palette.Paste.
func PrepareForPaste(img image.Image, radius int, pal *palette.Palette) *image.Paletted {
	rounded := RoundedMask(img, radius)
	b := rounded.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), color.White)
	flat = imaging.Overlay(flat, rounded, image.Point{}, 1.0)
	return pal.Quantize(flat, palette.Dither)
}
