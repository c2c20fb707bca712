package palette

import (
	"image"
	"image/color"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Indices into Default().
const (
	Black uint8 = iota
	White
	Green
	Blue
	Red
	Yellow
	Orange
)

// Entry is one named palette colour.
type Entry struct {
	Name string
	RGB  color.RGBA
}

// Palette is an ordered, immutable set of named colours used as the
// quantization target for every surface.
type Palette struct {
	entries []Entry
	colors  color.Palette
	byName  map[string]uint8
}

// New builds a palette from entries. At most 256 entries are kept.
func New(entries []Entry) *Palette {
	if len(entries) > 256 {
		entries = entries[:256]
	}
	p := &Palette{
		entries: make([]Entry, len(entries)),
		colors:  make(color.Palette, len(entries)),
		byName:  make(map[string]uint8, len(entries)),
	}
	for i, e := range entries {
		e.RGB.A = 0xFF
		p.entries[i] = e
		p.colors[i] = e.RGB
		p.byName[strings.ToLower(e.Name)] = uint8(i)
	}
	return p
}

var inky = New([]Entry{
	{Name: "black", RGB: color.RGBA{R: 0, G: 0, B: 0}},
	{Name: "white", RGB: color.RGBA{R: 255, G: 255, B: 255}},
	{Name: "green", RGB: color.RGBA{R: 0, G: 128, B: 0}},
	{Name: "blue", RGB: color.RGBA{R: 0, G: 0, B: 255}},
	{Name: "red", RGB: color.RGBA{R: 255, G: 0, B: 0}},
	{Name: "yellow", RGB: color.RGBA{R: 255, G: 255, B: 0}},
	{Name: "orange", RGB: color.RGBA{R: 255, G: 165, B: 0}},
})

// Default returns the seven-colour e-ink palette.
func Default() *Palette { return inky }

func (p *Palette) Len() int { return len(p.entries) }

// Entries returns a copy of the palette entries in index order.
func (p *Palette) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Colors returns a copy of the palette as a color.Palette.
func (p *Palette) Colors() color.Palette {
	out := make(color.Palette, len(p.colors))
	copy(out, p.colors)
	return out
}

// Index resolves a colour name (case-insensitive).
func (p *Palette) Index(name string) (uint8, bool) {
	idx, ok := p.byName[strings.ToLower(strings.TrimSpace(name))]
	return idx, ok
}

// IndexOr resolves name, returning fallback when the name is unknown.
func (p *Palette) IndexOr(name string, fallback uint8) uint8 {
	if idx, ok := p.Index(name); ok {
		return idx
	}
	return fallback
}

// Name returns the name of the entry at idx, or "" when out of range.
func (p *Palette) Name(idx uint8) string {
	if int(idx) >= len(p.entries) {
		return ""
	}
	return p.entries[idx].Name
}

// Color returns the colour at idx. Out-of-range indices map to entry 0.
func (p *Palette) Color(idx uint8) color.Color {
	if int(idx) >= len(p.colors) {
		return p.colors[0]
	}
	return p.colors[idx]
}

// Nearest returns the index of the palette entry closest to c,
// ignoring c's alpha.
func (p *Palette) Nearest(c color.Color) uint8 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return uint8(p.colors.Index(color.RGBA{R: n.R, G: n.G, B: n.B, A: 0xFF}))
}

// NewSurface allocates a w x h paletted surface filled with bg.
func (p *Palette) NewSurface(w, h int, bg uint8) *image.Paletted {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	img := image.NewPaletted(image.Rect(0, 0, w, h), p.colors)
	if bg != 0 {
		for i := range img.Pix {
			img.Pix[i] = bg
		}
	}
	return img
}

// Owns reports whether img was quantized against this palette.
func (p *Palette) Owns(img *image.Paletted) bool {
	if img == nil || len(img.Palette) != len(p.colors) {
		return false
	}
	for i := range p.colors {
		if img.Palette[i] != p.colors[i] {
			return false
		}
	}
	return true
}

// Mode selects how arbitrary colours are mapped onto the palette.
type Mode int

const (
	// Nearest maps every pixel to its closest entry with no error diffusion.
	// Used for icons, text and flat graphics.
	Nearest Mode = iota
	// Dither applies Floyd-Steinberg error diffusion. Used for photographs.
	Dither
)

func (m Mode) String() string {
	if m == Dither {
		return "dither"
	}
	return "nearest"
}

// Quantize maps src onto the palette and returns a new surface whose
// origin is (0,0). Transparent pixels are quantized as their premultiplied
// colour, so callers flatten alpha first when it matters.
func (p *Palette) Quantize(src image.Image, mode Mode) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), p.colors)
	if mode == Dither {
		xdraw.FloydSteinberg.Draw(dst, dst.Bounds(), src, b.Min)
		return dst
	}
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}

// Fill sets every pixel of r (clipped to dst) to idx.
func Fill(dst *image.Paletted, r image.Rectangle, idx uint8) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := dst.PixOffset(r.Min.X, y)
		for i := 0; i < r.Dx(); i++ {
			dst.Pix[row+i] = idx
		}
	}
}

// Paste copies the indices of src onto dst with src's origin at `at`,
// clipped to dst. Both surfaces must share a palette.
func Paste(dst, src *image.Paletted, at image.Point) {
	sb := src.Bounds()
	target := image.Rectangle{Min: at, Max: at.Add(sb.Size())}.Intersect(dst.Bounds())
	if target.Empty() {
		return
	}
	offset := sb.Min.Sub(at)
	for y := target.Min.Y; y < target.Max.Y; y++ {
		d := dst.PixOffset(target.Min.X, y)
		s := src.PixOffset(target.Min.X+offset.X, y+offset.Y)
		copy(dst.Pix[d:d+target.Dx()], src.Pix[s:s+target.Dx()])
	}
}

// Composite draws src onto dst with src's top-left at `at`. Pixels at least
// half opaque are mapped to their nearest entry; the rest are left untouched.
func (p *Palette) Composite(dst *image.Paletted, src image.Image, at image.Point) {
	sb := src.Bounds()
	target := image.Rectangle{Min: at, Max: at.Add(sb.Size())}.Intersect(dst.Bounds())
	if target.Empty() {
		return
	}
	offset := sb.Min.Sub(at)
	for y := target.Min.Y; y < target.Max.Y; y++ {
		for x := target.Min.X; x < target.Max.X; x++ {
			c := src.At(x+offset.X, y+offset.Y)
			if _, _, _, a := c.RGBA(); a < 0x8000 {
				continue
			}
			dst.SetColorIndex(x, y, p.Nearest(c))
		}
	}
}
