package render

import (
	"image"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const ellipsis = "…"

// Measure returns the width and height of the ink bounding box of text.
func Measure(text string, face font.Face) (width, height int) {
	if text == "" {
		return 0, 0
	}
	b, _ := font.BoundString(face, text)
	return (b.Max.X - b.Min.X).Ceil(), (b.Max.Y - b.Min.Y).Ceil()
}

// Truncate returns text unchanged when it fits maxWidth. Otherwise it drops
// trailing characters until the remainder plus an ellipsis fits. The result
// is "" when not even the ellipsis fits.
func Truncate(text string, maxWidth int, face font.Face) string {
	if w, _ := Measure(text, face); w <= maxWidth {
		return text
	}
	if maxWidth <= 0 {
		return ""
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if w, _ := Measure(candidate, face); w <= maxWidth {
			return candidate
		}
	}
	return ""
}

// Wrap breaks text into lines no wider than maxWidth. Words are split on
// whitespace and joined greedily with single spaces; a word that is wider
// than maxWidth on its own is truncated. Empty input yields one empty line.
func Wrap(text string, maxWidth int, face font.Face) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		candidate := line + " " + word
		if w, _ := Measure(candidate, face); w <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, Truncate(line, maxWidth, face))
		line = word
	}
	lines = append(lines, Truncate(line, maxWidth, face))
	return lines
}

// Metrics reports the text box of text in face.
func Metrics(text string, face font.Face) TextMetrics {
	m := face.Metrics()
	w, h := Measure(text, face)
	return TextMetrics{
		Width:      w,
		Height:     h,
		Ascent:     m.Ascent.Ceil(),
		Descent:    m.Descent.Ceil(),
		LineHeight: m.Height.Ceil(),
	}
}

// drawString renders text onto dst with its top edge at y and its pen start
// at x. Glyph coverage is thresholded at 50% and written as palette index
// idx, so no intermediate colours appear. It returns the advance in pixels.
func drawString(dst *image.Paletted, face font.Face, text string, x, y int, idx uint8) int {
	if text == "" {
		return 0
	}
	baseline := y + face.Metrics().Ascent.Ceil()
	dot := fixed.P(x, baseline)
	bounds, advance := font.BoundString(face, text)
	ink := image.Rect(
		(dot.X + bounds.Min.X).Floor(), (dot.Y + bounds.Min.Y).Floor(),
		(dot.X + bounds.Max.X).Ceil(), (dot.Y + bounds.Max.Y).Ceil(),
	).Intersect(dst.Bounds())
	if ink.Empty() {
		return advance.Ceil()
	}

	mask := image.NewAlpha(ink)
	d := &font.Drawer{Dst: mask, Src: image.Opaque, Face: face, Dot: dot}
	d.DrawString(text)
	for py := ink.Min.Y; py < ink.Max.Y; py++ {
		for px := ink.Min.X; px < ink.Max.X; px++ {
			if mask.AlphaAt(px, py).A >= 0x80 {
				dst.SetColorIndex(px, py, idx)
			}
		}
	}
	return advance.Ceil()
}
