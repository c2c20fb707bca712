package render

import "github.com/rook-computer/inkpanel/internal/render/layout"

// Panel geometry for the 7.3" seven-colour e-ink display.
const (
	CanvasWidth  = 800
	CanvasHeight = 480
)

// Margins are pixel insets from the canvas edges. The inset rectangle is
// the area handed to the grid resolver.
type Margins struct {
	Left   int `json:"left" toml:"left"`
	Top    int `json:"top" toml:"top"`
	Right  int `json:"right" toml:"right"`
	Bottom int `json:"bottom" toml:"bottom"`
}

// DefaultMargins keep tiles clear of the panel bezel.
var DefaultMargins = Margins{Left: 60, Top: 35, Right: 55, Bottom: 10}

// Area returns the inclusive drawing area inside a width x height canvas.
func (m Margins) Area(width, height int) layout.TileRect {
	return layout.TileRect{
		Left:   m.Left,
		Top:    m.Top,
		Right:  width - 1 - m.Right,
		Bottom: height - 1 - m.Bottom,
	}
}
