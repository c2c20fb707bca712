package plugins

import (
	"image"
	"strings"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/render/layout"
)

// Text is a static note.
type Text struct{}

func (*Text) Name() string        { return "text" }
func (*Text) DisplayName() string { return "Note" }

func (*Text) Defaults() map[string]any {
	return map[string]any{"title": "Note", "body": "", "color": "black", "pad": 12}
}

func (*Text) Schema() Schema {
	return Schema{
		"title": {Type: "string", Label: "Title"},
		"body":  {Type: "text", Label: "Text"},
		"color": enum("Title Color", "black", "red", "blue", "green", "orange"),
		"pad":   number("Padding", 0, 30),
	}
}

func (*Text) Render(tc *render.TileContext, bounds image.Rectangle, cfg map[string]any) error {
	tc.FillBackground()
	area := layout.Inset(bounds, clampInt(optInt(cfg, "pad", 12), 0, 30))
	x, y := area.Min.X, area.Min.Y
	width, bottom := area.Dx(), area.Max.Y
	ink := tc.Color("black", palette.Black)

	if title := optString(cfg, "title", ""); title != "" {
		m := tc.DrawTextFit(title, x, y, width, render.TextStyle{Face: render.FaceTitle, Color: tc.Color(optString(cfg, "color", "black"), ink)})
		y += m.LineHeight + 6
	}

	body := render.TextStyle{Face: render.FaceBody, Color: ink}
	lineH := tc.MeasureText("Ag", body).LineHeight + 2
	for _, para := range strings.Split(optString(cfg, "body", ""), "\n") {
		for _, line := range render.Wrap(para, width, tc.Face(render.FaceBody)) {
			if y+lineH > bottom {
				return nil
			}
			tc.DrawText(line, x, y, body)
			y += lineH
		}
	}
	return nil
}
