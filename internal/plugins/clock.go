package plugins

import (
	"image"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render"
)

// Clock shows when the panel was last refreshed.
type Clock struct {
	deps Deps
}

func (*Clock) Name() string        { return "clock" }
func (*Clock) DisplayName() string { return "Clock" }

func (*Clock) Defaults() map[string]any {
	return map[string]any{"format": "15:04", "date_format": "Monday, 2 January", "title": "Updated"}
}

func (*Clock) Schema() Schema {
	return Schema{
		"format":      {Type: "string", Label: "Time Format", Help: "Go layout, e.g. 15:04"},
		"date_format": {Type: "string", Label: "Date Format"},
		"title":       {Type: "string", Label: "Title"},
	}
}

func (p *Clock) Render(tc *render.TileContext, bounds image.Rectangle, cfg map[string]any) error {
	tc.FillBackground()
	now := tc.Now.In(p.deps.location())
	ink := tc.Color("black", palette.Black)
	cx := bounds.Min.X + bounds.Dx()/2
	maxW := bounds.Dx() - 12

	title := optString(cfg, "title", "")
	timeText := now.Format(optString(cfg, "format", "15:04"))
	dateText := now.Format(optString(cfg, "date_format", "Monday, 2 January"))

	titleStyle := render.TextStyle{Face: render.FaceSub, Color: tc.Color("red", palette.Red), Align: render.TextAlignCenter}
	timeStyle := render.TextStyle{Face: render.FaceTemp, Color: ink, Align: render.TextAlignCenter}
	dateStyle := render.TextStyle{Face: render.FaceMeta, Color: ink, Align: render.TextAlignCenter}

	total := tc.MeasureText(timeText, timeStyle).LineHeight + tc.MeasureText(dateText, dateStyle).LineHeight
	if title != "" {
		total += tc.MeasureText(title, titleStyle).LineHeight
	}
	y := bounds.Min.Y + max(6, (bounds.Dy()-total)/2)
	if title != "" {
		y += tc.DrawTextFit(title, cx, y, maxW, titleStyle).LineHeight
	}
	y += tc.DrawTextFit(timeText, cx, y, maxW, timeStyle).LineHeight
	tc.DrawTextFit(dateText, cx, y, maxW, dateStyle)
	return nil
}
