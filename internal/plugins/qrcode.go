package plugins

import (
	"errors"
	"image"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/render/layout"
)

// QRCode draws a QR code with whole-pixel modules, centred in the tile.
type QRCode struct{}

func (*QRCode) Name() string        { return "qrcode" }
func (*QRCode) DisplayName() string { return "QR Code" }

func (*QRCode) Defaults() map[string]any {
	return map[string]any{"payload": "https://example.com", "caption": "", "level": "medium", "quiet_zone": true}
}

func (*QRCode) Schema() Schema {
	return Schema{
		"payload":    {Type: "string", Label: "Content"},
		"caption":    {Type: "string", Label: "Caption"},
		"level":      enum("Error Correction", "low", "medium", "high", "highest"),
		"quiet_zone": {Type: "bool", Label: "Quiet Zone"},
	}
}

func recoveryLevel(name string) qrcode.RecoveryLevel {
	switch strings.ToLower(name) {
	case "low":
		return qrcode.Low
	case "high":
		return qrcode.High
	case "highest":
		return qrcode.Highest
	}
	return qrcode.Medium
}

func (*QRCode) Render(tc *render.TileContext, bounds image.Rectangle, cfg map[string]any) error {
	payload := optString(cfg, "payload", "")
	if payload == "" {
		return errors.New("qrcode: no payload")
	}
	code, err := qrcode.New(payload, recoveryLevel(optString(cfg, "level", "medium")))
	if err != nil {
		return err
	}
	code.DisableBorder = !optBool(cfg, "quiet_zone", true)

	tc.FillBackground()
	area := layout.Inset(bounds, 6)
	caption := optString(cfg, "caption", "")
	captionStyle := render.TextStyle{Face: render.FaceMeta, Color: tc.Color("black", palette.Black), Align: render.TextAlignCenter}
	if caption != "" {
		m := tc.MeasureText("Ag", captionStyle)
		area, _ = layout.SplitHorizontal(area, area.Dy()-(m.Ascent+m.Descent+4))
	}

	bitmap := code.Bitmap()
	n := len(bitmap)
	module := layout.FitSquare(area).Dx() / max(n, 1)
	if module < 1 {
		return errors.New("qrcode: tile too small for payload")
	}
	side := module * n
	origin := layout.Center(area, side, side).Min
	ink := tc.Color("black", palette.Black)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				at := origin.Add(image.Pt(x*module, y*module))
				tc.Fill(image.Rectangle{Min: at, Max: at.Add(image.Pt(module, module))}, ink)
			}
		}
	}

	if caption != "" {
		tc.DrawTextFit(caption, bounds.Min.X+bounds.Dx()/2, origin.Y+side+4, area.Dx(), captionStyle)
	}
	return nil
}
