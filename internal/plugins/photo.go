package plugins

import (
	"image"

	"github.com/rook-computer/inkpanel/internal/palette"
	"github.com/rook-computer/inkpanel/internal/photo"
	"github.com/rook-computer/inkpanel/internal/render"
)

// Photo fills its tile with a picture from the photos directory.
type Photo struct {
	deps Deps
}

func (*Photo) Name() string        { return "photo" }
func (*Photo) DisplayName() string { return "Photo" }

func (*Photo) Defaults() map[string]any {
	return map[string]any{"path": "", "fit": "cover", "radius": 0}
}

func (*Photo) Schema() Schema {
	return Schema{
		"path": {
			Type:  "string",
			Label: "Photo Path (optional)",
			Help:  "Relative to photos/, absolute, or a pattern such as trips/**/*.jpg.",
		},
		"upload": {Type: "file", Label: "Upload Photo", Target: "path"},
		"fit":    enum("Fit", "cover", "contain"),
		"radius": number("Corner Radius", 0, 60),
	}
}

func (p *Photo) Render(tc *render.TileContext, bounds image.Rectangle, cfg map[string]any) error {
	// Patterns rotate through their matches once a day.
	path, err := photo.Select(p.deps.PhotosDir, optString(cfg, "path", ""), tc.Now.YearDay())
	if err != nil {
		return err
	}
	img, err := photo.Load(path)
	if err != nil {
		return err
	}
	w, h := tc.Size()
	fitted, err := photo.Fit(img, w, h, photo.ParseFit(optString(cfg, "fit", "cover")))
	if err != nil {
		return err
	}
	radius := clampInt(optInt(cfg, "radius", 0), 0, min(w, h)/2)
	tc.DrawImage(photo.PrepareForPaste(fitted, radius, tc.Palette), bounds.Min, palette.Dither)
	return nil
}
