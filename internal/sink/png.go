package sink

import (
	"context"
	"fmt"

	"github.com/rook-computer/inkpanel/internal/atomicfile"
	"github.com/rook-computer/inkpanel/internal/render"
)

// PNGFile writes the canvas as an indexed PNG, replacing the file
// atomically so the control UI never serves a torn image.
type PNGFile struct {
	Path string
}

func (p PNGFile) Name() string { return "png" }

func (p PNGFile) Write(_ context.Context, canvas *render.Canvas) error {
	data, err := canvas.PNG()
	if err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return atomicfile.Write(p.Path, data, 0o644)
}
