// Package sink delivers finished canvases to their destinations: a PNG
// file, the Linux framebuffer and an external upload command that drives
// the e-ink panel.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/rook-computer/inkpanel/internal/render"
)

// Sink receives every live render.
type Sink interface {
	Name() string
	Write(ctx context.Context, canvas *render.Canvas) error
}

// Closer is implemented by sinks that hold a device open between writes.
type Closer interface {
	Close() error
}

// CloseAll closes every sink that implements Closer.
func CloseAll(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
