package sink

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rook-computer/inkpanel/internal/render"
	"github.com/rook-computer/inkpanel/internal/system"
)

const defaultScriptTimeout = 2 * time.Minute

// Script streams the PNG into an external command on stdin. The command
// is expected to push the image to the e-ink panel, which can take tens
// of seconds.
type Script struct {
	Command string
	Args    []string
	Runner  system.Runner
	Timeout time.Duration
}

func NewScript(command string, args []string, runner system.Runner) *Script {
	if runner == nil {
		runner = system.ShellRunner{}
	}
	return &Script{Command: command, Args: args, Runner: runner, Timeout: defaultScriptTimeout}
}

func (s *Script) Name() string { return "script" }

func (s *Script) Write(ctx context.Context, canvas *render.Canvas) error {
	data, err := canvas.PNG()
	if err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	_, stderr, err := s.Runner.Run(ctx, bytes.NewReader(data), s.Command, s.Args...)
	if err != nil {
		if stderr != "" {
			return fmt.Errorf("%s: %w: %s", s.Command, err, stderr)
		}
		return fmt.Errorf("%s: %w", s.Command, err)
	}
	return nil
}
