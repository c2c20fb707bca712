package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Runner executes an external command. stdin may be nil.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, cmd string, args ...string) (stdout, stderr string, err error)
}

type NoopRunner struct{}

func (NoopRunner) Run(context.Context, io.Reader, string, ...string) (string, string, error) {
	return "", "", nil
}

// ShellRunner executes commands resolved through PATH, optionally via sudo.
// Stdout and stderr are kept up to OutputLimit bytes each, newest last.
type ShellRunner struct {
	Sudo        bool
	OutputLimit int
}

const defaultOutputLimit = 4096

func (r ShellRunner) Run(ctx context.Context, stdin io.Reader, cmd string, args ...string) (string, string, error) {
	name := cmd
	if r.Sudo {
		args = append([]string{cmd}, args...)
		name = "sudo"
	}
	limit := r.OutputLimit
	if limit <= 0 {
		limit = defaultOutputLimit
	}
	c := exec.CommandContext(ctx, name, args...)
	c.Stdin = stdin
	outBuf := &TailBuffer{Max: limit}
	errBuf := &TailBuffer{Max: limit}
	c.Stdout = outBuf
	c.Stderr = errBuf
	err := c.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return outBuf.String(), errBuf.String(), fmt.Errorf("exit %d: %w", exitErr.ExitCode(), err)
		}
		return outBuf.String(), errBuf.String(), err
	}
	return outBuf.String(), errBuf.String(), nil
}

// TailBuffer keeps the last Max bytes written to it.
type TailBuffer struct {
	mu  sync.Mutex
	buf []byte
	Max int
}

func (r *TailBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Max <= 0 {
		return len(p), nil
	}
	if len(p) >= r.Max {
		r.buf = append(r.buf[:0], p[len(p)-r.Max:]...)
		return len(p), nil
	}
	if len(r.buf)+len(p) > r.Max {
		drop := len(r.buf) + len(p) - r.Max
		r.buf = append(r.buf[drop:], p...)
		return len(p), nil
	}
	r.buf = append(r.buf, p...)
	return len(p), nil
}

func (r *TailBuffer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(bytes.TrimSpace(r.buf))
}
