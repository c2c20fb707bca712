//go:build linux

package buttons

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Evdev reads key presses from every /dev/input/event* device and maps
// them to button events.
type Evdev struct {
	Glob   string
	Keymap map[uint16]Event
	Logger Logger

	ch     chan Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEvdev returns the hardware button source.
func NewEvdev(keymap map[uint16]Event, l Logger) Buttons {
	if keymap == nil {
		keymap = DefaultKeymap
	}
	if l == nil {
		l = nopLogger{}
	}
	return &Evdev{Glob: "/dev/input/event*", Keymap: keymap, Logger: l, ch: make(chan Event, 4)}
}

func (e *Evdev) Events() <-chan Event { return e.ch }

// Start launches one reader per device. Having no devices is not an error;
// the source then simply never fires.
func (e *Evdev) Start(ctx context.Context) error {
	paths, err := filepath.Glob(e.Glob)
	if err != nil {
		return fmt.Errorf("evdev glob %q: %w", e.Glob, err)
	}
	if len(paths) == 0 {
		e.Logger.Infof("input", "no evdev devices match %s", e.Glob)
		return nil
	}
	ctx, e.cancel = context.WithCancel(ctx)
	for _, p := range paths {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.read(ctx, p)
		}()
	}
	e.Logger.Infof("input", "watching %d input devices", len(paths))
	return nil
}

func (e *Evdev) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	return nil
}

func (e *Evdev) read(ctx context.Context, path string) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	tvSize := binary.Size(unix.Timeval{})
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(pollFds, 250); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if pollFds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		for _, ev := range decodeKeyPresses(buf[:n], tvSize, e.Keymap) {
			e.Logger.Infof("input", "%s pressed on %s", ev, path)
			select {
			case e.ch <- ev:
			default:
			}
		}
	}
}
