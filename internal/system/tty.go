package system

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// KD console modes from linux/kd.h
const (
	kdText     = 0x00
	kdGraphics = 0x01
	kdSetMode  = 0x4B3A // KDSETMODE ioctl
)

var vtPaths = []string{"/dev/tty", "/dev/tty0"}

// SetGraphicsMode switches the active console to graphics mode so the text
// console stops drawing over framebuffer output.
func SetGraphicsMode() error { return setConsoleMode(kdGraphics, "KD_GRAPHICS") }

// RestoreTextMode returns the console to text mode.
func RestoreTextMode() error { return setConsoleMode(kdText, "KD_TEXT") }

func setConsoleMode(mode int, label string) error {
	var lastErr error
	for _, p := range vtPaths {
		fd, err := unix.Open(p, unix.O_RDONLY, 0)
		if err != nil {
			lastErr = fmt.Errorf("open %s: %w", p, err)
			continue
		}
		err = unix.IoctlSetInt(fd, kdSetMode, mode)
		_ = unix.Close(fd)
		if err != nil {
			lastErr = fmt.Errorf("%s on %s: %w", label, p, err)
			continue
		}
		return nil
	}
	return lastErr
}

func HideCursor() error { return writeVT("\x1b[?25l") }
func ShowCursor() error { return writeVT("\x1b[?25h") }

func writeVT(s string) error {
	var lastErr error
	for _, p := range vtPaths {
		f, err := os.OpenFile(p, os.O_WRONLY, 0)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = f.WriteString(s)
		_ = f.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("write VT: %w", lastErr)
}

type logger interface {
	Infof(string, string, ...interface{})
	Errorf(string, string, ...interface{})
}

// EnterGraphicsConsole hides the cursor and switches to graphics mode,
// logging failures. The returned func undoes both.
func EnterGraphicsConsole(l logger) (restore func()) {
	if err := SetGraphicsMode(); err != nil {
		l.Errorf("tty", "KD_GRAPHICS failed: %v", err)
	} else {
		l.Infof("tty", "KD_GRAPHICS set")
	}
	if err := HideCursor(); err != nil {
		l.Errorf("tty", "hide cursor failed: %v", err)
	}
	return func() {
		if err := ShowCursor(); err != nil {
			l.Errorf("tty", "show cursor failed: %v", err)
		}
		if err := RestoreTextMode(); err != nil {
			l.Errorf("tty", "KD_TEXT failed: %v", err)
		}
	}
}
