//go:build !linux

package buttons

// NewEvdev returns a source that never fires; input devices are only read
// on Linux.
func NewEvdev(keymap map[uint16]Event, l Logger) Buttons {
	return NewNoopButtons()
}
