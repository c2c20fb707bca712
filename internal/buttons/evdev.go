package buttons

import "encoding/binary"

const evKey = 0x01

// Linux input-event-codes.h
const (
	KeyA  = 30
	KeyB  = 48
	KeyC  = 46
	KeyD  = 32
	KeyF4 = 62
)

// DefaultKeymap matches the four front buttons of the Inky Impression
// when they are exposed through the gpio-keys overlay as A to D, plus F4
// on an attached keyboard.
var DefaultKeymap = map[uint16]Event{
	KeyA:  Refresh,
	KeyB:  NextPreset,
	KeyF4: Exit,
}

// decodeKeyPresses parses a buffer of input_event records and returns the
// mapped events for key-down transitions. tvSize is the size of the
// platform's struct timeval, which leads every record.
func decodeKeyPresses(buf []byte, tvSize int, keymap map[uint16]Event) []Event {
	eventSize := tvSize + 2 + 2 + 4
	var out []Event
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		rec := buf[off : off+eventSize]
		typ := binary.LittleEndian.Uint16(rec[tvSize : tvSize+2])
		code := binary.LittleEndian.Uint16(rec[tvSize+2 : tvSize+4])
		value := int32(binary.LittleEndian.Uint32(rec[tvSize+4 : tvSize+8]))
		if typ != evKey || value != 1 {
			continue
		}
		if ev, ok := keymap[code]; ok {
			out = append(out, ev)
		}
	}
	return out
}
