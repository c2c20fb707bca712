package buttons

import (
	"context"
	"encoding/binary"
	"reflect"
	"testing"
)

func record(tvSize int, typ, code uint16, value int32) []byte {
	rec := make([]byte, tvSize+8)
	binary.LittleEndian.PutUint16(rec[tvSize:], typ)
	binary.LittleEndian.PutUint16(rec[tvSize+2:], code)
	binary.LittleEndian.PutUint32(rec[tvSize+4:], uint32(value))
	return rec
}

func TestDecodeKeyPresses(t *testing.T) {
	const tv = 16
	var buf []byte
	buf = append(buf, record(tv, evKey, KeyA, 1)...)
	buf = append(buf, record(tv, evKey, KeyA, 0)...)  // release
	buf = append(buf, record(tv, 0x00, 0, 0)...)      // EV_SYN
	buf = append(buf, record(tv, evKey, KeyC, 1)...)  // unmapped
	buf = append(buf, record(tv, evKey, KeyF4, 2)...) // autorepeat
	buf = append(buf, record(tv, evKey, KeyB, 1)...)
	buf = append(buf, 0x01, 0x02) // trailing partial record

	got := decodeKeyPresses(buf, tv, DefaultKeymap)
	want := []Event{Refresh, NextPreset}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestManualPress(t *testing.T) {
	m := NewManual()
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.Press(Refresh) {
		t.Fatalf("Press on a running source failed")
	}
	if ev := <-m.Events(); ev != Refresh {
		t.Fatalf("got %s", ev)
	}
	_ = m.Stop()
	_ = m.Stop()
	if m.Press(Exit) {
		t.Fatalf("Press after Stop succeeded")
	}
}
