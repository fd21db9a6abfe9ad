package parser

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/parsim/internal/core"
)

// Window is what the parser sees at the cursor: the lookup fields used to
// build the TCAM key and the raw bytes the extractors read from.
type Window struct {
	Lookup16 uint16
	Lookup8  [2]uint8
	// Buf holds up to WindowBytes bytes starting at the cursor.
	Buf []byte
}

// SampleWindow builds the window at cursor with the armed offsets.
func SampleWindow(data []byte, cursor int, off Offsets) (Window, error) {
	if cursor < 0 || cursor > len(data) {
		return Window{}, fmt.Errorf("cursor %d of %d bytes: %w", cursor, len(data), core.ErrOutOfBoundsRead)
	}
	end := cursor + WindowBytes
	if end > len(data) {
		end = len(data)
	}
	w := Window{Buf: data[cursor:end]}

	o16 := int(off.Lookup16)
	if o16+2 > len(w.Buf) {
		return w, fmt.Errorf("lookup16 at cursor %d+%d: %w", cursor, o16, core.ErrOutOfBoundsRead)
	}
	w.Lookup16 = binary.BigEndian.Uint16(w.Buf[o16:])
	for i, o := range off.Lookup8 {
		if int(o) >= len(w.Buf) {
			return w, fmt.Errorf("lookup8[%d] at cursor %d+%d: %w", i, cursor, o, core.ErrOutOfBoundsRead)
		}
		w.Lookup8[i] = w.Buf[o]
	}
	return w, nil
}

// bytes returns n window bytes at off.
func (w *Window) bytes(off, n int) ([]byte, error) {
	if off < 0 || off+n > len(w.Buf) {
		return nil, fmt.Errorf("window bytes [%d,%d) of %d: %w", off, off+n, len(w.Buf), core.ErrOutOfBoundsRead)
	}
	return w.Buf[off : off+n], nil
}

// arm applies the EA row's offset loads. Offsets not loaded keep their
// previous value.
func (o Offsets) arm(ea *EaRow) Offsets {
	if ea.LdLookup16 {
		o.Lookup16 = ea.LookupOffset16
	}
	for i := range o.Lookup8 {
		if ea.LdLookup8[i] {
			o.Lookup8[i] = ea.LookupOffset8[i]
		}
	}
	return o
}
