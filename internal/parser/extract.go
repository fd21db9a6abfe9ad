package parser

import (
	"fmt"

	"firestige.xyz/parsim/internal/core"
)

// Extract runs the action row's enabled lanes against the window, writing
// the PHV. acc is the running destination offset used by header stacks:
// DstOffsetRst clears it before the lanes run and DstOffsetInc is added
// after. Lanes run 32, 16 then 8 bit, lowest index first.
func Extract(a *ActionRow, w *Window, phv *core.PHV, acc *uint16) error {
	if a.DstOffsetRst {
		*acc = 0
	}
	for _, l := range a.lanes() {
		if !l.En {
			continue
		}
		src := int(l.Src)
		if l.SrcType == SrcDynamic {
			src += int(*acc)
		}
		b, err := w.bytes(src, int(l.width/8))
		if err != nil {
			return fmt.Errorf("extract%d to %d: %w", l.width, l.Dst, err)
		}
		var v uint32
		for _, x := range b {
			v = v<<8 | uint32(x)
		}
		if err := phv.Write(l.dst(*acc), l.width, v); err != nil {
			return fmt.Errorf("extract%d: %w", l.width, err)
		}
	}
	*acc += uint16(a.DstOffsetInc)
	return nil
}

// dst resolves the destination container.
func (l *Lane) dst(acc uint16) uint16 {
	switch {
	case l.OffsetAdd:
		return l.Dst + acc
	case l.RotImm != 0:
		return l.Dst&^3 | (l.Dst+uint16(l.RotImm))&3
	default:
		return l.Dst
	}
}
