package parser

import "math/bits"

// nextCounter applies the EA row's counter program. ctr is signed 8 bit
// and wraps.
func nextCounter(ctr int8, ea *EaRow, w *Window, init *[NumCounterInit]CounterInit) int8 {
	if !ea.CtrLoad {
		return ctr + int8(ea.CtrAmtIdx)
	}
	if ea.CtrLdSrc == CtrSrcImmediate {
		return int8(ea.CtrAmtIdx)
	}
	e := &init[ea.CtrAmtIdx%NumCounterInit]
	b := bits.RotateLeft8(w.Lookup8[e.Src&1], -int(e.Rot&7))
	v := uint16(b&e.Mask) + uint16(e.Add)
	if e.Max != 0 && v > uint16(e.Max) {
		v = uint16(e.Max)
	}
	return int8(uint8(v))
}
