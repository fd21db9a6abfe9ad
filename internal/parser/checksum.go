package parser

import (
	"fmt"
	"math/bits"

	"firestige.xyz/parsim/internal/core"
)

// ChecksumResult is the final value of one checksum accumulation.
type ChecksumResult struct {
	Unit  int    `json:"unit"`
	Row   int    `json:"row"`
	Value uint16 `json:"value"`
	Dst   uint16 `json:"dst"`
	// ZerosAsOnes mirrors the row flag; a verified header then yields
	// 0xffff instead of zero.
	ZerosAsOnes bool `json:"zeros_as_ones,omitempty"`
}

// Valid reports whether the covered bytes carried a correct checksum.
func (r ChecksumResult) Valid() bool {
	return r.Value == 0 || (r.ZerosAsOnes && r.Value == 0xffff)
}

// Accumulate folds the window bytes selected by row into the 16 bit ones'
// complement running sum. Bytes pair into big endian halfwords; a halfword
// with only one selected byte contributes zero for the other.
func Accumulate(sum uint16, buf []byte, row *ChecksumCtrlRow) (uint16, error) {
	if row.Start {
		sum = 0
	}
	add := row.Add
	if row.Swap&(1<<16) != 0 {
		add = bits.ReverseBytes16(add)
	}
	sum = onesAdd(sum, add)

	for h := 0; h < WindowBytes/2; h++ {
		hiSel := row.Mask&(1<<(2*h)) != 0
		loSel := row.Mask&(1<<(2*h+1)) != 0
		if !hiSel && !loSel {
			continue
		}
		var v uint16
		if hiSel {
			if 2*h >= len(buf) {
				return sum, fmt.Errorf("checksum byte %d of %d: %w", 2*h, len(buf), core.ErrOutOfBoundsRead)
			}
			v = uint16(buf[2*h]) << 8
		}
		if loSel {
			if 2*h+1 >= len(buf) {
				return sum, fmt.Errorf("checksum byte %d of %d: %w", 2*h+1, len(buf), core.ErrOutOfBoundsRead)
			}
			v |= uint16(buf[2*h+1])
		}
		if row.Swap&(1<<h) != 0 {
			v = bits.ReverseBytes16(v)
		}
		if row.Shr {
			v >>= 8
		}
		sum = onesAdd(sum, v)
	}
	return sum, nil
}

// Finalize turns the running sum into the checksum value. A zero result
// becomes all ones when ZerosAsOnes is set.
func Finalize(sum uint16, row *ChecksumCtrlRow) uint16 {
	v := ^sum
	if v == 0 && row.ZerosAsOnes {
		v = 0xffff
	}
	return v
}

// write replaces the 16 bit slice at ZerosAsOnesPos of the destination
// container. Bits outside the slice keep their value and the container is
// only widened when the slice does not fit.
func (row *ChecksumCtrlRow) write(phv *core.PHV, v uint16) error {
	pos := row.ZerosAsOnesPos
	need := uint8(16)
	if pos != 0 {
		need = 32
	}
	cur, _ := phv.Get(row.Dst)
	width := phv.Width(row.Dst)
	if width < need {
		width = need
	}
	mask := uint32(0xffff) << pos
	return phv.Write(row.Dst, width, cur&^mask|uint32(v)<<pos)
}

// onesAdd is 16 bit ones' complement addition with end around carry.
func onesAdd(a, b uint16) uint16 {
	s := uint32(a) + uint32(b)
	s = s&0xffff + s>>16
	return uint16(s)
}
