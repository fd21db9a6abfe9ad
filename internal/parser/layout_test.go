package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutSizes(t *testing.T) {
	assert.Equal(t, 1, TcamLayout.Words())
	assert.Equal(t, 1, EaLayout.Words())
	assert.Equal(t, 5, ActionLayout.Words())
	assert.Equal(t, 2, ChecksumLayout.Words())
}

func TestTcamWordBits(t *testing.T) {
	tests := []struct {
		name string
		w    TcamWord
		want uint64
	}{
		{"lookup16", TcamWord{Lookup16: 0x0800}, 0x0800},
		{"lookup8_0", TcamWord{Lookup8: [2]uint8{0xab, 0}}, 0xab << 16},
		{"lookup8_1", TcamWord{Lookup8: [2]uint8{0, 0xcd}}, 0xcd << 24},
		{"state", TcamWord{State: 0x42}, 0x42 << 32},
		{"ctr_zero", TcamWord{CtrZero: true}, 1 << 40},
		{"ctr_neg", TcamWord{CtrNeg: true}, 1 << 41},
		{"ver0", TcamWord{Ver0: true}, 1 << 42},
		{"ver1", TcamWord{Ver1: true}, 1 << 43},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.Pack())
			assert.Equal(t, tt.w, UnpackTcamWord(tt.want))
		})
	}
}

func TestTcamRowWords(t *testing.T) {
	r := TcamRow{Valid: true, Value: TcamWord{Lookup16: 0x0800, State: 3}, Mask: TcamWord{Lookup16: 0xffff, State: 0xff}}
	w := r.Words()
	assert.Equal(t, uint64(3<<32|0x0800), w[0])
	assert.Equal(t, uint64(0xff<<32|0xffff), w[1])
	assert.Equal(t, r, UnpackTcamRow(w[0], w[1]))
}

func TestEaRowPack(t *testing.T) {
	assert.Equal(t, uint64(1)<<37, EaRow{Done: true}.Pack()[0])
	assert.Equal(t, uint64(14)<<10, EaRow{ShiftAmt: 14}.Pack()[0])
	assert.Equal(t, uint64(0x3f)<<54, EaRow{BufReq: 0x3f}.Pack()[0])

	r := EaRow{
		CtrLoad: true, CtrLdSrc: CtrSrcInitTable, CtrAmtIdx: 0x9c,
		ShiftAmt: 20, LookupOffset16: 9, LookupOffset8: [2]uint8{2, 31},
		LdLookup16: true, LdLookup8: [2]bool{false, true},
		NxtState: 0x81, NxtStateMask: 0x0f, BufReq: 40,
	}
	assert.Equal(t, r, UnpackEaRow(r.Pack()))
}

func TestActionRowPack(t *testing.T) {
	var a ActionRow
	a.Extract32[0] = Lane{En: true, Src: 1}
	w := a.Pack()
	require.Len(t, w, 5)
	assert.Equal(t, uint64(1|1<<1), w[0])

	// 16 bit lane 0 is lane 4 overall and starts at bit 80.
	a = ActionRow{}
	a.Extract16[0] = Lane{En: true, Dst: 5}
	w = a.Pack()
	assert.Equal(t, uint64(1|5<<7)<<16, w[1])

	a = ActionRow{PriUpdValMask: 7}
	assert.Equal(t, uint64(7)<<(267-256), a.Pack()[4])

	full := ActionRow{
		DstOffsetInc: 4, DstOffsetRst: true,
		Checksum:   [2]ChecksumRef{{En: true, Addr: 31}, {En: true, Addr: 7}},
		PriUpdType: PriUpdMax, PriUpdSrc: 22, PriUpdEnShr: 5, PriUpdValMask: 6,
	}
	for i := range full.Extract32 {
		full.Extract32[i] = Lane{En: true, Src: uint8(4 * i), SrcType: SrcDynamic, Dst: uint16(100 + i), OffsetAdd: true}
		full.Extract16[i] = Lane{En: i%2 == 0, Src: uint8(30 - i), Dst: uint16(511 - i), RotImm: uint8(i)}
		full.Extract8[i] = Lane{En: true, Src: 31, Dst: uint16(i)}
	}
	assert.Equal(t, full, UnpackActionRow(full.Pack()))
}

func TestChecksumCtrlRowPack(t *testing.T) {
	r := ChecksumCtrlRow{
		Add: 0xbeef, Mask: 0xfff0000f, Swap: 1<<16 | 0x5,
		Shr: true, Start: true, End: true,
		ZerosAsOnes: true, ZerosAsOnesPos: 16, Dst: 300,
	}
	w := r.Pack()
	require.Len(t, w, 2)
	assert.Equal(t, uint64(0xbeef), w[0]&0xffff)
	// swap bit 16 straddles into word 1.
	assert.Equal(t, uint64(1), w[1]&1)
	assert.Equal(t, r, UnpackChecksumCtrlRow(w))
}
