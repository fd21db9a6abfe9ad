package parser

import (
	"fmt"

	"firestige.xyz/parsim/internal/bitfield"
)

// Packed bus layouts. These are the register images of the rows and must
// stay bit-exact.
var (
	tcamLookup16 = bitfield.F("lookup_16", 15, 0)
	tcamLookup80 = bitfield.F("lookup_8_0", 23, 16)
	tcamLookup81 = bitfield.F("lookup_8_1", 31, 24)
	tcamState    = bitfield.F("curr_state", 39, 32)
	tcamCtrZero  = bitfield.Bit("ctr_zero", 40)
	tcamCtrNeg   = bitfield.Bit("ctr_neg", 41)
	tcamVer0     = bitfield.Bit("ver0", 42)
	tcamVer1     = bitfield.Bit("ver1", 43)

	TcamLayout = bitfield.MustLayout("tcam", 44,
		tcamLookup16, tcamLookup80, tcamLookup81, tcamState,
		tcamCtrZero, tcamCtrNeg, tcamVer0, tcamVer1)

	eaCtrLoad   = bitfield.Bit("ctr_load", 0)
	eaCtrLdSrc  = bitfield.Bit("ctr_ld_src", 1)
	eaCtrAmtIdx = bitfield.F("ctr_amt_idx", 9, 2)
	eaShiftAmt  = bitfield.F("shift_amt", 15, 10)
	eaOff16     = bitfield.F("lookup_offset_16", 21, 16)
	eaOff80     = bitfield.F("lookup_offset_8_0", 27, 22)
	eaOff81     = bitfield.F("lookup_offset_8_1", 33, 28)
	eaLd16      = bitfield.Bit("ld_lookup_16", 34)
	eaLd80      = bitfield.Bit("ld_lookup_8_0", 35)
	eaLd81      = bitfield.Bit("ld_lookup_8_1", 36)
	eaDone      = bitfield.Bit("done", 37)
	eaNxtState  = bitfield.F("nxt_state", 45, 38)
	eaNxtMask   = bitfield.F("nxt_state_mask", 53, 46)
	eaBufReq    = bitfield.F("buf_req", 59, 54)

	EaLayout = bitfield.MustLayout("ea", 60,
		eaCtrLoad, eaCtrLdSrc, eaCtrAmtIdx, eaShiftAmt, eaOff16, eaOff80, eaOff81,
		eaLd16, eaLd80, eaLd81, eaDone, eaNxtState, eaNxtMask, eaBufReq)

	csumAdd    = bitfield.F("add", 15, 0)
	csumMask   = bitfield.F("mask", 47, 16)
	csumSwap   = bitfield.F("swap", 64, 48)
	csumShr    = bitfield.Bit("shr", 65)
	csumStart  = bitfield.Bit("start", 66)
	csumEnd    = bitfield.Bit("end", 67)
	csumZeros  = bitfield.Bit("zeros_as_ones", 68)
	csumZerosP = bitfield.F("zeros_as_ones_pos", 73, 69)
	csumDst    = bitfield.F("dst", 82, 74)

	ChecksumLayout = bitfield.MustLayout("checksum", 83,
		csumAdd, csumMask, csumSwap, csumShr, csumStart, csumEnd, csumZeros, csumZerosP, csumDst)
)

// Action rows: twelve 20 bit lanes then the row level fields.
const laneBits = 20

type laneFields struct {
	en, src, srcType, dst, offsetAdd, rotImm bitfield.Field
}

var (
	actLanes = func() (l [3 * LanesPerWidth]laneFields) {
		for i := range l {
			b := uint(i * laneBits)
			n := func(s string) string { return fmt.Sprintf("lane%d_%s", i, s) }
			l[i] = laneFields{
				en:        bitfield.Bit(n("en"), b),
				src:       bitfield.F(n("src"), b+5, b+1),
				srcType:   bitfield.Bit(n("src_type"), b+6),
				dst:       bitfield.F(n("dst"), b+15, b+7),
				offsetAdd: bitfield.Bit(n("offset_add_dst"), b+16),
				rotImm:    bitfield.F(n("offset_rot_imm"), b+18, b+17),
			}
		}
		return
	}()

	actDstOffInc  = bitfield.F("dst_offset_inc", 243, 240)
	actDstOffRst  = bitfield.Bit("dst_offset_rst", 244)
	actCsumEn0    = bitfield.Bit("csum_en_0", 245)
	actCsumAddr0  = bitfield.F("csum_addr_0", 250, 246)
	actCsumEn1    = bitfield.Bit("csum_en_1", 251)
	actCsumAddr1  = bitfield.F("csum_addr_1", 256, 252)
	actPriType    = bitfield.F("pri_upd_type", 258, 257)
	actPriSrc     = bitfield.F("pri_upd_src", 263, 259)
	actPriShr     = bitfield.F("pri_upd_en_shr", 266, 264)
	actPriValMask = bitfield.F("pri_upd_val_mask", 269, 267)

	ActionLayout = func() *bitfield.Layout {
		var fs []bitfield.Field
		for _, l := range actLanes {
			fs = append(fs, l.en, l.src, l.srcType, l.dst, l.offsetAdd, l.rotImm)
		}
		fs = append(fs, actDstOffInc, actDstOffRst, actCsumEn0, actCsumAddr0, actCsumEn1,
			actCsumAddr1, actPriType, actPriSrc, actPriShr, actPriValMask)
		return bitfield.MustLayout("action", 270, fs...)
	}()

	actCsumEn   = [NumChecksumUnits]bitfield.Field{actCsumEn0, actCsumEn1}
	actCsumAddr = [NumChecksumUnits]bitfield.Field{actCsumAddr0, actCsumAddr1}
)

// Pack returns the packed TCAM word.
func (w TcamWord) Pack() uint64 {
	b := [1]uint64{}
	tcamLookup16.Set(b[:], uint64(w.Lookup16))
	tcamLookup80.Set(b[:], uint64(w.Lookup8[0]))
	tcamLookup81.Set(b[:], uint64(w.Lookup8[1]))
	tcamState.Set(b[:], uint64(w.State))
	tcamCtrZero.SetBool(b[:], w.CtrZero)
	tcamCtrNeg.SetBool(b[:], w.CtrNeg)
	tcamVer0.SetBool(b[:], w.Ver0)
	tcamVer1.SetBool(b[:], w.Ver1)
	return b[0]
}

// UnpackTcamWord decodes a packed TCAM word.
func UnpackTcamWord(x uint64) TcamWord {
	b := []uint64{x}
	return TcamWord{
		Lookup16: uint16(tcamLookup16.Get(b)),
		Lookup8:  [2]uint8{uint8(tcamLookup80.Get(b)), uint8(tcamLookup81.Get(b))},
		State:    uint8(tcamState.Get(b)),
		CtrZero:  tcamCtrZero.GetBool(b),
		CtrNeg:   tcamCtrNeg.GetBool(b),
		Ver0:     tcamVer0.GetBool(b),
		Ver1:     tcamVer1.GetBool(b),
	}
}

// Words returns word0 (value) and word1 (mask).
func (r TcamRow) Words() [2]uint64 {
	return [2]uint64{r.Value.Pack(), r.Mask.Pack()}
}

// UnpackTcamRow decodes a value/mask pair into a valid row.
func UnpackTcamRow(word0, word1 uint64) TcamRow {
	return TcamRow{Valid: true, Value: UnpackTcamWord(word0), Mask: UnpackTcamWord(word1)}
}

// Pack returns the packed EA row.
func (r EaRow) Pack() []uint64 {
	b := EaLayout.Alloc()
	eaCtrLoad.SetBool(b, r.CtrLoad)
	eaCtrLdSrc.Set(b, uint64(r.CtrLdSrc))
	eaCtrAmtIdx.Set(b, uint64(r.CtrAmtIdx))
	eaShiftAmt.Set(b, uint64(r.ShiftAmt))
	eaOff16.Set(b, uint64(r.LookupOffset16))
	eaOff80.Set(b, uint64(r.LookupOffset8[0]))
	eaOff81.Set(b, uint64(r.LookupOffset8[1]))
	eaLd16.SetBool(b, r.LdLookup16)
	eaLd80.SetBool(b, r.LdLookup8[0])
	eaLd81.SetBool(b, r.LdLookup8[1])
	eaDone.SetBool(b, r.Done)
	eaNxtState.Set(b, uint64(r.NxtState))
	eaNxtMask.Set(b, uint64(r.NxtStateMask))
	eaBufReq.Set(b, uint64(r.BufReq))
	return b
}

// UnpackEaRow decodes a packed EA row.
func UnpackEaRow(b []uint64) EaRow {
	return EaRow{
		CtrLoad:        eaCtrLoad.GetBool(b),
		CtrLdSrc:       uint8(eaCtrLdSrc.Get(b)),
		CtrAmtIdx:      uint8(eaCtrAmtIdx.Get(b)),
		ShiftAmt:       uint8(eaShiftAmt.Get(b)),
		LookupOffset16: uint8(eaOff16.Get(b)),
		LookupOffset8:  [2]uint8{uint8(eaOff80.Get(b)), uint8(eaOff81.Get(b))},
		LdLookup16:     eaLd16.GetBool(b),
		LdLookup8:      [2]bool{eaLd80.GetBool(b), eaLd81.GetBool(b)},
		Done:           eaDone.GetBool(b),
		NxtState:       uint8(eaNxtState.Get(b)),
		NxtStateMask:   uint8(eaNxtMask.Get(b)),
		BufReq:         uint8(eaBufReq.Get(b)),
	}
}

// Pack returns the packed action row.
func (a ActionRow) Pack() []uint64 {
	b := ActionLayout.Alloc()
	for i, l := range a.lanes() {
		f := actLanes[i]
		f.en.SetBool(b, l.En)
		f.src.Set(b, uint64(l.Src))
		f.srcType.Set(b, uint64(l.SrcType))
		f.dst.Set(b, uint64(l.Dst))
		f.offsetAdd.SetBool(b, l.OffsetAdd)
		f.rotImm.Set(b, uint64(l.RotImm))
	}
	actDstOffInc.Set(b, uint64(a.DstOffsetInc))
	actDstOffRst.SetBool(b, a.DstOffsetRst)
	for u := range a.Checksum {
		actCsumEn[u].SetBool(b, a.Checksum[u].En)
		actCsumAddr[u].Set(b, uint64(a.Checksum[u].Addr))
	}
	actPriType.Set(b, uint64(a.PriUpdType))
	actPriSrc.Set(b, uint64(a.PriUpdSrc))
	actPriShr.Set(b, uint64(a.PriUpdEnShr))
	actPriValMask.Set(b, uint64(a.PriUpdValMask))
	return b
}

// UnpackActionRow decodes a packed action row.
func UnpackActionRow(b []uint64) ActionRow {
	var a ActionRow
	for i, l := range a.lanes() {
		f := actLanes[i]
		*l.Lane = Lane{
			En:        f.en.GetBool(b),
			Src:       uint8(f.src.Get(b)),
			SrcType:   SrcType(f.srcType.Get(b)),
			Dst:       uint16(f.dst.Get(b)),
			OffsetAdd: f.offsetAdd.GetBool(b),
			RotImm:    uint8(f.rotImm.Get(b)),
		}
	}
	a.DstOffsetInc = uint8(actDstOffInc.Get(b))
	a.DstOffsetRst = actDstOffRst.GetBool(b)
	for u := range a.Checksum {
		a.Checksum[u] = ChecksumRef{En: actCsumEn[u].GetBool(b), Addr: uint8(actCsumAddr[u].Get(b))}
	}
	a.PriUpdType = PriUpdType(actPriType.Get(b))
	a.PriUpdSrc = uint8(actPriSrc.Get(b))
	a.PriUpdEnShr = uint8(actPriShr.Get(b))
	a.PriUpdValMask = uint8(actPriValMask.Get(b))
	return a
}

// Pack returns the packed checksum control row.
func (c ChecksumCtrlRow) Pack() []uint64 {
	b := ChecksumLayout.Alloc()
	csumAdd.Set(b, uint64(c.Add))
	csumMask.Set(b, uint64(c.Mask))
	csumSwap.Set(b, uint64(c.Swap))
	csumShr.SetBool(b, c.Shr)
	csumStart.SetBool(b, c.Start)
	csumEnd.SetBool(b, c.End)
	csumZeros.SetBool(b, c.ZerosAsOnes)
	csumZerosP.Set(b, uint64(c.ZerosAsOnesPos))
	csumDst.Set(b, uint64(c.Dst))
	return b
}

// UnpackChecksumCtrlRow decodes a packed checksum control row.
func UnpackChecksumCtrlRow(b []uint64) ChecksumCtrlRow {
	return ChecksumCtrlRow{
		Add:            uint16(csumAdd.Get(b)),
		Mask:           uint32(csumMask.Get(b)),
		Swap:           uint32(csumSwap.Get(b)),
		Shr:            csumShr.GetBool(b),
		Start:          csumStart.GetBool(b),
		End:            csumEnd.GetBool(b),
		ZerosAsOnes:    csumZeros.GetBool(b),
		ZerosAsOnesPos: uint8(csumZerosP.Get(b)),
		Dst:            uint16(csumDst.Get(b)),
	}
}
