// Package parser models the programmable header parser: a TCAM driven
// state machine that walks the packet, fills the PHV, runs checksums and
// sets the packet priority.
package parser

const (
	// NumRows is the TCAM/EA/action row count of one parser instance.
	NumRows = 256
	// WindowBytes is the size of the lookahead buffer at the cursor.
	WindowBytes = 32
	// NumChecksumUnits is the number of checksum engines per instance.
	NumChecksumUnits = 2
	// NumChecksumRows is the control row count of one checksum engine.
	NumChecksumRows = 32
	// NumCounterInit is the size of the counter init table.
	NumCounterInit = 16
	// LanesPerWidth is the number of extractors of each width.
	LanesPerWidth = 4
	// DefaultMaxIterations bounds a parse when the tables do not.
	DefaultMaxIterations = 256
)

// TcamWord is one half of a TCAM row. The key built from the window and
// the parser state has the same shape.
type TcamWord struct {
	Lookup16 uint16
	Lookup8  [2]uint8
	State    uint8
	CtrZero  bool
	CtrNeg   bool
	Ver0     bool
	Ver1     bool
}

// TcamRow is a ternary entry: a key matches when every bit with Mask set
// equals the corresponding Value bit. Rows that are not Valid never match.
type TcamRow struct {
	Valid bool
	Value TcamWord
	Mask  TcamWord
}

// EaRow is the extract-and-advance control at the same index as its
// TCAM row.
type EaRow struct {
	CtrLoad   bool
	CtrLdSrc  uint8
	CtrAmtIdx uint8

	ShiftAmt uint8

	LookupOffset16 uint8
	LookupOffset8  [2]uint8
	LdLookup16     bool
	LdLookup8      [2]bool

	Done bool

	NxtState     uint8
	NxtStateMask uint8

	BufReq uint8
}

// Counter load sources.
const (
	CtrSrcImmediate uint8 = 0
	CtrSrcInitTable uint8 = 1
)

// SrcType selects how an extractor lane addresses its source bytes.
type SrcType uint8

const (
	// SrcStatic reads at Src.
	SrcStatic SrcType = iota
	// SrcDynamic reads at Src plus the running destination offset.
	SrcDynamic
)

// Lane is one extractor.
type Lane struct {
	En      bool
	Src     uint8
	SrcType SrcType
	Dst     uint16
	// OffsetAdd adds the running destination offset to Dst.
	OffsetAdd bool
	// RotImm rotates Dst within its aligned group of four containers.
	RotImm uint8
}

// ChecksumRef enables a checksum engine and picks its control row.
type ChecksumRef struct {
	En   bool
	Addr uint8
}

// PriUpdType selects the priority update program.
type PriUpdType uint8

const (
	PriUpdNone PriUpdType = iota
	PriUpdImmediate
	PriUpdWindow
	PriUpdMax
)

// ActionRow holds the extractors, checksum hooks and priority program run
// when the TCAM row at the same index matches.
type ActionRow struct {
	Extract32 [LanesPerWidth]Lane
	Extract16 [LanesPerWidth]Lane
	Extract8  [LanesPerWidth]Lane

	DstOffsetInc uint8
	DstOffsetRst bool

	Checksum [NumChecksumUnits]ChecksumRef

	PriUpdType    PriUpdType
	PriUpdSrc     uint8
	PriUpdEnShr   uint8
	PriUpdValMask uint8
}

// lanes returns every lane with its width in bits, in execution order.
func (a *ActionRow) lanes() [3 * LanesPerWidth]widthLane {
	var out [3 * LanesPerWidth]widthLane
	for i := 0; i < LanesPerWidth; i++ {
		out[i] = widthLane{32, &a.Extract32[i]}
		out[LanesPerWidth+i] = widthLane{16, &a.Extract16[i]}
		out[2*LanesPerWidth+i] = widthLane{8, &a.Extract8[i]}
	}
	return out
}

type widthLane struct {
	width uint8
	*Lane
}

// ChecksumCtrlRow configures one accumulation step of a checksum engine.
type ChecksumCtrlRow struct {
	Add uint16
	// Mask bit b selects window byte b.
	Mask uint32
	// Swap bit h swaps the bytes of window halfword h; bit 16 swaps Add.
	Swap  uint32
	Shr   bool
	Start bool
	End   bool

	ZerosAsOnes    bool
	ZerosAsOnesPos uint8

	Dst uint16
}

// CounterInit is a counter init table entry:
// min(((lookup8[Src] rotr Rot) & Mask) + Add, Max), Max 0 meaning no cap.
type CounterInit struct {
	Src  uint8
	Rot  uint8
	Mask uint8
	Add  uint8
	Max  uint8
}

// Offsets are the window positions of the lookup fields, relative to the
// cursor.
type Offsets struct {
	Lookup16 uint8
	Lookup8  [2]uint8
}
