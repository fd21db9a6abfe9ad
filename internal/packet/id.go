package packet

import (
	"fmt"

	"firestige.xyz/parsim/internal/bitfield"
)

// ID is the packed 64 bit packet identifier.
//
//	63:60  copy type
//	59     chip-to-chip flag (multicast copies)
//	57:56  replication pipe
//	47:32  copy count
//	31:0   base id, shared by every copy of one original packet
type ID uint64

// CopyType is the kind of packet an ID names.
type CopyType uint8

const (
	CopyNormal CopyType = iota
	CopyMirror
	CopyGenerated
	CopyMulticast
)

func (t CopyType) String() string {
	switch t {
	case CopyNormal:
		return "normal"
	case CopyMirror:
		return "mirror"
	case CopyGenerated:
		return "generated"
	case CopyMulticast:
		return "mc-copy"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

var (
	idType = bitfield.F("type", 63, 60)
	idC2C  = bitfield.Bit("c2c", 59)
	idPipe = bitfield.F("pipe", 57, 56)
	idCopy = bitfield.F("copy", 47, 32)
	idBase = bitfield.F("base", 31, 0)

	idLayout = bitfield.MustLayout("packet-id", 64, idType, idC2C, idPipe, idCopy, idBase)
)

func (id ID) get(f bitfield.Field) uint64 {
	w := [1]uint64{uint64(id)}
	return f.Get(w[:])
}

func (id ID) set(f bitfield.Field, v uint64) ID {
	w := [1]uint64{uint64(id)}
	f.Set(w[:], v)
	return ID(w[0])
}

// BaseID is bits 31:0.
func (id ID) BaseID() uint32 { return uint32(id.get(idBase)) }

// Type is the copy type in bits 63:60.
func (id ID) Type() CopyType { return CopyType(id.get(idType)) }

// C2C reports the chip-to-chip flag.
func (id ID) C2C() bool { return id.get(idC2C) != 0 }

// Pipe is the replication pipe of a multicast or mirror copy.
func (id ID) Pipe() uint8 { return uint8(id.get(idPipe)) }

// Copy is the copy count of a multicast or mirror copy.
func (id ID) Copy() uint16 { return uint16(id.get(idCopy)) }

// WithBaseID replaces bits 31:0 and keeps everything else.
func (id ID) WithBaseID(base uint32) ID { return id.set(idBase, uint64(base)) }

// WithType replaces bits 63:60 and keeps everything else.
func (id ID) WithType(t CopyType) ID { return id.set(idType, uint64(t)) }

func copyID(base uint32, t CopyType, pipe uint8, copy uint16) ID {
	var id ID
	id = id.WithBaseID(base)
	id = id.WithType(t)
	id = id.set(idPipe, uint64(pipe))
	return id.set(idCopy, uint64(copy))
}

// MulticastCopy builds the id of copy number copy made by pipe's replication
// engine from the original packet with base id base.
func MulticastCopy(base uint32, pipe uint8, copy uint16) ID {
	return copyID(base, CopyMulticast, pipe, copy)
}

// MulticastC2C is MulticastCopy for a copy that crosses the chip-to-chip fabric.
func MulticastC2C(base uint32, pipe uint8, copy uint16) ID {
	return MulticastCopy(base, pipe, copy).set(idC2C, 1)
}

// MirrorCopy builds the id of a mirrored copy.
func MirrorCopy(base uint32, pipe uint8, copy uint16) ID {
	return copyID(base, CopyMirror, pipe, copy)
}

// Generated builds the id of a packet created inside the pipeline.
func Generated(base uint32) ID {
	return ID(0).WithBaseID(base).WithType(CopyGenerated)
}

// SameLineage reports whether both ids descend from the same original.
func SameLineage(a, b ID) bool { return a.BaseID() == b.BaseID() }

func (id ID) String() string {
	switch id.Type() {
	case CopyMulticast, CopyMirror:
		s := fmt.Sprintf("%s:%08x/p%d/c%d", id.Type(), id.BaseID(), id.Pipe(), id.Copy())
		if id.C2C() {
			s += "/c2c"
		}
		return s
	default:
		return fmt.Sprintf("%s:%08x", id.Type(), id.BaseID())
	}
}
