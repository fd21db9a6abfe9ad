package core

import "fmt"

// NumContainers is the number of addressable PHV containers.
const NumContainers = 512

// PHV is the packet header vector. Extracted fields land in containers
// addressed by id; the width of a container is that of its last write.
type PHV struct {
	vals   [NumContainers]uint32
	widths [NumContainers]uint8
}

// NewPHV returns an empty header vector.
func NewPHV() *PHV { return &PHV{} }

// Write stores v into container id, truncated to width bits (8, 16 or 32).
func (p *PHV) Write(id uint16, width uint8, v uint32) error {
	if int(id) >= NumContainers {
		return fmt.Errorf("%w: phv container %d", ErrRowIndex, id)
	}
	switch width {
	case 8:
		v &= 0xff
	case 16:
		v &= 0xffff
	case 32:
	default:
		return fmt.Errorf("%w: phv width %d", ErrConfigInvalid, width)
	}
	p.vals[id] = v
	p.widths[id] = width
	return nil
}

// Get returns the container value and whether it has been written.
func (p *PHV) Get(id uint16) (uint32, bool) {
	if int(id) >= NumContainers {
		return 0, false
	}
	return p.vals[id], p.widths[id] != 0
}

// Width returns the width of the last write to id, 0 if never written.
func (p *PHV) Width(id uint16) uint8 {
	if int(id) >= NumContainers {
		return 0
	}
	return p.widths[id]
}

// Written lists the ids of written containers in ascending order.
func (p *PHV) Written() []uint16 {
	var ids []uint16
	for i := range p.widths {
		if p.widths[i] != 0 {
			ids = append(ids, uint16(i))
		}
	}
	return ids
}

// Clone returns an independent copy.
func (p *PHV) Clone() *PHV {
	c := *p
	return &c
}

// Equal reports whether both vectors hold the same writes.
func (p *PHV) Equal(o *PHV) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.vals == o.vals && p.widths == o.widths
}

// Clear forgets every write.
func (p *PHV) Clear() {
	*p = PHV{}
}

// Map returns written containers keyed by id, for reporting.
func (p *PHV) Map() map[uint16]uint32 {
	m := make(map[uint16]uint32)
	for _, id := range p.Written() {
		m[id] = p.vals[id]
	}
	return m
}
