// Package packet models the packet that every simulated pipeline stage
// reads and mutates, from the ingress collector until it is retired.
package packet

import (
	"fmt"

	"firestige.xyz/parsim/internal/core"
)

// Packet is owned by exactly one stage at a time. Stages hand it on by
// passing the pointer, never by sharing it.
type Packet struct {
	// Survive Reset.
	id        ID
	recircCnt int
	signature string

	buf    *Buffer
	active core.Gress
	views  [2]IEInfo

	Priority uint8
	Drop     bool
	Teop     core.Teop
	Queue    QueueState
}

// New creates a packet from raw bytes arriving on port.
func New(id ID, data []byte, port core.Port) *Packet {
	p := &Packet{id: id, buf: NewBuffer(data)}
	p.views[core.Ingress].Port = port
	return p
}

// ID returns the packed identifier.
func (p *Packet) ID() ID { return p.id }

// SetID replaces the whole identifier.
func (p *Packet) SetID(id ID) { p.id = id }

// SetBaseID sets bits 31:0 of the identifier.
func (p *Packet) SetBaseID(base uint32) { p.id = p.id.WithBaseID(base) }

// SetCopyType sets bits 63:60 of the identifier.
func (p *Packet) SetCopyType(t CopyType) { p.id = p.id.WithType(t) }

// RecircCount is the number of times the packet went round the pipeline.
func (p *Packet) RecircCount() int { return p.recircCnt }

// Signature is a caller supplied tag, e.g. the source file and frame number.
func (p *Packet) Signature() string { return p.signature }

// SetSignature sets the tag.
func (p *Packet) SetSignature(s string) { p.signature = s }

// Buffer exposes the byte chain.
func (p *Packet) Buffer() *Buffer { return p.buf }

// Bytes is the flattened packet contents.
func (p *Packet) Bytes() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.Bytes()
}

// Len is the packet length in bytes.
func (p *Packet) Len() int {
	if p.buf == nil {
		return 0
	}
	return p.buf.Len()
}

// Gress is the view currently in use.
func (p *Packet) Gress() core.Gress { return p.active }

// IsEgress reports whether the egress view is active.
func (p *Packet) IsEgress() bool { return p.active == core.Egress }

// Active returns the view for the current gress.
func (p *Packet) Active() *IEInfo { return &p.views[p.active] }

// Ingress returns the ingress view.
func (p *Packet) Ingress() *IEInfo { return &p.views[core.Ingress] }

// Egress returns the egress view.
func (p *Packet) Egress() *IEInfo { return &p.views[core.Egress] }

// SetEgress copies the ingress view into the egress view and makes egress
// the active view. The egress PHV is a private copy.
func (p *Packet) SetEgress() {
	p.views[core.Egress] = p.views[core.Ingress].clone()
	p.active = core.Egress
}

// Reset clears every field except the identifier, the recirculation count
// and the signature. The byte buffer is content, not state, and is kept.
func (p *Packet) Reset() {
	*p = Packet{
		id:        p.id,
		recircCnt: p.recircCnt,
		signature: p.signature,
		buf:       p.buf,
	}
}

// Recirculate sends the packet round again.
func (p *Packet) Recirculate() {
	p.recircCnt++
	p.Reset()
}

// Clone returns a deep copy with identity id. Gress views, priority and
// flags are carried only when withMeta is set.
func (p *Packet) Clone(id ID, withMeta bool) *Packet {
	c := &Packet{
		id:        id,
		recircCnt: p.recircCnt,
		signature: p.signature,
		buf:       &Buffer{},
	}
	if p.buf != nil {
		c.buf = p.buf.Clone()
	}
	if withMeta {
		c.active = p.active
		c.views[core.Ingress] = p.views[core.Ingress].clone()
		c.views[core.Egress] = p.views[core.Egress].clone()
		c.Priority = p.Priority
		c.Drop = p.Drop
		c.Teop = p.Teop
	}
	return c
}

func (p *Packet) String() string {
	return fmt.Sprintf("pkt %s len=%d %s recirc=%d", p.id, p.Len(), p.active, p.recircCnt)
}
