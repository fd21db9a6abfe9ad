package packet

import "firestige.xyz/parsim/internal/core"

// IEInfo is one gress view of a packet. Ingress and egress processing run
// on the same packet at different simulated times, each with its own view.
type IEInfo struct {
	PHV  *core.PHV
	Port core.Port
	Clot core.Clot

	// HdrVersion is the configuration version bit the view was parsed with.
	HdrVersion    uint8
	MetadataAdded bool

	OrigHdrLen     int
	ParsableHdrLen int

	Outcome  core.Outcome
	ParseErr error
}

// clone copies the view, including a private copy of the PHV.
func (v IEInfo) clone() IEInfo {
	if v.PHV != nil {
		v.PHV = v.PHV.Clone()
	}
	return v
}

// PortIndex returns the originating port index, -1 when unknown.
func (v *IEInfo) PortIndex() int {
	if v.Port == nil {
		return -1
	}
	return v.Port.PortIndex()
}
