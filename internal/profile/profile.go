// Package profile loads parser row tables from YAML documents.
//
// A profile lists parser instances. Each row entry names its index and
// gives either structured fields or the packed bus words, so tables can
// be written by hand or dumped from a register image.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the top level document.
type Profile struct {
	Instances []InstanceSpec `yaml:"instances"`
}

// InstanceSpec describes one parser instance.
type InstanceSpec struct {
	Name           string            `yaml:"name"`
	Gress          string            `yaml:"gress"`
	Pipe           int               `yaml:"pipe"`
	StartState     uint8             `yaml:"start_state"`
	MaxIterations  int               `yaml:"max_iterations"`
	Merge          string            `yaml:"merge"`
	Version        uint8             `yaml:"version"`
	DefaultOffsets OffsetsSpec       `yaml:"default_offsets"`
	CounterInit    []CounterInitSpec `yaml:"counter_init"`
	Tcam           []TcamSpec        `yaml:"tcam"`
	Ea             []EaSpec          `yaml:"ea"`
	Action         []ActionSpec      `yaml:"action"`
	Checksum       []ChecksumSpec    `yaml:"checksum"`
}

type OffsetsSpec struct {
	Lookup16 uint8    `yaml:"lookup16"`
	Lookup8  [2]uint8 `yaml:"lookup8"`
}

type CounterInitSpec struct {
	Index int   `yaml:"index"`
	Src   uint8 `yaml:"src"`
	Rot   uint8 `yaml:"rot"`
	Mask  uint8 `yaml:"mask"`
	Add   uint8 `yaml:"add"`
	Max   uint8 `yaml:"max"`
}

// TcamWordSpec is one side of a TCAM row.
type TcamWordSpec struct {
	Lookup16 uint16   `yaml:"lookup16"`
	Lookup8  [2]uint8 `yaml:"lookup8"`
	State    uint8    `yaml:"state"`
	CtrZero  bool     `yaml:"ctr_zero"`
	CtrNeg   bool     `yaml:"ctr_neg"`
	Ver0     bool     `yaml:"ver0"`
	Ver1     bool     `yaml:"ver1"`
}

// TcamSpec is a TCAM row. Words, when set, is [value, mask].
type TcamSpec struct {
	Index    int          `yaml:"index"`
	Disabled bool         `yaml:"disabled"`
	Value    TcamWordSpec `yaml:"value"`
	Mask     TcamWordSpec `yaml:"mask"`
	Words    []string     `yaml:"words"`
}

type EaSpec struct {
	Index          int      `yaml:"index"`
	CtrLoad        bool     `yaml:"ctr_load"`
	CtrLdSrc       uint8    `yaml:"ctr_ld_src"`
	CtrAmtIdx      uint8    `yaml:"ctr_amt_idx"`
	ShiftAmt       uint8    `yaml:"shift_amt"`
	LookupOffset16 *uint8   `yaml:"lookup_offset_16"`
	LookupOffset8  []*uint8 `yaml:"lookup_offset_8"`
	Done           bool     `yaml:"done"`
	NxtState       uint8    `yaml:"nxt_state"`
	NxtStateMask   uint8    `yaml:"nxt_state_mask"`
	BufReq         uint8    `yaml:"buf_req"`
	Words          []string `yaml:"words"`
}

// LaneSpec enables one extractor lane.
type LaneSpec struct {
	Lane      int    `yaml:"lane"`
	Src       uint8  `yaml:"src"`
	Dynamic   bool   `yaml:"dynamic"`
	Dst       uint16 `yaml:"dst"`
	OffsetAdd bool   `yaml:"offset_add"`
	Rot       uint8  `yaml:"rot"`
}

type ChecksumRefSpec struct {
	Unit int   `yaml:"unit"`
	Addr uint8 `yaml:"addr"`
}

type PrioritySpec struct {
	Type string `yaml:"type"`
	Src  uint8  `yaml:"src"`
	Shr  uint8  `yaml:"shr"`
	Mask uint8  `yaml:"mask"`
}

type ActionSpec struct {
	Index        int               `yaml:"index"`
	Extract32    []LaneSpec        `yaml:"extract32"`
	Extract16    []LaneSpec        `yaml:"extract16"`
	Extract8     []LaneSpec        `yaml:"extract8"`
	DstOffsetInc uint8             `yaml:"dst_offset_inc"`
	DstOffsetRst bool              `yaml:"dst_offset_rst"`
	Checksum     []ChecksumRefSpec `yaml:"checksum"`
	Priority     *PrioritySpec     `yaml:"priority"`
	Words        []string          `yaml:"words"`
}

type ChecksumSpec struct {
	Unit           int      `yaml:"unit"`
	Index          int      `yaml:"index"`
	Add            uint16   `yaml:"add"`
	Mask           uint32   `yaml:"mask"`
	Swap           uint32   `yaml:"swap"`
	Shr            bool     `yaml:"shr"`
	Start          bool     `yaml:"start"`
	End            bool     `yaml:"end"`
	ZerosAsOnes    bool     `yaml:"zeros_as_ones"`
	ZerosAsOnesPos uint8    `yaml:"zeros_as_ones_pos"`
	Dst            uint16   `yaml:"dst"`
	Words          []string `yaml:"words"`
}

// Load reads and decodes a profile file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a profile. Unknown keys are rejected so typos in field
// names do not silently produce zero rows.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &p, nil
}

// Instance returns the named instance spec.
func (p *Profile) Instance(name string) (*InstanceSpec, bool) {
	for i := range p.Instances {
		if p.Instances[i].Name == name {
			return &p.Instances[i], true
		}
	}
	return nil, false
}
