package profile

import (
	"fmt"
	"strconv"

	"go.uber.org/multierr"

	"firestige.xyz/parsim/internal/core"
	"firestige.xyz/parsim/internal/parser"
)

// Tables converts the instance description into parser tables. Every row problem is
// collected before returning, followed by the table range checks.
func (s *InstanceSpec) Tables() (*parser.Tables, error) {
	t := &parser.Tables{
		StartState:    s.StartState,
		MaxIterations: s.MaxIterations,
		DefaultOffsets: parser.Offsets{
			Lookup16: s.DefaultOffsets.Lookup16,
			Lookup8:  s.DefaultOffsets.Lookup8,
		},
	}
	merge, err := parser.ParseMergeMode(s.Merge)
	t.Merge = merge

	rows := newSeen("counter_init", parser.NumCounterInit)
	for _, c := range s.CounterInit {
		if e := rows.add(c.Index); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		t.CounterInit[c.Index] = parser.CounterInit{Src: c.Src, Rot: c.Rot, Mask: c.Mask, Add: c.Add, Max: c.Max}
	}

	rows = newSeen("tcam", parser.NumRows)
	for _, r := range s.Tcam {
		if e := rows.add(r.Index); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		row, e := r.row()
		if e != nil {
			err = multierr.Append(err, prefixed(fmt.Sprintf("tcam[%d]", r.Index), e))
			continue
		}
		t.Tcam[r.Index] = row
	}

	rows = newSeen("ea", parser.NumRows)
	for _, r := range s.Ea {
		if e := rows.add(r.Index); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		row, e := r.row()
		if e != nil {
			err = multierr.Append(err, prefixed(fmt.Sprintf("ea[%d]", r.Index), e))
			continue
		}
		t.Ea[r.Index] = row
	}

	rows = newSeen("action", parser.NumRows)
	for _, r := range s.Action {
		if e := rows.add(r.Index); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		row, e := r.row()
		if e != nil {
			err = multierr.Append(err, prefixed(fmt.Sprintf("action[%d]", r.Index), e))
			continue
		}
		t.Action[r.Index] = row
	}

	units := [parser.NumChecksumUnits]*seen{
		newSeen("checksum[0]", parser.NumChecksumRows),
		newSeen("checksum[1]", parser.NumChecksumRows),
	}
	for _, r := range s.Checksum {
		if r.Unit < 0 || r.Unit >= parser.NumChecksumUnits {
			err = multierr.Append(err, fmt.Errorf("%w: checksum unit %d", core.ErrRowIndex, r.Unit))
			continue
		}
		if e := units[r.Unit].add(r.Index); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		row, e := r.row()
		if e != nil {
			err = multierr.Append(err, prefixed(fmt.Sprintf("checksum[%d][%d]", r.Unit, r.Index), e))
			continue
		}
		t.Checksum[r.Unit][r.Index] = row
	}

	if err == nil {
		err = t.Validate()
	}
	if err != nil {
		return nil, prefixed("instance "+s.Name, err)
	}
	return t, nil
}

// prefixed wraps each error of a multierr group so the group stays
// flat and every error keeps its sentinel.
func prefixed(prefix string, err error) error {
	var out []error
	for _, e := range multierr.Errors(err) {
		out = append(out, fmt.Errorf("%s: %w", prefix, e))
	}
	return multierr.Combine(out...)
}

// Build creates and loads every instance in the profile.
func (p *Profile) Build(opts ...parser.Option) ([]*parser.Instance, error) {
	var (
		out   []*parser.Instance
		err   error
		names = make(map[string]bool)
	)
	for i := range p.Instances {
		s := &p.Instances[i]
		if s.Name == "" {
			err = multierr.Append(err, fmt.Errorf("%w: instance %d has no name", core.ErrConfigInvalid, i))
			continue
		}
		if names[s.Name] {
			err = multierr.Append(err, fmt.Errorf("%w: duplicate instance %s", core.ErrConfigInvalid, s.Name))
			continue
		}
		names[s.Name] = true

		gress, e := core.ParseGress(s.Gress)
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("instance %s: %w", s.Name, e))
			continue
		}
		t, e := s.Tables()
		if e != nil {
			err = multierr.Append(err, e)
			continue
		}
		in := parser.NewInstance(s.Name, gress, s.Pipe, opts...)
		if e := in.Swap(t, s.Version); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		out = append(out, in)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TcamSpec) row() (parser.TcamRow, error) {
	if r.Words != nil {
		w, err := words(r.Words, 2)
		if err != nil {
			return parser.TcamRow{}, err
		}
		row := parser.UnpackTcamRow(w[0], w[1])
		row.Valid = !r.Disabled
		return row, nil
	}
	return parser.TcamRow{Valid: !r.Disabled, Value: r.Value.word(), Mask: r.Mask.word()}, nil
}

func (w TcamWordSpec) word() parser.TcamWord {
	return parser.TcamWord{
		Lookup16: w.Lookup16,
		Lookup8:  w.Lookup8,
		State:    w.State,
		CtrZero:  w.CtrZero,
		CtrNeg:   w.CtrNeg,
		Ver0:     w.Ver0,
		Ver1:     w.Ver1,
	}
}

func (r *EaSpec) row() (parser.EaRow, error) {
	if r.Words != nil {
		w, err := words(r.Words, parser.EaLayout.Words())
		if err != nil {
			return parser.EaRow{}, err
		}
		return parser.UnpackEaRow(w), nil
	}
	row := parser.EaRow{
		CtrLoad:      r.CtrLoad,
		CtrLdSrc:     r.CtrLdSrc,
		CtrAmtIdx:    r.CtrAmtIdx,
		ShiftAmt:     r.ShiftAmt,
		Done:         r.Done,
		NxtState:     r.NxtState,
		NxtStateMask: r.NxtStateMask,
		BufReq:       r.BufReq,
	}
	if r.LookupOffset16 != nil {
		row.LdLookup16, row.LookupOffset16 = true, *r.LookupOffset16
	}
	if len(r.LookupOffset8) > 2 {
		return row, fmt.Errorf("%w: %d lookup_offset_8 entries", core.ErrConfigInvalid, len(r.LookupOffset8))
	}
	for i, o := range r.LookupOffset8 {
		if o != nil {
			row.LdLookup8[i], row.LookupOffset8[i] = true, *o
		}
	}
	return row, nil
}

func (r *ActionSpec) row() (parser.ActionRow, error) {
	var a parser.ActionRow
	if r.Words != nil {
		w, err := words(r.Words, parser.ActionLayout.Words())
		if err != nil {
			return a, err
		}
		return parser.UnpackActionRow(w), nil
	}

	var err error
	err = multierr.Append(err, lanes(a.Extract32[:], r.Extract32, 32))
	err = multierr.Append(err, lanes(a.Extract16[:], r.Extract16, 16))
	err = multierr.Append(err, lanes(a.Extract8[:], r.Extract8, 8))
	a.DstOffsetInc = r.DstOffsetInc
	a.DstOffsetRst = r.DstOffsetRst

	for _, c := range r.Checksum {
		if c.Unit < 0 || c.Unit >= parser.NumChecksumUnits {
			err = multierr.Append(err, fmt.Errorf("%w: checksum unit %d", core.ErrRowIndex, c.Unit))
			continue
		}
		a.Checksum[c.Unit] = parser.ChecksumRef{En: true, Addr: c.Addr}
	}
	if p := r.Priority; p != nil {
		t, e := priorityType(p.Type)
		err = multierr.Append(err, e)
		a.PriUpdType, a.PriUpdSrc, a.PriUpdEnShr, a.PriUpdValMask = t, p.Src, p.Shr, p.Mask
	}
	return a, err
}

func lanes(dst []parser.Lane, specs []LaneSpec, width int) error {
	var err error
	for _, l := range specs {
		if l.Lane < 0 || l.Lane >= len(dst) {
			err = multierr.Append(err, fmt.Errorf("%w: extract%d lane %d", core.ErrRowIndex, width, l.Lane))
			continue
		}
		src := parser.SrcStatic
		if l.Dynamic {
			src = parser.SrcDynamic
		}
		dst[l.Lane] = parser.Lane{En: true, Src: l.Src, SrcType: src, Dst: l.Dst, OffsetAdd: l.OffsetAdd, RotImm: l.Rot}
	}
	return err
}

func priorityType(s string) (parser.PriUpdType, error) {
	switch s {
	case "", "none":
		return parser.PriUpdNone, nil
	case "immediate":
		return parser.PriUpdImmediate, nil
	case "window":
		return parser.PriUpdWindow, nil
	case "max":
		return parser.PriUpdMax, nil
	default:
		return 0, fmt.Errorf("%w: priority type %q", core.ErrConfigInvalid, s)
	}
}

func (r *ChecksumSpec) row() (parser.ChecksumCtrlRow, error) {
	if r.Words != nil {
		w, err := words(r.Words, parser.ChecksumLayout.Words())
		if err != nil {
			return parser.ChecksumCtrlRow{}, err
		}
		return parser.UnpackChecksumCtrlRow(w), nil
	}
	return parser.ChecksumCtrlRow{
		Add:            r.Add,
		Mask:           r.Mask,
		Swap:           r.Swap,
		Shr:            r.Shr,
		Start:          r.Start,
		End:            r.End,
		ZerosAsOnes:    r.ZerosAsOnes,
		ZerosAsOnesPos: r.ZerosAsOnesPos,
		Dst:            r.Dst,
	}, nil
}

// words parses packed bus words written as hex or decimal strings.
func words(ss []string, n int) ([]uint64, error) {
	if len(ss) != n {
		return nil, fmt.Errorf("%w: want %d words, got %d", core.ErrConfigInvalid, n, len(ss))
	}
	out := make([]uint64, n)
	for i, s := range ss {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: word %d: %v", core.ErrConfigInvalid, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// seen tracks row indices of one table.
type seen struct {
	table string
	size  int
	idx   map[int]bool
}

func newSeen(table string, size int) *seen {
	return &seen{table: table, size: size, idx: make(map[int]bool)}
}

func (s *seen) add(i int) error {
	if i < 0 || i >= s.size {
		return fmt.Errorf("%w: %s index %d not in [0,%d)", core.ErrRowIndex, s.table, i, s.size)
	}
	if s.idx[i] {
		return fmt.Errorf("%w: %s index %d listed twice", core.ErrConfigInvalid, s.table, i)
	}
	s.idx[i] = true
	return nil
}
