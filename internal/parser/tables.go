package parser

import (
	"fmt"

	"go.uber.org/multierr"

	"firestige.xyz/parsim/internal/core"
)

// Tables is the complete row configuration of one parser instance.
type Tables struct {
	StartState     uint8
	DefaultOffsets Offsets
	MaxIterations  int
	Merge          MergeMode

	Tcam     [NumRows]TcamRow
	Ea       [NumRows]EaRow
	Action   [NumRows]ActionRow
	Checksum [NumChecksumUnits][NumChecksumRows]ChecksumCtrlRow

	CounterInit [NumCounterInit]CounterInit
}

// ActiveRows returns the indices of valid TCAM rows.
func (t *Tables) ActiveRows() []int {
	var out []int
	for i := range t.Tcam {
		if t.Tcam[i].Valid {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks every field range the packed layouts can not express or
// the datapath can not honour. All problems are reported together.
func (t *Tables) Validate() error {
	var err error
	if t.MaxIterations < 0 {
		err = multierr.Append(err, invalid("max_iterations %d is negative", t.MaxIterations))
	}
	if t.Merge > MergeOr {
		err = multierr.Append(err, invalid("merge mode %d", t.Merge))
	}
	err = multierr.Append(err, t.DefaultOffsets.validate("default offsets"))

	for _, i := range t.ActiveRows() {
		err = multierr.Append(err, t.Ea[i].validate(i))
		err = multierr.Append(err, t.Action[i].validate(i))
	}
	for u := range t.Checksum {
		for r := range t.Checksum[u] {
			err = multierr.Append(err, t.Checksum[u][r].validate(u, r))
		}
	}
	for i, c := range t.CounterInit {
		if c.Src > 1 {
			err = multierr.Append(err, invalid("counter_init[%d]: src %d", i, c.Src))
		}
		if c.Rot > 7 {
			err = multierr.Append(err, invalid("counter_init[%d]: rot %d", i, c.Rot))
		}
	}
	return err
}

func (o Offsets) validate(where string) error {
	var err error
	if int(o.Lookup16)+2 > WindowBytes {
		err = multierr.Append(err, invalid("%s: lookup16 offset %d", where, o.Lookup16))
	}
	for i, v := range o.Lookup8 {
		if int(v) >= WindowBytes {
			err = multierr.Append(err, invalid("%s: lookup8[%d] offset %d", where, i, v))
		}
	}
	return err
}

func (e *EaRow) validate(row int) error {
	var err error
	if e.ShiftAmt > WindowBytes {
		err = multierr.Append(err, invalid("ea[%d]: shift_amt %d exceeds window", row, e.ShiftAmt))
	}
	if e.CtrLdSrc > CtrSrcInitTable {
		err = multierr.Append(err, invalid("ea[%d]: ctr_ld_src %d", row, e.CtrLdSrc))
	}
	err = multierr.Append(err, Offsets{e.LookupOffset16, e.LookupOffset8}.validate(fmt.Sprintf("ea[%d]", row)))
	return err
}

func (a *ActionRow) validate(row int) error {
	var err error
	for i, l := range a.lanes() {
		if !l.En {
			continue
		}
		if int(l.Src)+int(l.width/8) > WindowBytes {
			err = multierr.Append(err, invalid("action[%d] lane %d: src %d+%d exceeds window", row, i, l.Src, l.width/8))
		}
		if int(l.Dst) >= core.NumContainers {
			err = multierr.Append(err, invalid("action[%d] lane %d: dst %d", row, i, l.Dst))
		}
		if l.RotImm > 3 {
			err = multierr.Append(err, invalid("action[%d] lane %d: rot_imm %d", row, i, l.RotImm))
		}
	}
	for u, c := range a.Checksum {
		if c.En && int(c.Addr) >= NumChecksumRows {
			err = multierr.Append(err, invalid("action[%d]: csum_addr_%d %d", row, u, c.Addr))
		}
	}
	if a.PriUpdType > PriUpdMax {
		err = multierr.Append(err, invalid("action[%d]: pri_upd_type %d", row, a.PriUpdType))
	}
	if a.PriUpdType >= PriUpdWindow && int(a.PriUpdSrc) >= WindowBytes {
		err = multierr.Append(err, invalid("action[%d]: pri_upd_src %d", row, a.PriUpdSrc))
	}
	if a.PriUpdEnShr > 7 || a.PriUpdValMask > MaxPriority {
		err = multierr.Append(err, invalid("action[%d]: pri_upd shr %d mask %d", row, a.PriUpdEnShr, a.PriUpdValMask))
	}
	return err
}

func (c *ChecksumCtrlRow) validate(unit, row int) error {
	var err error
	if c.Swap >= 1<<17 {
		err = multierr.Append(err, invalid("checksum[%d][%d]: swap %#x", unit, row, c.Swap))
	}
	if c.ZerosAsOnesPos != 0 && c.ZerosAsOnesPos != 16 {
		err = multierr.Append(err, invalid("checksum[%d][%d]: zeros_as_ones_pos %d", unit, row, c.ZerosAsOnesPos))
	}
	if int(c.Dst) >= core.NumContainers {
		err = multierr.Append(err, invalid("checksum[%d][%d]: dst %d", unit, row, c.Dst))
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrConfigInvalid}, args...)...)
}
