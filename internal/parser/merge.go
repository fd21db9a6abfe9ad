package parser

import (
	"fmt"

	"firestige.xyz/parsim/internal/core"
)

// MergeMode is how nxt_state_mask pulls window bits into the next state.
type MergeMode uint8

const (
	// MergeSelect replaces the masked bits of nxt_state with window bits.
	MergeSelect MergeMode = iota
	// MergeOr ors the masked window bits into nxt_state.
	MergeOr
)

func (m MergeMode) String() string {
	switch m {
	case MergeSelect:
		return "select"
	case MergeOr:
		return "or"
	default:
		return fmt.Sprintf("merge(%d)", uint8(m))
	}
}

// ParseMergeMode converts "select"/"or"; empty means select.
func ParseMergeMode(s string) (MergeMode, error) {
	switch s {
	case "", "select":
		return MergeSelect, nil
	case "or":
		return MergeOr, nil
	default:
		return 0, fmt.Errorf("%w: unknown merge mode %q", core.ErrConfigInvalid, s)
	}
}

// Next computes the next FSM state. The window bits are the low byte of
// lookup16.
func (m MergeMode) Next(nxt, mask uint8, w *Window) uint8 {
	bits := uint8(w.Lookup16)
	if m == MergeOr {
		return nxt | bits&mask
	}
	return nxt&^mask | bits&mask
}
