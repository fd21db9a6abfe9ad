package parser

import (
	"fmt"

	"firestige.xyz/parsim/internal/core"
)

// MaxPriority is the largest packet priority.
const MaxPriority = 7

// updatePriority runs the action row's priority program.
func updatePriority(cur uint8, a *ActionRow, w *Window) (uint8, error) {
	switch a.PriUpdType {
	case PriUpdNone:
		return cur, nil
	case PriUpdImmediate:
		return a.PriUpdValMask & MaxPriority, nil
	case PriUpdWindow, PriUpdMax:
		b, err := w.bytes(int(a.PriUpdSrc), 1)
		if err != nil {
			return cur, fmt.Errorf("priority source: %w", err)
		}
		p := (b[0] >> a.PriUpdEnShr) & a.PriUpdValMask & MaxPriority
		if a.PriUpdType == PriUpdMax && p < cur {
			return cur, nil
		}
		return p, nil
	default:
		return cur, fmt.Errorf("%w: priority update type %d", core.ErrConfigInvalid, a.PriUpdType)
	}
}
