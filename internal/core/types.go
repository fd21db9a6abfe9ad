// Package core defines core types with zero external dependencies.
package core

import "fmt"

// Gress selects the ingress or egress half of the pipeline.
type Gress uint8

const (
	Ingress Gress = iota
	Egress
)

func (g Gress) String() string {
	switch g {
	case Ingress:
		return "ingress"
	case Egress:
		return "egress"
	default:
		return fmt.Sprintf("gress(%d)", uint8(g))
	}
}

// ParseGress converts "ingress"/"egress" to a Gress.
func ParseGress(s string) (Gress, error) {
	switch s {
	case "ingress", "i":
		return Ingress, nil
	case "egress", "e":
		return Egress, nil
	default:
		return 0, fmt.Errorf("%w: unknown gress %q", ErrConfigInvalid, s)
	}
}

// Outcome is the terminal status of one parse.
type Outcome uint8

const (
	// OutcomeNone means the packet has not been parsed on this view yet.
	OutcomeNone Outcome = iota
	OutcomeSuccess
	// OutcomeFailed covers no-match and out-of-bounds reads.
	OutcomeFailed
	// OutcomeAborted means the iteration budget ran out.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Port, Clot and Teop are handles owned by stages outside the parser.
// The packet stores them and never looks inside.
type (
	Port interface{ PortIndex() int }
	Clot any
	Teop any
)
