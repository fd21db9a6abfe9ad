package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"firestige.xyz/parsim/internal/core"
	"firestige.xyz/parsim/internal/packet"
)

// bank is an immutable configuration snapshot. A parse reads exactly one.
type bank struct {
	tables  *Tables
	engine  *MatchEngine
	version uint8
}

// Instance is one parser lane: a replicated set of rows bound to a gress
// and pipe. Parse is safe to call concurrently with Load, SetVersion and
// Swap; each packet sees a single consistent bank.
type Instance struct {
	name  string
	gress core.Gress
	pipe  int
	trace bool

	mu   sync.Mutex // serialises writers
	bank atomic.Pointer[bank]

	logger *slog.Logger
}

// Option configures an Instance.
type Option func(*Instance)

// WithTrace records every iteration in Result.Trace.
func WithTrace(on bool) Option {
	return func(in *Instance) { in.trace = on }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Instance) { in.logger = l }
}

// NewInstance creates an unconfigured instance. Parse fails with
// ErrNoConfig until Load or Swap is called.
func NewInstance(name string, gress core.Gress, pipe int, opts ...Option) *Instance {
	in := &Instance{name: name, gress: gress, pipe: pipe, logger: slog.Default()}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.With("instance", name)
	return in
}

func (in *Instance) Name() string      { return in.name }
func (in *Instance) Gress() core.Gress { return in.gress }
func (in *Instance) Pipe() int         { return in.pipe }

// Version returns the active configuration version bit.
func (in *Instance) Version() uint8 {
	if b := in.bank.Load(); b != nil {
		return b.version
	}
	return 0
}

// Tables returns the active tables, nil when unconfigured. The result must
// not be modified.
func (in *Instance) Tables() *Tables {
	if b := in.bank.Load(); b != nil {
		return b.tables
	}
	return nil
}

// Load validates and installs new rows, keeping the active version.
func (in *Instance) Load(t *Tables) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.store(t, in.Version())
}

// SetVersion flips the active configuration version.
func (in *Instance) SetVersion(v uint8) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	cur := in.bank.Load()
	if cur == nil {
		return fmt.Errorf("%s: %w", in.name, core.ErrNoConfig)
	}
	if v > 1 {
		return fmt.Errorf("%w: version %d", core.ErrConfigInvalid, v)
	}
	in.bank.Store(&bank{tables: cur.tables, engine: cur.engine, version: v})
	in.logger.Info("parser version switched", "version", v)
	return nil
}

// Swap installs new rows and a version in one step.
func (in *Instance) Swap(t *Tables, v uint8) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.store(t, v)
}

func (in *Instance) store(t *Tables, v uint8) error {
	if v > 1 {
		return fmt.Errorf("%w: version %d", core.ErrConfigInvalid, v)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%s: %w", in.name, err)
	}
	cp := *t
	in.bank.Store(&bank{tables: &cp, engine: NewMatchEngine(&cp.Tcam), version: v})
	in.logger.Info("parser tables loaded", "rows", len(cp.ActiveRows()), "version", v)
	return nil
}

// Step is one traced iteration.
type Step struct {
	Iteration int    `json:"iteration"`
	State     uint8  `json:"state"`
	Row       int    `json:"row"`
	Cursor    int    `json:"cursor"`
	Counter   int8   `json:"counter"`
	Key       uint64 `json:"key"`
}

// Result describes one parse. Err is nil exactly when Outcome is Success.
// FinalState is the state of the last iteration.
type Result struct {
	Instance   string           `json:"instance"`
	Outcome    core.Outcome     `json:"outcome"`
	Err        error            `json:"-"`
	Iterations int              `json:"iterations"`
	Cursor     int              `json:"cursor"`
	FinalState uint8            `json:"final_state"`
	Version    uint8            `json:"version"`
	Checksums  []ChecksumResult `json:"checksums,omitempty"`
	Trace      []Step           `json:"trace,omitempty"`
}

// Parse walks pkt from its first byte, writing extracted fields into the
// active view's PHV and updating the packet priority. Packet conditions
// never produce a Go error; they are reported through the Result.
func (in *Instance) Parse(pkt *packet.Packet) Result {
	b := in.bank.Load()
	view := pkt.Active()
	data := pkt.Bytes()
	res := Result{Instance: in.name}

	view.OrigHdrLen = len(data)
	if b == nil {
		return finish(pkt, &res, core.OutcomeFailed, fmt.Errorf("%s: %w", in.name, core.ErrNoConfig))
	}
	if view.PHV == nil {
		view.PHV = core.NewPHV()
	}
	view.HdrVersion = b.version
	res.Version = b.version

	t := b.tables
	budget := t.MaxIterations
	if budget == 0 {
		budget = DefaultMaxIterations
	}

	var (
		state  = t.StartState
		off    = t.DefaultOffsets
		cursor int
		ctr    int8
		acc    uint16
		sums   [NumChecksumUnits]uint16
		prio   = pkt.Priority
	)
	defer func() { pkt.Priority = prio }()

	for {
		res.Cursor, res.FinalState = cursor, state
		if res.Iterations >= budget {
			return finish(pkt, &res, core.OutcomeAborted,
				fmt.Errorf("%d iterations, state %d: %w", res.Iterations, state, core.ErrLoopBudgetExceeded))
		}
		res.Iterations++

		w, err := SampleWindow(data, cursor, off)
		if err != nil {
			return finish(pkt, &res, core.OutcomeFailed, err)
		}
		k := key(&w, state, ctr, b.version)
		row, ok := b.engine.Match(k)
		if in.trace {
			res.Trace = append(res.Trace, Step{Iteration: res.Iterations, State: state, Row: row, Cursor: cursor, Counter: ctr, Key: k.Pack()})
		}
		if !ok {
			return finish(pkt, &res, core.OutcomeFailed,
				fmt.Errorf("state %d cursor %d key %#011x: %w", state, cursor, k.Pack(), core.ErrNoMatch))
		}

		ea, act := &t.Ea[row], &t.Action[row]
		ctr = nextCounter(ctr, ea, &w, &t.CounterInit)
		next := t.Merge.Next(ea.NxtState, ea.NxtStateMask, &w)
		off = off.arm(ea)

		if err := Extract(act, &w, view.PHV, &acc); err != nil {
			return finish(pkt, &res, core.OutcomeFailed, fmt.Errorf("row %d: %w", row, err))
		}
		for u, ref := range act.Checksum {
			if !ref.En {
				continue
			}
			cr := &t.Checksum[u][ref.Addr%NumChecksumRows]
			if sums[u], err = Accumulate(sums[u], w.Buf, cr); err != nil {
				return finish(pkt, &res, core.OutcomeFailed, fmt.Errorf("row %d unit %d: %w", row, u, err))
			}
			if !cr.End {
				continue
			}
			v := Finalize(sums[u], cr)
			if err := cr.write(view.PHV, v); err != nil {
				return finish(pkt, &res, core.OutcomeFailed, fmt.Errorf("row %d unit %d: %w", row, u, err))
			}
			res.Checksums = append(res.Checksums, ChecksumResult{Unit: u, Row: int(ref.Addr), Value: v, Dst: cr.Dst, ZerosAsOnes: cr.ZerosAsOnes})
		}
		if prio, err = updatePriority(prio, act, &w); err != nil {
			return finish(pkt, &res, core.OutcomeFailed, fmt.Errorf("row %d: %w", row, err))
		}

		cursor += int(ea.ShiftAmt)
		res.Cursor = cursor
		if ea.Done {
			return finish(pkt, &res, core.OutcomeSuccess, nil)
		}
		if cursor+int(ea.BufReq) > len(data) {
			return finish(pkt, &res, core.OutcomeFailed,
				fmt.Errorf("buf_req %d at cursor %d of %d: %w", ea.BufReq, cursor, len(data), core.ErrOutOfBoundsRead))
		}
		state = next
	}
}

func finish(pkt *packet.Packet, res *Result, o core.Outcome, err error) Result {
	res.Outcome, res.Err = o, err
	view := pkt.Active()
	view.Outcome, view.ParseErr = o, err
	if o == core.OutcomeSuccess {
		view.ParsableHdrLen = res.Cursor
	} else {
		view.ParsableHdrLen = min(res.Cursor, view.OrigHdrLen)
	}
	return *res
}
