// Package sim runs parser instances as concurrent lanes. Each lane owns a
// goroutine and a bounded queue; packets move between lanes by channel
// send, so a packet is only ever touched by one lane at a time.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"firestige.xyz/parsim/internal/core"
	"firestige.xyz/parsim/internal/metrics"
	"firestige.xyz/parsim/internal/packet"
	"firestige.xyz/parsim/internal/parser"
	"firestige.xyz/parsim/internal/profile"
	"firestige.xyz/parsim/internal/report"
	"firestige.xyz/parsim/internal/source"
)

// Config contains runner configuration.
type Config struct {
	QueueDepth    int // per-lane channel capacity
	EgressHandoff bool
	Sink          report.Sink // nil discards records
}

type item struct {
	pkt   *packet.Packet
	frame int
	ts    time.Time
}

// Sim owns the lanes built from a set of parser instances.
type Sim struct {
	cfg     Config
	lanes   map[string]*lane
	ingress []*lane       // sorted by pipe
	egress  map[int]*lane // by pipe
	stats   counters

	mu      sync.RWMutex // guards stopped against Submit
	stopped bool
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	ingWG   conc.WaitGroup
	egrWG   conc.WaitGroup
}

// New builds one lane per instance. At least one ingress instance is
// required and a gress/pipe pair may appear only once.
func New(instances []*parser.Instance, cfg Config) (*Sim, error) {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1024
	}
	s := &Sim{
		cfg:    cfg,
		lanes:  make(map[string]*lane),
		egress: make(map[int]*lane),
	}
	ingress := make(map[int]*lane)
	for _, in := range instances {
		if _, dup := s.lanes[in.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate lane %s", core.ErrConfigInvalid, in.Name())
		}
		l := newLane(s, in, cfg.QueueDepth)
		byPipe := ingress
		if in.Gress() == core.Egress {
			byPipe = s.egress
		}
		if prev, dup := byPipe[in.Pipe()]; dup {
			return nil, fmt.Errorf("%w: lanes %s and %s share %s pipe %d",
				core.ErrConfigInvalid, prev.name, l.name, in.Gress(), in.Pipe())
		}
		byPipe[in.Pipe()] = l
		s.lanes[l.name] = l
		metrics.ConfigVersion.WithLabelValues(l.name).Set(float64(in.Version()))
	}
	if len(ingress) == 0 {
		return nil, fmt.Errorf("%w: no ingress instance", core.ErrConfigInvalid)
	}
	for _, l := range ingress {
		s.ingress = append(s.ingress, l)
	}
	slices.SortFunc(s.ingress, func(a, b *lane) int { return a.in.Pipe() - b.in.Pipe() })
	return s, nil
}

// Lanes returns the lane names, ingress first.
func (s *Sim) Lanes() []string {
	names := make([]string, 0, len(s.lanes))
	for _, l := range s.ingress {
		names = append(names, l.name)
	}
	egress := make([]string, 0, len(s.egress))
	for _, l := range s.egress {
		egress = append(egress, l.name)
	}
	slices.Sort(egress)
	return append(names, egress...)
}

// Instance returns the parser instance behind a lane.
func (s *Sim) Instance(name string) (*parser.Instance, error) {
	l, ok := s.lanes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownInstance, name)
	}
	return l.in, nil
}

// Start launches the lane goroutines. ctx bounds sink calls and the
// ingress to egress hand-off.
func (s *Sim) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, l := range s.ingress {
		s.ingWG.Go(l.run)
	}
	for _, l := range s.egress {
		s.egrWG.Go(l.run)
	}
	slog.Info("sim started", "lanes", s.Lanes(), "queue_depth", s.cfg.QueueDepth, "egress_handoff", s.cfg.EgressHandoff)
}

// Submit hands pkt to the ingress lane of pipe BaseID % pipes. It blocks
// while that lane's queue is full.
func (s *Sim) Submit(ctx context.Context, pkt *packet.Packet) error {
	return s.submit(ctx, item{pkt: pkt, ts: time.Now()})
}

func (s *Sim) submit(ctx context.Context, it item) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped || !s.started {
		return core.ErrRunnerStopped
	}
	l := s.ingress[int(it.pkt.ID().BaseID()%uint32(len(s.ingress)))]
	s.stats.submitted.Add(1)
	return l.enqueue(ctx, it)
}

// Stop drains every queue and waits for the lanes. Ingress lanes finish
// before the egress queues close so that hand-offs are never lost. A
// panic in a lane is returned as an error.
func (s *Sim) Stop() error {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for _, l := range s.ingress {
		close(l.ch)
	}
	s.mu.Unlock()

	var err error
	if r := s.ingWG.WaitAndRecover(); r != nil {
		err = r.AsError()
	}
	for _, l := range s.egress {
		close(l.ch)
	}
	if r := s.egrWG.WaitAndRecover(); r != nil {
		err = multierr.Append(err, r.AsError())
	}
	s.cancel()

	st := s.Stats()
	slog.Info("sim stopped",
		"submitted", st.Submitted,
		"parsed", st.Parsed,
		"success", st.Success,
		"failed", st.Failed,
		"aborted", st.Aborted,
		"handed_off", st.HandedOff,
		"report_errors", st.ReportErrors,
	)
	return err
}

// Run starts the lanes, feeds every frame of src through them and stops
// once src is exhausted or ctx is cancelled. Frame i becomes packet base
// id i.
func (s *Sim) Run(ctx context.Context, src source.Source) (Stats, error) {
	s.Start(ctx)
	feedErr := s.feed(ctx, src)
	stopErr := s.Stop()
	return s.Stats(), multierr.Append(feedErr, stopErr)
}

func (s *Sim) feed(ctx context.Context, src source.Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.Read()
		if errors.Is(err, io.EOF) || errors.Is(err, core.ErrSourceClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", src.Name(), err)
		}
		pkt := packet.New(packet.ID(0).WithBaseID(uint32(f.Index)), f.Data, nil)
		if err := s.submit(ctx, item{pkt: pkt, frame: f.Index, ts: f.Timestamp}); err != nil {
			return err
		}
	}
}

// Reload swaps the tables of every lane named in p. Lanes missing from p
// keep their rows; profile instances without a lane are an error.
func (s *Sim) Reload(p *profile.Profile) error {
	var err error
	for i := range p.Instances {
		spec := &p.Instances[i]
		l, ok := s.lanes[spec.Name]
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: %s", core.ErrUnknownInstance, spec.Name))
			continue
		}
		t, e := spec.Tables()
		if e != nil {
			err = multierr.Append(err, e)
			continue
		}
		if e := l.in.Swap(t, spec.Version); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		metrics.ConfigSwapsTotal.WithLabelValues(l.name, "tables").Inc()
		metrics.ConfigVersion.WithLabelValues(l.name).Set(float64(spec.Version))
	}
	return err
}

// SetVersion flips the active configuration bit on every lane.
func (s *Sim) SetVersion(v uint8) error {
	var err error
	for _, l := range s.lanes {
		if e := l.in.SetVersion(v); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		metrics.ConfigSwapsTotal.WithLabelValues(l.name, "version").Inc()
		metrics.ConfigVersion.WithLabelValues(l.name).Set(float64(v))
	}
	return err
}

// Stats returns a snapshot of the runner counters.
func (s *Sim) Stats() Stats {
	return s.stats.snapshot()
}
