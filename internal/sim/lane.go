package sim

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"firestige.xyz/parsim/internal/core"
	"firestige.xyz/parsim/internal/metrics"
	"firestige.xyz/parsim/internal/parser"
	"firestige.xyz/parsim/internal/report"
)

type lane struct {
	name   string
	gress  string
	in     *parser.Instance
	ch     chan item
	sim    *Sim
	logger *slog.Logger
}

func newLane(s *Sim, in *parser.Instance, depth int) *lane {
	return &lane{
		name:   in.Name(),
		gress:  in.Gress().String(),
		in:     in,
		ch:     make(chan item, depth),
		sim:    s,
		logger: slog.With("lane", in.Name()),
	}
}

func (l *lane) enqueue(ctx context.Context, it item) error {
	select {
	case l.ch <- it:
		metrics.LaneQueueDepth.WithLabelValues(l.name).Set(float64(len(l.ch)))
		return nil
	case <-ctx.Done():
		l.sim.stats.dropped.Add(1)
		return ctx.Err()
	}
}

// run parses until the lane's queue is closed and drained.
func (l *lane) run() {
	l.logger.Info("lane started", "gress", l.gress, "pipe", l.in.Pipe())
	defer l.logger.Info("lane stopped")

	for it := range l.ch {
		metrics.LaneQueueDepth.WithLabelValues(l.name).Set(float64(len(l.ch)))
		l.process(it)
	}
}

func (l *lane) process(it item) {
	st := &l.sim.stats
	start := time.Now()
	res := l.in.Parse(it.pkt)
	elapsed := time.Since(start)

	st.parsed.Add(1)
	metrics.ParsePacketsTotal.WithLabelValues(l.name, l.gress, res.Outcome.String()).Inc()
	metrics.ParseIterations.WithLabelValues(l.name).Observe(float64(res.Iterations))
	metrics.ParseLatencySeconds.WithLabelValues(l.name).Observe(elapsed.Seconds())
	for _, cs := range res.Checksums {
		result := metrics.ChecksumInvalid
		if cs.Valid() {
			result = metrics.ChecksumValid
		}
		metrics.ChecksumsTotal.WithLabelValues(l.name, strconv.Itoa(cs.Unit), result).Inc()
	}

	switch res.Outcome {
	case core.OutcomeSuccess:
		st.success.Add(1)
		metrics.ParsedBytesTotal.WithLabelValues(l.name).Add(float64(res.Cursor))
	case core.OutcomeAborted:
		st.aborted.Add(1)
		l.logger.Debug("parse aborted", "pkt_id", it.pkt.ID(), "iterations", res.Iterations, "error", res.Err)
	default:
		st.failed.Add(1)
		l.logger.Debug("parse failed", "pkt_id", it.pkt.ID(), "cursor", res.Cursor, "error", res.Err)
	}

	l.report(it, res)

	if res.Outcome == core.OutcomeSuccess && l.in.Gress() == core.Ingress && l.sim.cfg.EgressHandoff {
		l.handoff(it)
	}
}

func (l *lane) report(it item, res parser.Result) {
	sink := l.sim.cfg.Sink
	if sink == nil {
		return
	}
	rec := report.NewRecord(it.pkt, res, it.frame, it.ts)
	if err := sink.Report(l.sim.ctx, rec); err != nil {
		l.sim.stats.reportErrors.Add(1)
		l.logger.Error("report failed", "sink", sink.Name(), "pkt_id", it.pkt.ID(), "error", err)
		return
	}
	l.sim.stats.reported.Add(1)
}

// handoff passes the packet to the egress lane of the same pipe. The send
// transfers ownership; this lane must not touch the packet afterwards.
func (l *lane) handoff(it item) {
	next, ok := l.sim.egress[l.in.Pipe()]
	if !ok {
		return
	}
	it.pkt.SetEgress()
	if err := next.enqueue(l.sim.ctx, it); err != nil {
		l.logger.Debug("egress hand-off dropped", "pkt_id", it.pkt.ID(), "error", err)
		return
	}
	l.sim.stats.handedOff.Add(1)
}
