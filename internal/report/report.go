// Package report delivers parse results to stdout and Kafka.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"

	"firestige.xyz/parsim/internal/config"
	"firestige.xyz/parsim/internal/packet"
	"firestige.xyz/parsim/internal/parser"
)

// Record is the reported view of one parse.
type Record struct {
	PacketID       string                  `json:"packet_id"`
	BaseID         uint32                  `json:"base_id"`
	Frame          int                     `json:"frame,omitempty"`
	Timestamp      time.Time               `json:"timestamp"`
	Lane           string                  `json:"lane"`
	Gress          string                  `json:"gress"`
	Outcome        string                  `json:"outcome"`
	Error          string                  `json:"error,omitempty"`
	Iterations     int                     `json:"iterations"`
	Cursor         int                     `json:"cursor"`
	FinalState     uint8                   `json:"final_state"`
	Version        uint8                   `json:"version"`
	Priority       uint8                   `json:"priority"`
	ParsableHdrLen int                     `json:"parsable_hdr_len"`
	Checksums      []parser.ChecksumResult `json:"checksums,omitempty"`
	PHV            map[uint16]uint32       `json:"phv,omitempty"`
	Trace          []parser.Step           `json:"trace,omitempty"`
}

// NewRecord builds a record from pkt after res was produced on its active
// view. frame is the source frame index, zero when unknown.
func NewRecord(pkt *packet.Packet, res parser.Result, frame int, ts time.Time) *Record {
	view := pkt.Active()
	r := &Record{
		PacketID:       pkt.ID().String(),
		BaseID:         pkt.ID().BaseID(),
		Frame:          frame,
		Timestamp:      ts,
		Lane:           res.Instance,
		Gress:          pkt.Gress().String(),
		Outcome:        res.Outcome.String(),
		Iterations:     res.Iterations,
		Cursor:         res.Cursor,
		FinalState:     res.FinalState,
		Version:        res.Version,
		Priority:       pkt.Priority,
		ParsableHdrLen: view.ParsableHdrLen,
		Checksums:      res.Checksums,
		Trace:          res.Trace,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	if view.PHV != nil {
		r.PHV = view.PHV.Map()
	}
	return r
}

// Sink receives records. Report may be called from several lanes at once.
type Sink interface {
	Name() string
	Report(ctx context.Context, r *Record) error
	Close() error
}

// Multi fans a record out to every sink.
type Multi []Sink

// New builds the sinks enabled in cfg. Console output goes to stdout.
func New(cfg config.ReportConfig, stdout io.Writer) (Multi, error) {
	var sinks Multi
	if cfg.Console.Enabled {
		c, err := NewConsole(stdout, cfg.Console.Format, cfg.Console.PHV)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, c)
	}
	if cfg.Kafka.Enabled {
		k, err := NewKafka(cfg.Kafka)
		if err != nil {
			return nil, multierr.Append(err, sinks.Close())
		}
		sinks = append(sinks, k)
	}
	return sinks, nil
}

func (m Multi) Name() string { return "multi" }

// Report delivers r to every sink and joins their errors.
func (m Multi) Report(ctx context.Context, r *Record) error {
	var err error
	for _, s := range m {
		if e := s.Report(ctx, r); e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Name(), e))
		}
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}
