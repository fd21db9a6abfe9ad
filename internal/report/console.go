package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"firestige.xyz/parsim/internal/metrics"
)

// Console writes one line per record.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	phv    bool

	reportedCount atomic.Uint64
}

// NewConsole creates a console sink. format is "json" or "text"; phv
// includes the written containers.
func NewConsole(w io.Writer, format string, phv bool) (*Console, error) {
	if format == "" {
		format = "text"
	}
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("invalid format %q, must be json or text", format)
	}
	return &Console{w: w, format: format, phv: phv}, nil
}

func (c *Console) Name() string { return "console" }

// Reported returns the number of records written.
func (c *Console) Reported() uint64 { return c.reportedCount.Load() }

func (c *Console) Report(ctx context.Context, r *Record) error {
	if r == nil {
		return fmt.Errorf("nil record")
	}
	var line []byte
	if c.format == "json" {
		out := *r
		if !c.phv {
			out.PHV = nil
		}
		data, err := json.Marshal(&out)
		if err != nil {
			metrics.ReporterErrorsTotal.WithLabelValues(c.Name(), "serialize").Inc()
			return fmt.Errorf("json marshal failed: %w", err)
		}
		line = append(data, '\n')
	} else {
		line = []byte(c.text(r))
	}

	c.mu.Lock()
	_, err := c.w.Write(line)
	c.mu.Unlock()
	if err != nil {
		metrics.ReporterErrorsTotal.WithLabelValues(c.Name(), "write").Inc()
		return err
	}
	c.reportedCount.Add(1)
	return nil
}

func (c *Console) text(r *Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s iter=%d cursor=%d state=0x%02x ver=%d pri=%d",
		r.Lane, r.PacketID, r.Outcome, r.Iterations, r.Cursor, r.FinalState, r.Version, r.Priority)
	if r.Error != "" {
		fmt.Fprintf(&b, " err=%q", r.Error)
	}
	for _, cs := range r.Checksums {
		fmt.Fprintf(&b, " csum%d[%d]=0x%04x", cs.Unit, cs.Row, cs.Value)
	}
	if c.phv && len(r.PHV) > 0 {
		ids := make([]uint16, 0, len(r.PHV))
		for id := range r.PHV {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		b.WriteString(" phv={")
		for i, id := range ids {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d:0x%x", id, r.PHV[id])
		}
		b.WriteByte('}')
	}
	b.WriteByte('\n')
	return b.String()
}

func (c *Console) Close() error { return nil }
