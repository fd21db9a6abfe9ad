package sim

import "sync/atomic"

type counters struct {
	submitted    atomic.Uint64
	parsed       atomic.Uint64
	success      atomic.Uint64
	failed       atomic.Uint64
	aborted      atomic.Uint64
	handedOff    atomic.Uint64
	dropped      atomic.Uint64
	reported     atomic.Uint64
	reportErrors atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Submitted:    c.submitted.Load(),
		Parsed:       c.parsed.Load(),
		Success:      c.success.Load(),
		Failed:       c.failed.Load(),
		Aborted:      c.aborted.Load(),
		HandedOff:    c.handedOff.Load(),
		Dropped:      c.dropped.Load(),
		Reported:     c.reported.Load(),
		ReportErrors: c.reportErrors.Load(),
	}
}

// Stats represents runner statistics. Parsed counts parses, so a packet
// handed to egress is counted twice.
type Stats struct {
	Submitted    uint64 `json:"submitted"`
	Parsed       uint64 `json:"parsed"`
	Success      uint64 `json:"success"`
	Failed       uint64 `json:"failed"`
	Aborted      uint64 `json:"aborted"`
	HandedOff    uint64 `json:"handed_off"`
	Dropped      uint64 `json:"dropped"`
	Reported     uint64 `json:"reported"`
	ReportErrors uint64 `json:"report_errors"`
}
