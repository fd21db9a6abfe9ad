// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ParsePacketsTotal counts parsed packets by lane and outcome
	ParsePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parsim_parse_packets_total",
			Help: "Total number of packets parsed",
		},
		[]string{"instance", "gress", "outcome"},
	)

	// ParseIterations measures TCAM iterations per parse
	ParseIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parsim_parse_iterations",
			Help:    "Number of parser iterations per packet",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1 .. 256
		},
		[]string{"instance"},
	)

	// ParseLatencySeconds measures wall time of one parse
	ParseLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parsim_parse_latency_seconds",
			Help:    "Latency of a single packet parse in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 20), // 100ns to ~50ms
		},
		[]string{"instance"},
	)

	// ParsedBytesTotal counts header bytes consumed by successful parses
	ParsedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parsim_parsed_bytes_total",
			Help: "Total header bytes consumed by successful parses",
		},
		[]string{"instance"},
	)

	// ChecksumsTotal counts finalized checksums; zero means the covered
	// bytes already carried a valid checksum
	ChecksumsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parsim_checksums_total",
			Help: "Total number of finalized checksum accumulations",
		},
		[]string{"instance", "unit", "result"},
	)

	// LaneQueueDepth tracks packets waiting on each lane
	LaneQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parsim_lane_queue_depth",
			Help: "Number of packets queued on a parser lane",
		},
		[]string{"lane"},
	)

	// ConfigVersion tracks the active configuration version bit
	ConfigVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parsim_config_version",
			Help: "Active configuration version of a parser instance",
		},
		[]string{"instance"},
	)

	// ConfigSwapsTotal counts table loads and version switches
	ConfigSwapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parsim_config_swaps_total",
			Help: "Total number of configuration swaps",
		},
		[]string{"instance", "kind"},
	)

	// ReporterErrorsTotal counts reporter errors by name and error type
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parsim_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter", "error_type"},
	)
)

// Checksum result label values
const (
	ChecksumValid   = "valid"
	ChecksumInvalid = "invalid"
)
