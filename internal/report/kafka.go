package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/parsim/internal/config"
	"firestige.xyz/parsim/internal/metrics"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

// Kafka publishes records as JSON, keyed by base id so an original and all
// of its mirror and multicast copies land on the same partition.
type Kafka struct {
	writer *kafka.Writer
	cfg    config.KafkaReportConfig

	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// NewKafka creates the writer. No connection is made until the first
// Report.
func NewKafka(cfg config.KafkaReportConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	timeout := defaultBatchTimeout
	if cfg.BatchTimeout != "" {
		d, err := time.ParseDuration(cfg.BatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid batch_timeout: %w", err)
		}
		timeout = d
	}
	codec, err := codecFor(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	wc := kafka.WriterConfig{
		Brokers:          cfg.Brokers,
		Topic:            cfg.Topic,
		Balancer:         &kafka.Hash{},
		BatchSize:        cfg.BatchSize,
		BatchTimeout:     timeout,
		MaxAttempts:      cfg.MaxAttempts,
		CompressionCodec: codec,
		Async:            false,
	}
	if cfg.MaxMessageBytes > 0 {
		wc.BatchBytes = cfg.MaxMessageBytes
	}

	slog.Info("kafka reporter created",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"batch_size", cfg.BatchSize,
		"batch_timeout", timeout,
		"compression", cfg.Compression,
	)
	return &Kafka{writer: kafka.NewWriter(wc), cfg: cfg}, nil
}

func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "none", "":
		return nil, nil
	case "gzip":
		return compress.Gzip.Codec(), nil
	case "snappy":
		return compress.Snappy.Codec(), nil
	case "lz4":
		return compress.Lz4.Codec(), nil
	case "zstd":
		return compress.Zstd.Codec(), nil
	default:
		return nil, fmt.Errorf("invalid compression type: %s", name)
	}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Report(ctx context.Context, r *Record) error {
	msg, err := k.message(r)
	if err != nil {
		k.errorCount.Add(1)
		metrics.ReporterErrorsTotal.WithLabelValues(k.Name(), "serialize").Inc()
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.errorCount.Add(1)
		metrics.ReporterErrorsTotal.WithLabelValues(k.Name(), "write").Inc()
		return fmt.Errorf("kafka write failed: %w", err)
	}
	k.reportedCount.Add(1)
	return nil
}

func (k *Kafka) message(r *Record) (kafka.Message, error) {
	if r == nil {
		return kafka.Message{}, fmt.Errorf("nil record")
	}
	value, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serialize record failed: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(r.BaseID), 16)),
		Value: value,
		Time:  r.Timestamp,
		Headers: []kafka.Header{
			{Key: "lane", Value: []byte(r.Lane)},
			{Key: "outcome", Value: []byte(r.Outcome)},
			{Key: "version", Value: []byte(strconv.Itoa(int(r.Version)))},
		},
	}, nil
}

// Close flushes pending messages.
func (k *Kafka) Close() error {
	err := k.writer.Close()
	if err != nil {
		slog.Error("error closing kafka writer", "error", err)
	}
	slog.Info("kafka reporter stopped",
		"total_reported", k.reportedCount.Load(),
		"total_errors", k.errorCount.Load(),
	)
	return err
}
