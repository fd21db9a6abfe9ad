// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GlobalConfig represents the top-level global static configuration.
// Maps to the `parsim:` root key in YAML.
type GlobalConfig struct {
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Sim     SimConfig     `mapstructure:"sim"`
	Report  ReportConfig  `mapstructure:"report"`
}

// ─── Simulation ───

// SimConfig configures the parser lanes.
type SimConfig struct {
	Profile       string   `mapstructure:"profile"`        // parser profile YAML
	Instances     []string `mapstructure:"instances"`      // empty = every instance in the profile
	QueueDepth    int      `mapstructure:"queue_depth"`    // per-lane channel capacity
	EgressHandoff bool     `mapstructure:"egress_handoff"` // feed ingress successes to the egress lane of the same pipe
	Trace         bool     `mapstructure:"trace"`
}

// ─── Reporting ───

// ReportConfig selects where parse results go.
type ReportConfig struct {
	Console ConsoleReportConfig `mapstructure:"console"`
	Kafka   KafkaReportConfig   `mapstructure:"kafka"`
}

// ConsoleReportConfig configures the stdout reporter.
type ConsoleReportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Format  string `mapstructure:"format"` // text / json
	PHV     bool   `mapstructure:"phv"`    // include written containers
}

// KafkaReportConfig configures the Kafka reporter.
type KafkaReportConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	BatchSize       int      `mapstructure:"batch_size"`
	BatchTimeout    string   `mapstructure:"batch_timeout"` // e.g. "100ms"
	Compression     string   `mapstructure:"compression"`   // none / gzip / snappy / lz4 / zstd
	MaxAttempts     int      `mapstructure:"max_attempts"`
	MaxMessageBytes int      `mapstructure:"max_message_bytes"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `parsim: ...`.
type configRoot struct {
	Parsim GlobalConfig `mapstructure:"parsim"`
}

// Load loads configuration from file. An empty path yields the defaults,
// still subject to environment overrides.
// Env vars use the PARSIM_ prefix (e.g., PARSIM_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `parsim.` key prefix maps to `PARSIM_` via the key replacer
	// (e.g., key "parsim.log.level" → env "PARSIM_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Parsim

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "parsim." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("parsim.log.level", "info")
	v.SetDefault("parsim.log.format", "text")
	v.SetDefault("parsim.log.outputs.file.enabled", false)
	v.SetDefault("parsim.log.outputs.file.path", "/var/log/parsim/parsim.log")
	v.SetDefault("parsim.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("parsim.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("parsim.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("parsim.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("parsim.metrics.enabled", false)
	v.SetDefault("parsim.metrics.listen", ":9091")
	v.SetDefault("parsim.metrics.path", "/metrics")

	// Simulation defaults. Every key needs a default, even an empty one,
	// for AutomaticEnv to reach it through Unmarshal.
	v.SetDefault("parsim.sim.profile", "")
	v.SetDefault("parsim.sim.instances", []string{})
	v.SetDefault("parsim.sim.queue_depth", 1024)
	v.SetDefault("parsim.sim.egress_handoff", false)
	v.SetDefault("parsim.sim.trace", false)

	// Reporter defaults
	v.SetDefault("parsim.report.console.enabled", true)
	v.SetDefault("parsim.report.console.format", "text")
	v.SetDefault("parsim.report.console.phv", false)
	v.SetDefault("parsim.report.kafka.enabled", false)
	v.SetDefault("parsim.report.kafka.brokers", []string{})
	v.SetDefault("parsim.report.kafka.topic", "")
	v.SetDefault("parsim.report.kafka.batch_size", 100)
	v.SetDefault("parsim.report.kafka.batch_timeout", "100ms")
	v.SetDefault("parsim.report.kafka.compression", "snappy")
	v.SetDefault("parsim.report.kafka.max_attempts", 3)
	v.SetDefault("parsim.report.kafka.max_message_bytes", 1048576)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	// ── Sim ──
	if cfg.Sim.QueueDepth <= 0 {
		return fmt.Errorf("invalid sim.queue_depth: %d (must be > 0)", cfg.Sim.QueueDepth)
	}

	// ── Console reporter ──
	if cfg.Report.Console.Format != "json" && cfg.Report.Console.Format != "text" {
		return fmt.Errorf("invalid report.console.format: %s (must be json/text)", cfg.Report.Console.Format)
	}

	// ── Kafka reporter ──
	k := &cfg.Report.Kafka
	if k.Enabled {
		if len(k.Brokers) == 0 {
			return fmt.Errorf("report.kafka.brokers is required when report.kafka.enabled=true")
		}
		if k.Topic == "" {
			return fmt.Errorf("report.kafka.topic is required when report.kafka.enabled=true")
		}
		if _, err := time.ParseDuration(k.BatchTimeout); err != nil {
			return fmt.Errorf("invalid report.kafka.batch_timeout: %w", err)
		}
		switch k.Compression {
		case "", "none", "gzip", "snappy", "lz4", "zstd":
		default:
			return fmt.Errorf("invalid report.kafka.compression: %s", k.Compression)
		}
	}

	return nil
}
