// Package loader - Configuration Types
//
// LOCATION: internal/loader/types.go
//
// Defines the YAML configuration structure for pingd.
//
// ARCHITECTURE:
//
//   ┌─────────────────────────────────────────────────────────────────────┐
//   │                         config.yaml                                 │
//   ├─────────────────────────────────────────────────────────────────────┤
//   │                                                                     │
//   │  ping_count, ping_targets:  what to measure                         │
//   │  probe:       exec ping binary or in-process ICMP                   │
//   │  pipeline:    channel capacity, concurrency bound                   │
//   │  policy:      probe start failures, flush failures                  │
//   │                                                                     │
//   │  ┌───────────────────┐  ┌───────────────────────────────────────┐   │
//   │  │  workers (1/host) │→ │ channel (cap 33) → writer → store(s)  │   │
//   │  └───────────────────┘  └───────────────────────────────────────┘   │
//   │                                                                     │
//   │  store/stores: influxdb, lineprotocol, duckdb, postgres, parquet    │
//   │  collect:     optional cron schedule for repeated runs              │
//   │  log, metrics, summary: ambient                                     │
//   │                                                                     │
//   └─────────────────────────────────────────────────────────────────────┘

package loader

import (
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/pingd/config"
	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/validation"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for pingd.
type Config struct {
	// -------------------------------------------------------------------------
	// Measurement
	// -------------------------------------------------------------------------

	// PingCount is the number of probe events observed per host and run.
	// Successes, timeouts and unrecognized lines each count as one.
	// Default: 10
	PingCount int `yaml:"ping_count"`

	// PingTargets lists the hosts to probe. Accepts a single string or a list.
	PingTargets StringList `yaml:"ping_targets"`

	// Include lists additional config files to load.
	// Supports glob patterns. Relative to this file's directory.
	// Included files contribute ping_targets and stores.
	Include []string `yaml:"include"`

	// -------------------------------------------------------------------------
	// Pipeline
	// -------------------------------------------------------------------------

	// Probe selects and configures the probe backend.
	Probe ProbeConfig `yaml:"probe"`

	// Pipeline configures the hand-off between workers and the writer.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Policy configures how failures affect a run.
	Policy PolicyConfig `yaml:"policy"`

	// -------------------------------------------------------------------------
	// Storage
	// -------------------------------------------------------------------------

	// Store configures a single backend.
	Store *StoreConfig `yaml:"store,omitempty"`

	// Stores configures several backends. Every measurement is written to
	// each of them.
	Stores []StoreConfig `yaml:"stores,omitempty"`

	// -------------------------------------------------------------------------
	// Runtime
	// -------------------------------------------------------------------------

	// Collect configures repeated runs.
	Collect CollectConfig `yaml:"collect"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Metrics configures Prometheus export.
	Metrics MetricsConfig `yaml:"metrics"`

	// Summary configures the per-host end-of-run report.
	Summary SummaryConfig `yaml:"summary"`

	// -------------------------------------------------------------------------
	// Deprecated (kept for backwards compatibility)
	// -------------------------------------------------------------------------

	// Count is deprecated. Use PingCount instead.
	Count int `yaml:"count,omitempty"`

	// PingHost is deprecated. Use PingTargets instead.
	// Entries are appended to PingTargets.
	PingHost StringList `yaml:"ping_host,omitempty"`

	// InfluxDB is deprecated. Use Store with type influxdb instead.
	InfluxDB *StoreConfig `yaml:"influxdb,omitempty"`
}

// =============================================================================
// Probe Configuration
// =============================================================================

// ProbeConfig configures the probe backend.
type ProbeConfig struct {
	// Backend is exec (system ping binary) or icmp (in-process).
	// Default: exec
	Backend string `yaml:"backend"`

	// Interval is the fixed delay between two probes of one host.
	// Default: 300ms
	Interval Duration `yaml:"interval"`

	// Command is the ping executable (exec backend only).
	// Default: ping
	Command string `yaml:"command"`

	// Privileged uses raw sockets instead of unprivileged datagram ICMP
	// (icmp backend only).
	// Default: false
	Privileged bool `yaml:"privileged"`

	// Timeout is how long an echo request may stay unanswered before it is
	// reported as a timeout (icmp backend only).
	// Default: 1s
	Timeout Duration `yaml:"timeout"`
}

// =============================================================================
// Pipeline Configuration
// =============================================================================

// PipelineConfig configures the aggregator channel and worker concurrency.
type PipelineConfig struct {
	// ChannelCapacity is the number of measurements that may be in flight
	// between workers and the writer.
	// Default: 33
	ChannelCapacity int `yaml:"channel_capacity"`

	// MaxParallel bounds concurrently running probe streams.
	// 0 starts every host at once.
	// Default: 0
	MaxParallel int `yaml:"max_parallel"`
}

// PolicyConfig configures failure handling.
type PolicyConfig struct {
	// OnProbeStartError is skip (continue with the other hosts) or abort
	// (cancel the run).
	// Default: skip
	OnProbeStartError string `yaml:"on_probe_start_error"`

	// FailOnFlushError makes a failed final flush a run failure, which gives
	// the process a non-zero exit code.
	// Default: false
	FailOnFlushError bool `yaml:"fail_on_flush_error"`
}

// =============================================================================
// Store Configuration
// =============================================================================

// StoreConfig configures one storage backend.
type StoreConfig struct {
	// Type selects the backend: influxdb, lineprotocol, duckdb, postgres,
	// parquet.
	// Default: influxdb
	Type string `yaml:"type"`

	// Host is the InfluxDB URL.
	// Default: http://localhost:8086
	Host string `yaml:"host"`

	// DB is the InfluxDB bucket (database for 1.x servers).
	DB string `yaml:"db"`

	// Org is the InfluxDB organization. Empty for 1.x servers.
	Org string `yaml:"org"`

	// Token authenticates against InfluxDB. Use ${ENV} expansion to keep it
	// out of the file.
	Token string `yaml:"token"`

	// Measurement is the series name (table name for SQL backends).
	// Default: ping_measurement
	Measurement string `yaml:"measurement"`

	// From identifies the collecting machine.
	// Default: os.Hostname()
	From string `yaml:"from"`

	// DSN is the connection string for duckdb and postgres.
	DSN string `yaml:"dsn"`

	// Path is the output directory (parquet) or file (lineprotocol, "-"
	// for stdout).
	Path string `yaml:"path"`

	// FlushTimeout bounds the final flush of a run.
	// Default: 30s
	FlushTimeout Duration `yaml:"flush_timeout"`

	// MaxPending caps the measurements kept buffered after failed flushes
	// when runs repeat on a schedule.
	// Default: 100000
	MaxPending int `yaml:"max_pending"`
}

// =============================================================================
// Runtime Configuration
// =============================================================================

// CollectConfig configures repeated runs.
type CollectConfig struct {
	// Schedule is a cron expression (5 fields or a descriptor such as
	// "@every 1m"). Empty runs once and exits.
	Schedule string `yaml:"schedule"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format: text, json, auto.
	// Default: auto
	Format string `yaml:"format"`

	// File is an optional log file, rotated by size.
	File string `yaml:"file"`

	// MaxSizeMB is the rotation size of the log file.
	// Default: 50
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	// Default: 3
	MaxBackups int `yaml:"max_backups"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	// Textfile is written after every run in the node_exporter textfile
	// collector format. Empty disables export.
	Textfile string `yaml:"textfile"`
}

// SummaryConfig configures the per-host report.
type SummaryConfig struct {
	// Accuracy is the relative accuracy of latency percentiles
	// (0.01 = 1% error).
	// Range: 0.001-0.1, Default: 0.01
	Accuracy float64 `yaml:"accuracy"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		PingCount: config.DefaultPingCount,
		Probe: ProbeConfig{
			Backend:  constants.ProbeExec,
			Interval: Duration(config.DefaultProbeInterval),
			Command:  config.DefaultProbeCommand,
			Timeout:  Duration(config.DefaultICMPTimeout),
		},
		Pipeline: PipelineConfig{
			ChannelCapacity: config.DefaultChannelCapacity,
			MaxParallel:     config.DefaultMaxParallel,
		},
		Policy: PolicyConfig{
			OnProbeStartError: constants.PolicySkip,
		},
		Log: LogConfig{
			Level:      config.DefaultLogLevel,
			Format:     config.DefaultLogFormat,
			MaxSizeMB:  config.DefaultLogMaxSizeMB,
			MaxBackups: config.DefaultLogMaxBackups,
		},
		Summary: SummaryConfig{
			Accuracy: config.DefaultPercentileAccuracy,
		},
	}
}

// ApplyLegacyFields migrates deprecated fields to their current location.
//
// A legacy count only applies when ping_count was left at its default.
func (c *Config) ApplyLegacyFields() {
	if c.Count > 0 && c.PingCount == config.DefaultPingCount {
		c.PingCount = c.Count
	}

	if len(c.PingHost) > 0 {
		c.PingTargets = append(c.PingTargets, c.PingHost...)
		c.PingHost = nil
	}

	if c.InfluxDB != nil && c.Store == nil {
		legacy := *c.InfluxDB
		if legacy.Type == "" {
			legacy.Type = constants.StoreInfluxDB
		}
		c.Store = &legacy
	}
	c.InfluxDB = nil
}

// Normalize cleans the target list and fills store defaults. It runs after
// includes were merged.
func (c *Config) Normalize() {
	c.PingTargets = validation.NormalizeHosts(c.PingTargets)

	if c.Store != nil {
		c.Stores = append([]StoreConfig{*c.Store}, c.Stores...)
		c.Store = nil
	}
	for i := range c.Stores {
		c.Stores[i].applyDefaults()
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.Type == "" {
		s.Type = config.DefaultStoreType
	}
	if s.Measurement == "" {
		s.Measurement = constants.MeasurementName
	}
	if s.FlushTimeout <= 0 {
		s.FlushTimeout = Duration(config.DefaultFlushTimeout)
	}
	if s.MaxPending == 0 {
		s.MaxPending = config.DefaultMaxPending
	}
	switch s.Type {
	case constants.StoreInfluxDB:
		if s.Host == "" {
			s.Host = config.DefaultInfluxHost
		}
	case constants.StoreLineProtocol:
		if s.Path == "" {
			s.Path = "-"
		}
	}
}

// Targets returns the configured ping targets.
func (c *Config) Targets() []string {
	return []string(c.PingTargets)
}

// =============================================================================
// Helper Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Supports: "300ms", "30s", "1m", or a plain integer number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)

	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// StringList is a list of strings that may be written as a single scalar.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}
