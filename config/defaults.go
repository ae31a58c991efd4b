// Package config provides configuration defaults for the pingd collector.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

import "time"

// =============================================================================
// Probe Defaults
// =============================================================================

const (
	// DefaultPingCount is the number of probe events observed per host and run.
	// Override via config: ping_count
	DefaultPingCount = 10

	// DefaultProbeInterval is the fixed delay between two probes of one host.
	// This is a policy constant; it is not derived from ping_count.
	// Override via config: probe.interval
	DefaultProbeInterval = 300 * time.Millisecond

	// DefaultProbeCommand is the executable used by the exec prober.
	// Override via config: probe.command
	DefaultProbeCommand = "ping"

	// DefaultICMPTimeout is how long the ICMP prober waits for an echo reply
	// before reporting the packet as timed out.
	// Override via config: probe.timeout
	DefaultICMPTimeout = time.Second
)

// =============================================================================
// Pipeline Defaults
// =============================================================================

const (
	// DefaultChannelCapacity is the number of measurements that may be
	// outstanding between the probe workers and the writer. When full,
	// workers block (backpressure).
	// Override via config: pipeline.channel_capacity
	DefaultChannelCapacity = 33

	// DefaultMaxParallel bounds concurrently running probe streams.
	// Zero means one stream per host, all at once.
	// Override via config: pipeline.max_parallel
	DefaultMaxParallel = 0
)

// =============================================================================
// Store Defaults
// =============================================================================

const (
	// DefaultStoreType is the backend used when store.type is empty.
	DefaultStoreType = "influxdb"

	// DefaultInfluxHost is the InfluxDB endpoint.
	// Override via config: store.host
	DefaultInfluxHost = "http://localhost:8086"

	// DefaultFlushTimeout bounds the final flush of a run. The flush runs
	// even when the run itself was cancelled.
	// Override via config: store.flush_timeout
	DefaultFlushTimeout = 30 * time.Second

	// DefaultMaxPending caps the measurements a store keeps buffered after
	// failed flushes. The oldest are discarded first.
	// Override via config: store.max_pending
	DefaultMaxPending = 100000

	// DefaultSQLTable is the table written by the SQL backends.
	DefaultSQLTable = "ping_measurement"
)

// =============================================================================
// Backpressure Defaults
// =============================================================================

const (
	// DefaultBackpressureWarning is the channel occupancy ratio at which the
	// writer reports elevated pressure.
	DefaultBackpressureWarning = 0.50

	// DefaultBackpressureCritical is the occupancy ratio reported as critical.
	DefaultBackpressureCritical = 0.80

	// DefaultBackpressureHysteresis must be crossed downwards before a level
	// is left again, to avoid flapping log lines.
	DefaultBackpressureHysteresis = 0.10
)

// =============================================================================
// Summary Defaults
// =============================================================================

const (
	// DefaultPercentileAccuracy is the DDSketch relative accuracy used for
	// per-host latency percentiles (0.01 = 1%).
	DefaultPercentileAccuracy = 0.01
)

// =============================================================================
// Logging Defaults
// =============================================================================

const (
	// DefaultLogLevel is the minimum level written.
	// Override via config: log.level
	DefaultLogLevel = "info"

	// DefaultLogFormat selects text on a terminal and JSON otherwise.
	// Override via config: log.format
	DefaultLogFormat = "auto"

	// DefaultLogMaxSizeMB is the size at which the optional log file rotates.
	// Override via config: log.max_size_mb
	DefaultLogMaxSizeMB = 50

	// DefaultLogMaxBackups is how many rotated log files are kept.
	// Override via config: log.max_backups
	DefaultLogMaxBackups = 3
)
