// Package constants provides centralized domain-specific constants
// for the entire pingd application.
//
// This file consolidates all magic strings that are shared between the
// loader, the pipeline and the store backends.
package constants

// =============================================================================
// Series Layout
// =============================================================================

const (
	// MeasurementName is the series name of every stored latency sample.
	MeasurementName = "ping_measurement"

	// TagTarget holds the probed host.
	TagTarget = "target"

	// TagFrom holds the identity of the machine running the collector.
	TagFrom = "from"

	// FieldDuration holds the round-trip time in whole milliseconds.
	FieldDuration = "duration"
)

// =============================================================================
// Store Backends
// =============================================================================

const (
	// StoreInfluxDB writes points to an InfluxDB server.
	StoreInfluxDB = "influxdb"

	// StoreLineProtocol writes InfluxDB line protocol to a file or stdout.
	StoreLineProtocol = "lineprotocol"

	// StoreDuckDB inserts rows into an embedded DuckDB database.
	StoreDuckDB = "duckdb"

	// StorePostgres inserts rows into a PostgreSQL database.
	StorePostgres = "postgres"

	// StoreParquet writes one Parquet file per flush.
	StoreParquet = "parquet"
)

// ValidStoreTypes contains all valid store backend names
var ValidStoreTypes = []string{StoreInfluxDB, StoreLineProtocol, StoreDuckDB, StorePostgres, StoreParquet}

// IsValidStoreType checks if a store backend name is known
func IsValidStoreType(typ string) bool {
	for _, s := range ValidStoreTypes {
		if s == typ {
			return true
		}
	}
	return false
}

// =============================================================================
// Probe Backends
// =============================================================================

const (
	// ProbeExec runs the system ping binary and parses its output.
	ProbeExec = "exec"

	// ProbeICMP sends ICMP echo requests from within the process.
	ProbeICMP = "icmp"
)

// ValidProbeBackends contains all valid probe backend names
var ValidProbeBackends = []string{ProbeExec, ProbeICMP}

// =============================================================================
// Policies
// =============================================================================

const (
	// PolicySkip logs a host whose probe cannot start and keeps the run going.
	PolicySkip = "skip"

	// PolicyAbort cancels the whole run on the first probe start failure.
	PolicyAbort = "abort"
)

// ValidStartErrorPolicies contains all valid probe start error policies
var ValidStartErrorPolicies = []string{PolicySkip, PolicyAbort}

// Contains reports whether s is one of values.
func Contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
