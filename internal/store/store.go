// Package store defines the storage capability the pingd pipeline writes to.
//
// The pipeline depends on two operations only: AddMeasurement buffers one
// sample and Flush delivers everything buffered in one batch. Backends
// register a Factory under their type name from an init function and are
// selected by configuration:
//
//	import _ "github.com/xtxerr/pingd/internal/store/influx"
//
//	st, err := store.Open(store.Config{Type: "influxdb", DB: "telemetry"}, logger)
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/xtxerr/pingd/config"
	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/types"
)

// =============================================================================
// Store
// =============================================================================

// Store is a buffering sink for measurements.
//
// A Store is owned by a single writer for the duration of a run and need
// not be safe for concurrent use.
type Store interface {
	// AddMeasurement buffers one sample. It must not block indefinitely.
	AddMeasurement(ctx context.Context, m types.Measurement) error

	// Flush delivers all buffered samples in one batch. It succeeds without
	// I/O when nothing is buffered and clears the buffer only on success.
	// After a failure it keeps at most the newest Config.PendingLimit
	// measurements.
	Flush(ctx context.Context) error
}

// Pending is implemented by stores that can report their buffer size.
type Pending interface {
	Pending() int
}

// Close closes s if it implements io.Closer.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Retain trims a batch that failed to flush to its newest max items and
// returns how many of the oldest were discarded.
func Retain[T any](buf []T, max int) ([]T, int) {
	if max <= 0 || len(buf) <= max {
		return buf, 0
	}
	dropped := len(buf) - max
	n := copy(buf, buf[dropped:])
	clear(buf[n:])
	return buf[:n], dropped
}

// RetainFailed applies Retain to a batch whose flush failed and logs what
// was discarded.
func RetainFailed[T any](buf []T, max int, logger *slog.Logger) []T {
	buf, dropped := Retain(buf, max)
	if dropped > 0 {
		logger.Warn("discarding oldest buffered measurements after failed flush",
			"dropped", dropped,
			"kept", len(buf))
	}
	return buf
}

// =============================================================================
// Store Configuration
// =============================================================================

// Config holds the settings of one backend. Each backend reads the fields
// that apply to it.
type Config struct {
	// Type selects the backend.
	Type string

	// InfluxDB connection.
	Host  string
	DB    string
	Org   string
	Token string

	// Measurement is the series (or table) name.
	Measurement string

	// From identifies the collecting machine. Empty means os.Hostname().
	From string

	// DSN is the database connection string for SQL backends.
	DSN string

	// Path is the output file or directory for file backends.
	Path string

	// MaxPending caps the measurements kept after failed flushes. Zero
	// selects the default.
	MaxPending int
}

// SeriesName returns the configured measurement name or the default.
func (c Config) SeriesName() string {
	if c.Measurement == "" {
		return constants.MeasurementName
	}
	return c.Measurement
}

// PendingLimit returns the configured buffer cap or the default.
func (c Config) PendingLimit() int {
	if c.MaxPending > 0 {
		return c.MaxPending
	}
	return config.DefaultMaxPending
}

// Origin returns the value of the from tag.
func (c Config) Origin() string {
	if c.From != "" {
		return c.From
	}
	return Hostname()
}

// Hostname returns the name of this machine, or "unknown" when the
// operating system does not report one.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

// =============================================================================
// Registry
// =============================================================================

// Factory creates a backend from its configuration.
type Factory func(cfg Config, logger *slog.Logger) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available under name. It panics when name is
// registered twice, which can only happen through a programming error.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("store: backend %q registered twice", name))
	}
	registry[name] = f
}

// Registered returns the names of all registered backends, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the backend selected by cfg.Type.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.NewUnknownBackend("store type", cfg.Type)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s, err := f(cfg, logger.With("store", cfg.Type))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.Type)
	}
	return s, nil
}

// OpenAll opens every configured backend. A single backend is returned as
// is; several are combined into a Multi. Backends opened before a failure
// are closed again.
func OpenAll(cfgs []Config, logger *slog.Logger) (Store, error) {
	if len(cfgs) == 0 {
		return nil, errors.NewMissingField("store")
	}

	stores := make([]Store, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := Open(cfg, logger)
		if err != nil {
			for _, opened := range stores {
				_ = Close(opened)
			}
			return nil, err
		}
		stores = append(stores, s)
	}

	if len(stores) == 1 {
		return stores[0], nil
	}
	return NewMulti(stores...), nil
}
