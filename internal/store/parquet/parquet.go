// Package parquet stores measurements as Parquet files.
//
// Every successful flush writes one new file into the configured directory,
// named after the flush time and the collecting machine. Files are written
// under a temporary name and renamed when complete, so readers never see a
// partial file.
package parquet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/store"
	"github.com/xtxerr/pingd/internal/types"
)

func init() {
	store.Register(constants.StoreParquet, func(cfg store.Config, logger *slog.Logger) (store.Store, error) {
		return New(cfg, logger)
	})
}

// Row is one measurement in Parquet format.
type Row struct {
	TimeNs     int64  `parquet:"time_ns"`
	Target     string `parquet:"target,zstd"`
	From       string `parquet:"from,zstd"`
	DurationMs int64  `parquet:"duration_ms"`
}

// MeasurementToRow converts a measurement.
func MeasurementToRow(m types.Measurement, from string) Row {
	return Row{
		TimeNs:     m.UnixNano(),
		Target:     m.Host,
		From:       from,
		DurationMs: m.Millis(),
	}
}

// Options configures the Parquet writer.
type Options struct {
	// Compression codec of the file pages.
	Compression compress.Codec
}

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{Compression: &parquet.Zstd}
}

// Store buffers rows and writes one file per flush.
type Store struct {
	dir    string
	prefix string
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	from       string
	rows       []Row
	maxPending int
}

// New creates the output directory cfg.Path.
func New(cfg store.Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.NewMissingField("path")
	}
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:        cfg.Path,
		prefix:     cfg.SeriesName(),
		opts:       DefaultOptions(),
		logger:     logger,
		now:        time.Now,
		from:       cfg.Origin(),
		maxPending: cfg.PendingLimit(),
	}, nil
}

// AddMeasurement buffers m.
func (s *Store) AddMeasurement(ctx context.Context, m types.Measurement) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreWrite, err)
	}
	s.rows = append(s.rows, MeasurementToRow(m, s.from))
	return nil
}

// Flush writes the buffered rows to a new file.
func (s *Store) Flush(ctx context.Context) error {
	if len(s.rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrStoreFlush)
	}

	path := filepath.Join(s.dir, s.fileName())
	if err := writeFile(path, s.rows, s.opts); err != nil {
		err = fmt.Errorf("write %s: %v: %w", path, err, errors.ErrStoreFlush)
		s.rows = store.RetainFailed(s.rows, s.maxPending, s.logger)
		return err
	}

	s.logger.Debug("parquet file written", "path", path, "rows", len(s.rows))
	s.rows = s.rows[:0]
	return nil
}

// Pending returns the number of buffered rows.
func (s *Store) Pending() int {
	return len(s.rows)
}

func (s *Store) fileName() string {
	return fmt.Sprintf("%s-%s-%d.parquet", s.prefix, sanitize(s.from), s.now().UTC().UnixNano())
}

func writeFile(path string, rows []Row, opts Options) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[Row](f, parquet.Compression(opts.Compression))
	if _, err := writer.Write(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close file: %w", err)
	}
	return os.Rename(tmp, path)
}

func sanitize(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
