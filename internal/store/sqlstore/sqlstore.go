// Package sqlstore stores measurements in a SQL table.
//
// Two drivers are supported: DuckDB (embedded, file based) and PostgreSQL.
// Both use the same table layout:
//
//	ping_measurement(ts TIMESTAMPTZ, target TEXT, origin TEXT, duration_ms BIGINT)
//
// Rows are buffered by AddMeasurement and inserted in a single transaction
// by Flush.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/store"
	"github.com/xtxerr/pingd/internal/types"
	"github.com/xtxerr/pingd/internal/validation"
)

func init() {
	store.Register(constants.StoreDuckDB, func(cfg store.Config, logger *slog.Logger) (store.Store, error) {
		return Open("duckdb", cfg, logger)
	})
	store.Register(constants.StorePostgres, func(cfg store.Config, logger *slog.Logger) (store.Store, error) {
		return Open("postgres", cfg, logger)
	})
}

// openTimeout bounds connecting and creating the table.
const openTimeout = 10 * time.Second

// Row is one buffered measurement.
type Row struct {
	Time       time.Time
	Target     string
	Origin     string
	DurationMs int64
}

// Store inserts buffered rows into a SQL table.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	table      string
	origin     string
	rows       []Row
	maxPending int

	mu     sync.Mutex
	closed bool
}

// Open connects with driver ("duckdb" or "postgres") to cfg.DSN and creates
// the table if it does not exist.
func Open(driver string, cfg store.Config, logger *slog.Logger) (*Store, error) {
	if cfg.DSN == "" && driver != "duckdb" {
		return nil, errors.NewMissingField("dsn")
	}
	table := cfg.SeriesName()
	if err := validation.ValidateSeriesName(table); err != nil {
		return nil, errors.NewInvalidValue("measurement", table, err.Error())
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "duckdb" {
		// DuckDB allows one writer per database file.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:         db,
		logger:     logger,
		table:      table,
		origin:     cfg.Origin(),
		maxPending: cfg.PendingLimit(),
	}
	if err := s.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts          TIMESTAMPTZ NOT NULL,
		target      TEXT NOT NULL,
		origin      TEXT NOT NULL,
		duration_ms BIGINT NOT NULL
	)`, quoteIdent(s.table))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// AddMeasurement buffers m as a row.
func (s *Store) AddMeasurement(ctx context.Context, m types.Measurement) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreWrite, err)
	}
	s.rows = append(s.rows, Row{
		Time:       m.Time.UTC(),
		Target:     m.Host,
		Origin:     s.origin,
		DurationMs: m.Millis(),
	})
	return nil
}

// Flush inserts all buffered rows in one transaction. On failure nothing is
// inserted and the newest rows, up to the pending limit, stay buffered.
func (s *Store) Flush(ctx context.Context) error {
	if len(s.rows) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.ErrStoreClosed
	}

	start := time.Now()
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertQuery(s.table))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range s.rows {
			if _, err := stmt.ExecContext(ctx, r.Time, r.Target, r.Origin, r.DurationMs); err != nil {
				return fmt.Errorf("insert row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("flush %d rows: %v: %w", len(s.rows), err, errors.ErrStoreFlush)
		s.rows = store.RetainFailed(s.rows, s.maxPending, s.logger)
		return err
	}

	s.logger.Debug("rows inserted", "rows", len(s.rows), "table", s.table, "duration", time.Since(start))
	s.rows = s.rows[:0]
	return nil
}

// transaction executes fn within a database transaction.
func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Pending returns the number of buffered rows.
func (s *Store) Pending() int {
	return len(s.rows)
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func insertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (ts, target, origin, duration_ms) VALUES ($1, $2, $3, $4)", quoteIdent(table))
}

// quoteIdent quotes a table name for both DuckDB and PostgreSQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
