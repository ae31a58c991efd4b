package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	pingerrors "github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/store"
	"github.com/xtxerr/pingd/internal/types"
)

var t0 = time.Unix(1700000000, 0).UTC()

func openDuckDB(t *testing.T) *Store {
	t.Helper()
	cfg := store.Config{
		DSN:  filepath.Join(t.TempDir(), "pingd.duckdb"),
		From: "collector",
	}
	s, err := Open("duckdb", cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func countRows(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow(`SELECT count(*) FROM "ping_measurement"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestDuckDBFlush(t *testing.T) {
	s := openDuckDB(t)
	ctx := context.Background()

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}

	hosts := []string{"a", "a", "b"}
	for i, h := range hosts {
		m := types.NewMeasurement(h, t0.Add(time.Duration(i)*time.Second), time.Duration(10+i)*time.Millisecond)
		if err := s.AddMeasurement(ctx, m); err != nil {
			t.Fatalf("AddMeasurement: %v", err)
		}
	}
	if countRows(t, s) != 0 {
		t.Fatal("rows visible before Flush")
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after flush", s.Pending())
	}
	if n := countRows(t, s); n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}

	rows, err := s.DB().Query(`SELECT target, origin, duration_ms FROM "ping_measurement" ORDER BY ts`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var got []int64
	for rows.Next() {
		var target, origin string
		var ms int64
		if err := rows.Scan(&target, &origin, &ms); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if origin != "collector" {
			t.Errorf("origin = %q", origin)
		}
		got = append(got, ms)
	}
	if len(got) != 3 || got[0] != 10 || got[2] != 12 {
		t.Errorf("durations = %v, want [10 11 12]", got)
	}
}

func TestDuckDBReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pingd.duckdb")
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		s, err := Open("duckdb", store.Config{DSN: path}, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		_ = s.AddMeasurement(ctx, types.NewMeasurement("a", t0, time.Millisecond))
		if err := s.Flush(ctx); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		if run == 1 {
			if n := countRows(t, s); n != 2 {
				t.Errorf("rows = %d, want 2", n)
			}
		}
		s.Close()
	}
}

func TestFlushAfterCloseKeepsRows(t *testing.T) {
	s := openDuckDB(t)
	ctx := context.Background()

	_ = s.AddMeasurement(ctx, types.NewMeasurement("a", t0, time.Millisecond))
	s.Close()

	if err := s.Flush(ctx); !pingerrors.Is(err, pingerrors.ErrStoreClosed) {
		t.Fatalf("Flush after Close = %v, want ErrStoreClosed", err)
	}
	if s.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", s.Pending())
	}
}

func TestAddRejectsInvalid(t *testing.T) {
	s := openDuckDB(t)
	err := s.AddMeasurement(context.Background(), types.NewMeasurement("a", t0, -time.Second))
	if !pingerrors.Is(err, pingerrors.ErrStoreWrite) {
		t.Errorf("AddMeasurement = %v, want ErrStoreWrite", err)
	}
}

func TestOpenRejectsBadTable(t *testing.T) {
	cfg := store.Config{DSN: filepath.Join(t.TempDir(), "x.duckdb"), Measurement: "ping; drop"}
	if _, err := Open("duckdb", cfg, nil); !pingerrors.Is(err, pingerrors.ErrInvalidConfig) {
		t.Errorf("Open = %v, want ErrInvalidConfig", err)
	}
}

func TestInsertQuery(t *testing.T) {
	want := `INSERT INTO "ping_measurement" (ts, target, origin, duration_ms) VALUES ($1, $2, $3, $4)`
	if got := insertQuery("ping_measurement"); got != want {
		t.Errorf("insertQuery = %s", got)
	}
	if got := quoteIdent(`a"b`); got != `"a""b"` {
		t.Errorf("quoteIdent = %s", got)
	}
}

// TestPostgres runs against a real server when PINGD_TEST_POSTGRES_DSN is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("PINGD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PINGD_TEST_POSTGRES_DSN not set")
	}

	table := "ping_measurement_test"
	s, err := Open("postgres", store.Config{DSN: dsn, Measurement: table}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	defer s.DB().Exec(`DROP TABLE IF EXISTS "` + table + `"`)

	ctx := context.Background()
	_ = s.AddMeasurement(ctx, types.NewMeasurement("a", t0, 7*time.Millisecond))
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var ms int64
	if err := s.DB().QueryRow(`SELECT duration_ms FROM "` + table + `"`).Scan(&ms); err != nil {
		t.Fatalf("query: %v", err)
	}
	if ms != 7 {
		t.Errorf("duration_ms = %d, want 7", ms)
	}
}

func TestPostgresRequiresDSN(t *testing.T) {
	if _, err := Open("postgres", store.Config{}, nil); !pingerrors.Is(err, pingerrors.ErrMissingField) {
		t.Errorf("Open without dsn = %v, want ErrMissingField", err)
	}
}
