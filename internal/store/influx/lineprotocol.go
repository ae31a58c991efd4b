package influx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/store"
	"github.com/xtxerr/pingd/internal/types"
)

// LineProtocol appends buffered points as line protocol to a file, or to
// stdout when the path is "-". The output can be fed to telegraf or
// `influx write`.
type LineProtocol struct {
	path   string
	out    io.Writer // set when writing to stdout or in tests
	logger *slog.Logger

	measurement string
	from        string
	points      []*write.Point
	maxPending  int
}

// NewLineProtocol creates a line protocol backend for cfg.Path.
func NewLineProtocol(cfg store.Config, logger *slog.Logger) (*LineProtocol, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lp := &LineProtocol{
		path:        cfg.Path,
		logger:      logger,
		measurement: cfg.SeriesName(),
		from:        cfg.Origin(),
		maxPending:  cfg.PendingLimit(),
	}
	if cfg.Path == "" || cfg.Path == "-" {
		lp.out = os.Stdout
	}
	return lp, nil
}

// NewLineProtocolWriter creates a backend that writes to w.
func NewLineProtocolWriter(w io.Writer, measurement, from string) *LineProtocol {
	return &LineProtocol{
		out:         w,
		logger:      slog.Default(),
		measurement: measurement,
		from:        from,
		maxPending:  store.Config{}.PendingLimit(),
	}
}

// AddMeasurement buffers m.
func (lp *LineProtocol) AddMeasurement(ctx context.Context, m types.Measurement) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreWrite, err)
	}
	lp.points = append(lp.points, NewPoint(lp.measurement, lp.from, m))
	return nil
}

// Flush writes every buffered point, one line each.
func (lp *LineProtocol) Flush(ctx context.Context) error {
	if len(lp.points) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrStoreFlush)
	}

	var b strings.Builder
	for _, p := range lp.points {
		b.WriteString(strings.TrimRight(write.PointToLineProtocol(p, time.Nanosecond), "\n"))
		b.WriteByte('\n')
	}

	if err := lp.write(b.String()); err != nil {
		err = fmt.Errorf("write %d lines: %v: %w", len(lp.points), err, errors.ErrStoreFlush)
		lp.points = store.RetainFailed(lp.points, lp.maxPending, lp.logger)
		return err
	}

	lp.logger.Debug("line protocol written", "points", len(lp.points), "path", lp.path)
	lp.points = lp.points[:0]
	return nil
}

func (lp *LineProtocol) write(data string) error {
	if lp.out != nil {
		_, err := io.WriteString(lp.out, data)
		return err
	}

	f, err := os.OpenFile(lp.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(data); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Pending returns the number of buffered points.
func (lp *LineProtocol) Pending() int {
	return len(lp.points)
}
