// Package influx stores measurements as InfluxDB points.
//
// Two backends are registered: "influxdb" writes batches to a server through
// the blocking write API, "lineprotocol" appends the same points as line
// protocol to a file or stdout.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/store"
	"github.com/xtxerr/pingd/internal/types"
)

func init() {
	store.Register(constants.StoreInfluxDB, func(cfg store.Config, logger *slog.Logger) (store.Store, error) {
		return New(cfg, logger)
	})
	store.Register(constants.StoreLineProtocol, func(cfg store.Config, logger *slog.Logger) (store.Store, error) {
		return NewLineProtocol(cfg, logger)
	})
}

// PointWriter writes a batch of points. api.WriteAPIBlocking implements it.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Store buffers points and writes them in one request on Flush.
type Store struct {
	client influxdb2.Client
	writer PointWriter
	logger *slog.Logger

	measurement string
	from        string
	points      []*write.Point
	maxPending  int
}

// New connects to the InfluxDB server in cfg.Host and writes to the bucket
// cfg.DB. No request is made until the first flush.
func New(cfg store.Config, logger *slog.Logger) (*Store, error) {
	if cfg.Host == "" {
		return nil, errors.NewMissingField("host")
	}
	if cfg.DB == "" {
		return nil, errors.NewMissingField("db")
	}

	opts := influxdb2.DefaultOptions().SetPrecision(time.Nanosecond)
	client := influxdb2.NewClientWithOptions(cfg.Host, cfg.Token, opts)

	s := NewWithWriter(client.WriteAPIBlocking(cfg.Org, cfg.DB), cfg.SeriesName(), cfg.Origin(), logger)
	s.client = client
	s.maxPending = cfg.PendingLimit()
	return s, nil
}

// NewWithWriter creates a Store on top of an existing writer.
func NewWithWriter(w PointWriter, measurement, from string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		writer:      w,
		logger:      logger,
		measurement: measurement,
		from:        from,
		maxPending:  store.Config{}.PendingLimit(),
	}
}

// AddMeasurement buffers m as a point.
func (s *Store) AddMeasurement(ctx context.Context, m types.Measurement) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreWrite, err)
	}
	s.points = append(s.points, NewPoint(s.measurement, s.from, m))
	return nil
}

// Flush writes every buffered point in one request.
func (s *Store) Flush(ctx context.Context) error {
	if len(s.points) == 0 {
		return nil
	}

	start := time.Now()
	if err := s.writer.WritePoint(ctx, s.points...); err != nil {
		err = fmt.Errorf("write %d points: %v: %w", len(s.points), err, errors.ErrStoreFlush)
		s.points = store.RetainFailed(s.points, s.maxPending, s.logger)
		return err
	}

	s.logger.Debug("points written", "points", len(s.points), "duration", time.Since(start))
	s.points = s.points[:0]
	return nil
}

// Pending returns the number of buffered points.
func (s *Store) Pending() int {
	return len(s.points)
}

// Close releases the HTTP client.
func (s *Store) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// NewPoint converts m to a point: series measurement, tags target and from,
// integer field duration in milliseconds, nanosecond timestamp.
func NewPoint(measurement, from string, m types.Measurement) *write.Point {
	return write.NewPoint(
		measurement,
		map[string]string{
			constants.TagTarget: m.Host,
			constants.TagFrom:   from,
		},
		map[string]interface{}{
			constants.FieldDuration: m.Millis(),
		},
		m.Time,
	)
}
