package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/xtxerr/pingd/config"
	"github.com/xtxerr/pingd/internal/backpressure"
	"github.com/xtxerr/pingd/internal/logging"
	"github.com/xtxerr/pingd/internal/store"
	"github.com/xtxerr/pingd/internal/types"
)

// WriteResult summarizes one writer run.
type WriteResult struct {
	Received  int
	Added     int
	AddErrors int

	FlushErr      error
	FlushDuration time.Duration
}

// Writer is the single consumer of the measurement channel. It owns the
// Store for the duration of a run.
type Writer struct {
	Store    store.Store
	Logger   *slog.Logger
	Observer Observer

	// Monitor, if set, samples channel occupancy after every receive.
	Monitor *backpressure.Monitor

	// FlushTimeout bounds the final flush. Zero selects the default.
	FlushTimeout time.Duration
}

// Run adds every measurement received on in to the store until in is
// closed, then flushes the store exactly once.
//
// Cancelling ctx does not stop the writer: every measurement a worker
// managed to send is still added, and the final flush runs on a context
// detached from ctx, bounded by FlushTimeout.
func (w *Writer) Run(ctx context.Context, in <-chan types.Measurement) WriteResult {
	var res WriteResult

	log := w.Logger
	if log == nil {
		log = logging.Component("writer")
	}
	obs := observerOrNop(w.Observer)
	storeCtx := context.WithoutCancel(ctx)

	for m := range in {
		res.Received++
		if w.Monitor != nil {
			w.Monitor.Observe(len(in), cap(in))
		}
		obs.MeasurementReceived(m)

		if err := w.Store.AddMeasurement(storeCtx, m); err != nil {
			res.AddErrors++
			obs.StoreAddFailed(m, err)
			log.Error("failed to add measurement",
				"host", m.Host,
				"rtt", m.Duration,
				"error", err,
			)
			continue
		}
		res.Added++
	}

	timeout := w.FlushTimeout
	if timeout <= 0 {
		timeout = config.DefaultFlushTimeout
	}
	flushCtx, cancel := context.WithTimeout(storeCtx, timeout)
	defer cancel()

	start := time.Now()
	res.FlushErr = w.Store.Flush(flushCtx)
	res.FlushDuration = time.Since(start)
	obs.StoreFlushed(res.FlushDuration, res.FlushErr)

	if res.FlushErr != nil {
		log.Error("final flush failed",
			"measurements", res.Added,
			"duration", res.FlushDuration,
			"error", res.FlushErr,
		)
	} else {
		log.Info("flushed measurements",
			"measurements", res.Added,
			"add_errors", res.AddErrors,
			"duration", res.FlushDuration,
		)
	}
	return res
}
