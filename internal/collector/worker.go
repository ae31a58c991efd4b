package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/xtxerr/pingd/config"
	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/logging"
	"github.com/xtxerr/pingd/internal/probe"
	"github.com/xtxerr/pingd/internal/types"
)

// WorkerResult describes how a worker's loop ended.
type WorkerResult struct {
	Host string

	// Events counts probe responses: successes, timeouts and unrecognized
	// lines. It never exceeds the configured count.
	Events int

	// Sent counts measurements handed to the channel.
	Sent int

	// Dropped counts measurements abandoned because the run was cancelled
	// while the channel was full.
	Dropped int

	// Exited is set when the probe ended before count events were seen.
	Exited   bool
	ExitCode int

	Cancelled bool
}

// Worker probes one host and sends a Measurement for every successful
// response.
type Worker struct {
	Host     string
	Count    int
	Interval time.Duration
	Prober   probe.Prober
	Logger   *slog.Logger
	Observer Observer

	now func() time.Time
}

// Run starts the probe stream and consumes up to Count events from it.
//
// The stream is closed on every return path. The only error returned is a
// *errors.ProbeStartError; everything that happens after the stream was
// started is logged, observed and reflected in the result.
func (w *Worker) Run(ctx context.Context, out chan<- types.Measurement) (WorkerResult, error) {
	res := WorkerResult{Host: w.Host}
	log := w.logger()
	obs := observerOrNop(w.Observer)

	interval := w.Interval
	if interval <= 0 {
		interval = config.DefaultProbeInterval
	}

	stream, err := w.Prober.Start(ctx, w.Host, interval)
	if err != nil {
		if !errors.IsProbeStart(err) {
			err = errors.NewProbeStartError(w.Host, err)
		}
		obs.ProbeStartFailed(w.Host, err)
		return res, err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn("failed to close probe", "error", err)
		}
	}()

	obs.ProbeStarted(w.Host)
	log.Debug("probe started", "count", w.Count, "interval", interval)

	events := stream.Events()
	var last time.Time

	for res.Events < w.Count {
		var (
			ev probe.Event
			ok bool
		)
		select {
		case ev, ok = <-events:
		case <-ctx.Done():
			res.Cancelled = true
			log.Debug("probe cancelled", "events", res.Events)
			return res, nil
		}

		if !ok {
			// A stream must report Exited before it ends. Treat a bare close
			// the same way so the loop never waits on a dead stream.
			res.Exited = true
			res.ExitCode = -1
			log.Error("probe stream ended without exit status", "events", res.Events)
			return res, nil
		}

		obs.ProbeEvent(w.Host, ev)

		switch ev.Kind {
		case probe.Success:
			res.Events++

			at := w.clock()
			if at.Before(last) {
				at = last
			}
			last = at

			m := types.NewMeasurement(w.Host, at, ev.RTT)
			if !w.send(ctx, out, m, log, obs) {
				res.Dropped++
				res.Cancelled = true
				return res, nil
			}
			res.Sent++

		case probe.Timeout:
			res.Events++
			log.Warn("probe timed out", "line", ev.Line)

		case probe.Unrecognized:
			res.Events++
			log.Warn("unrecognized probe output", "line", ev.Line)

		case probe.Exited:
			res.Exited = true
			res.ExitCode = ev.ExitCode
			log.Error("probe exited early",
				"exit_code", ev.ExitCode,
				"stderr", ev.Stderr,
				"events", res.Events,
				"want", w.Count,
			)
			return res, nil
		}
	}

	log.Debug("probe finished", "events", res.Events, "sent", res.Sent)
	return res, nil
}

// send hands m to the channel, blocking while it is full. It gives up only
// when ctx is cancelled; the drop is logged and observed.
func (w *Worker) send(ctx context.Context, out chan<- types.Measurement, m types.Measurement, log *slog.Logger, obs Observer) bool {
	select {
	case out <- m:
		return true
	default:
	}

	select {
	case out <- m:
		return true
	case <-ctx.Done():
		log.Warn("measurement dropped, run cancelled while channel was full",
			"rtt", m.Duration,
			"time", m.Time,
		)
		obs.MeasurementDropped(m)
		return false
	}
}

func (w *Worker) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}

func (w *Worker) logger() *slog.Logger {
	log := w.Logger
	if log == nil {
		log = logging.Component("worker")
	}
	return log.With("host", w.Host)
}
