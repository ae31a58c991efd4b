package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xtxerr/pingd/config"
	"github.com/xtxerr/pingd/internal/backpressure"
	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/logging"
	"github.com/xtxerr/pingd/internal/probe"
	"github.com/xtxerr/pingd/internal/store"
	"github.com/xtxerr/pingd/internal/summary"
	"github.com/xtxerr/pingd/internal/types"
)

// =============================================================================
// Run Configuration
// =============================================================================

// RunConfig holds the settings of one collection run.
type RunConfig struct {
	Hosts    []string
	Count    int
	Interval time.Duration

	// ChannelCapacity bounds the measurements in flight between the workers
	// and the writer.
	ChannelCapacity int

	// MaxParallel bounds concurrently running probes. Zero runs every host
	// at once.
	MaxParallel int

	// OnStartError is constants.PolicySkip or constants.PolicyAbort.
	OnStartError string

	// FailOnFlushError makes a failed final flush an error of the run.
	FailOnFlushError bool

	FlushTimeout time.Duration
}

// withDefaults fills zero values with the documented defaults.
func (c RunConfig) withDefaults() RunConfig {
	if c.Interval <= 0 {
		c.Interval = config.DefaultProbeInterval
	}
	if c.ChannelCapacity == 0 {
		c.ChannelCapacity = config.DefaultChannelCapacity
	}
	if c.OnStartError == "" {
		c.OnStartError = constants.PolicySkip
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = config.DefaultFlushTimeout
	}
	return c
}

// Validate reports every invalid setting.
func (c RunConfig) Validate() error {
	errs := errors.NewValidationErrors()

	if len(c.Hosts) == 0 {
		errs.AddMissing("hosts")
	}
	for i, h := range c.Hosts {
		if h == "" {
			errs.Add(fmt.Errorf("hosts[%d]: %w", i, errors.ErrInvalidHost))
		}
	}
	if c.Count < 1 {
		errs.Add(errors.NewInvalidValue("count", c.Count, "must be positive"))
	}
	if c.ChannelCapacity < 1 {
		errs.Add(errors.NewInvalidValue("channel capacity", c.ChannelCapacity, "must be at least 1"))
	}
	if c.MaxParallel < 0 {
		errs.Add(errors.NewInvalidValue("max parallel", c.MaxParallel, "must not be negative"))
	}
	if !constants.Contains(constants.ValidStartErrorPolicies, c.OnStartError) {
		errs.Add(errors.NewInvalidValue("start error policy", c.OnStartError, "must be skip or abort"))
	}
	return errs.Err()
}

// =============================================================================
// Report
// =============================================================================

// Report describes a finished run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	// Workers holds one result per host, in configuration order.
	Workers []WorkerResult

	// StartErrors holds the hosts whose probe could not be started.
	StartErrors []error

	Write        WriteResult
	Summaries    []types.HostSummary
	Backpressure backpressure.Stats

	// Cancelled is set when the context was cancelled before the run
	// finished on its own.
	Cancelled bool
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Sent returns the number of measurements the workers handed to the
// channel.
func (r *Report) Sent() int {
	n := 0
	for _, w := range r.Workers {
		n += w.Sent
	}
	return n
}

// =============================================================================
// Runner
// =============================================================================

// Runner executes collection runs. The Store is reused across runs and is
// not closed by the Runner.
type Runner struct {
	Prober probe.Prober
	Store  store.Store
	Logger *slog.Logger

	// Observer receives pipeline events in addition to the per-run summary.
	Observer Observer

	// Accuracy is the relative accuracy of the summary percentiles.
	Accuracy float64

	// Thresholds for the backpressure monitor. Zero selects the defaults.
	Thresholds backpressure.Thresholds

	now func() time.Time
}

// Run executes one collection run with an explicit prober, store and logger.
func Run(ctx context.Context, cfg RunConfig, prober probe.Prober, st store.Store, logger *slog.Logger) (*Report, error) {
	r := &Runner{Prober: prober, Store: st, Logger: logger}
	return r.Run(ctx, cfg)
}

// Run probes every host and stores the measurements.
//
// Errors: a configuration error is returned before anything starts. With
// the abort policy, the first probe that fails to start cancels the run
// and the error wraps errors.ErrRunAborted. A failed final flush wraps
// errors.ErrFlushFailed when cfg.FailOnFlushError is set. A report is
// returned whenever the pipeline ran.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Report, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)

	log := r.Logger
	if log == nil {
		log = logging.Component("collector")
	}
	log = log.With("run_id", runID)

	report := &Report{
		RunID:   runID,
		Started: r.clock(),
		Workers: make([]WorkerResult, len(cfg.Hosts)),
	}

	sum := summary.New(r.Accuracy)
	sum.Register(cfg.Hosts...)
	obs := Observers{sum}
	if r.Observer != nil {
		obs = append(obs, r.Observer)
	}

	thresholds := r.Thresholds
	if thresholds == (backpressure.Thresholds{}) {
		thresholds = backpressure.DefaultThresholds()
	}
	monitor := backpressure.New(thresholds, log.With("component", "backpressure"))

	log.Info("run started",
		"hosts", len(cfg.Hosts),
		"count", cfg.Count,
		"interval", cfg.Interval,
		"channel_capacity", cfg.ChannelCapacity,
	)

	measurements := make(chan types.Measurement, cfg.ChannelCapacity)

	writer := &Writer{
		Store:        r.Store,
		Logger:       log.With("component", "writer"),
		Observer:     obs,
		Monitor:      monitor,
		FlushTimeout: cfg.FlushTimeout,
	}
	written := make(chan WriteResult, 1)
	go func() {
		written <- writer.Run(ctx, measurements)
	}()

	startErrs, abortErr := r.runWorkers(ctx, cfg, measurements, obs, log, report)

	// Every sender has returned.
	close(measurements)
	report.Write = <-written

	report.Finished = r.clock()
	report.Summaries = sum.Summaries()
	report.Backpressure = monitor.Stats()
	report.Cancelled = ctx.Err() != nil

	var errs []error
	for _, err := range startErrs {
		if err != nil {
			report.StartErrors = append(report.StartErrors, err)
		}
	}
	if abortErr != nil {
		errs = append(errs, fmt.Errorf("%w: %w", errors.ErrRunAborted, abortErr))
	}
	if report.Write.FlushErr != nil && cfg.FailOnFlushError {
		errs = append(errs, fmt.Errorf("%w: %w", errors.ErrFlushFailed, report.Write.FlushErr))
	}

	for _, s := range report.Summaries {
		log.Info("host summary", "host", s.Host, "result", s.String())
	}
	log.Info("run finished",
		"duration", report.Duration(),
		"received", report.Write.Received,
		"added", report.Write.Added,
		"add_errors", report.Write.AddErrors,
		"start_errors", len(report.StartErrors),
		"channel_full", report.Backpressure.FullCount,
		"cancelled", report.Cancelled,
	)

	return report, errors.Join(errs...)
}

// runWorkers runs one worker per host and returns their start errors, one
// slot per host, and the error that aborted the run. Each goroutine writes
// only its own slots.
func (r *Runner) runWorkers(ctx context.Context, cfg RunConfig, out chan<- types.Measurement, obs Observer, log *slog.Logger, report *Report) ([]error, error) {
	startErrs := make([]error, len(cfg.Hosts))

	g, gctx := errgroup.WithContext(ctx)

	var sem *semaphore.Weighted
	if cfg.MaxParallel > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}

	for i, host := range cfg.Hosts {
		g.Go(func() error {
			report.Workers[i].Host = host

			if sem != nil {
				if err := sem.Acquire(gctx, 1); err != nil {
					report.Workers[i].Cancelled = true
					return nil
				}
				defer sem.Release(1)
			}

			w := &Worker{
				Host:     host,
				Count:    cfg.Count,
				Interval: cfg.Interval,
				Prober:   r.Prober,
				Logger:   log.With("component", "worker"),
				Observer: obs,
				now:      r.now,
			}
			res, err := w.Run(gctx, out)
			report.Workers[i] = res
			if err == nil {
				return nil
			}
			if gctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				// Never started because the run was already over.
				report.Workers[i].Cancelled = true
				return nil
			}

			startErrs[i] = err
			if cfg.OnStartError == constants.PolicyAbort {
				log.Error("probe failed to start, aborting run", "host", host, "error", err)
				return err
			}
			log.Warn("probe failed to start, skipping host", "host", host, "error", err)
			return nil
		})
	}

	return startErrs, g.Wait()
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}
