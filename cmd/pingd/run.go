package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/xtxerr/pingd/internal/collector"
	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/loader"
	"github.com/xtxerr/pingd/internal/logging"
	"github.com/xtxerr/pingd/internal/metrics"
	"github.com/xtxerr/pingd/internal/probe"
	"github.com/xtxerr/pingd/internal/store"
)

func newRunCmd(cfgPath *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Probe the configured targets and store the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCollector(ctx, *cfgPath, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single collection and exit, ignoring collect.schedule")
	return cmd
}

// runCollector wires the configured backends and runs one collection, or
// one per schedule tick until ctx is cancelled.
func runCollector(ctx context.Context, cfgPath string, once bool) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	closeLog, err := logging.Init(loader.ToLogOptions(cfg))
	if err != nil {
		return err
	}
	defer closeLog()

	log := logging.Component("pingd")
	log.Info("pingd starting", "version", Version, "config", cfgPath, "targets", len(cfg.Targets()))

	st, err := store.OpenAll(loader.ToStoreConfigs(cfg), logging.Component("store"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(st); err != nil {
			log.Warn("failed to close store", "error", err)
		}
	}()

	prober, err := probe.New(loader.ToProbeOptions(cfg))
	if err != nil {
		return err
	}

	runner := &collector.Runner{
		Prober:   prober,
		Store:    st,
		Logger:   logging.Component("collector"),
		Accuracy: cfg.Summary.Accuracy,
	}

	var m *metrics.Metrics
	if cfg.Metrics.Textfile != "" {
		m = metrics.New()
		runner.Observer = m
	}

	runCfg := loader.ToRunConfig(cfg)
	collect := func(ctx context.Context) error {
		report, err := runner.Run(ctx, runCfg)
		if m != nil {
			var d time.Duration
			if report != nil {
				d = report.Duration()
			}
			m.RunFinished(d, err)
			if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
				log.Warn("failed to write metrics", "error", werr)
			}
		}
		return err
	}

	if once || cfg.Collect.Schedule == "" {
		return collect(ctx)
	}
	return schedule(ctx, cfg.Collect.Schedule, collect, log)
}

// schedule runs collect on every tick of spec until ctx is cancelled. A run
// that is still in progress when the next tick fires makes that tick skip.
func schedule(ctx context.Context, spec string, collect func(context.Context) error, log *slog.Logger) error {
	clog := cronLogger{log: log.With("component", "cron")}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	_, err := c.AddFunc(spec, func() {
		if err := collect(ctx); err != nil {
			log.Error("collection run failed", "error", err)
		}
	})
	if err != nil {
		return errors.NewInvalidValue("collect.schedule", spec, err.Error())
	}

	c.Start()
	log.Info("scheduler started", "schedule", spec)

	<-ctx.Done()
	log.Info("shutting down, waiting for the running collection")
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts slog to cron.Logger. Cron's informational messages are
// chatty, so they go to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
