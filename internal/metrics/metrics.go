// Package metrics exposes run statistics in the Prometheus text format.
//
// pingd is a batch collector, so there is no scrape endpoint. Metrics are
// written to a node_exporter textfile at the end of every run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/probe"
	"github.com/xtxerr/pingd/internal/types"
)

const namespace = "pingd"

// Metrics holds the collectors of one process. Counters accumulate across
// scheduled runs.
type Metrics struct {
	registry *prometheus.Registry

	probeEvents   *prometheus.CounterVec
	startFailures *prometheus.CounterVec
	measurements  *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	rtt           *prometheus.HistogramVec
	addErrors     prometheus.Counter
	flushes       *prometheus.CounterVec
	flushDuration prometheus.Gauge
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
	runs          *prometheus.CounterVec
}

// New creates Metrics with a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_events_total",
			Help:      "Probe events by target and kind.",
		}, []string{"target", "kind"}),
		startFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_start_failures_total",
			Help:      "Probes that could not be started.",
		}, []string{"target"}),
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_total",
			Help:      "Measurements received by the writer.",
		}, []string{"target"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_dropped_total",
			Help:      "Measurements abandoned because the run was cancelled.",
		}, []string{"target"}),
		rtt: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rtt_seconds",
			Help:      "Round-trip time of successful probes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"target"}),
		addErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_add_errors_total",
			Help:      "Measurements the store refused to buffer.",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_flushes_total",
			Help:      "Final store flushes by result.",
		}, []string{"result"}),
		flushDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_flush_duration_seconds",
			Help:      "Duration of the last store flush.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last collection run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last collection run finished.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Collection runs by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.probeEvents,
		m.startFailures,
		m.measurements,
		m.dropped,
		m.rtt,
		m.addErrors,
		m.flushes,
		m.flushDuration,
		m.runDuration,
		m.lastRun,
		m.runs,
	)
	return m
}

// Registry returns the registry holding all pingd collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ProbeStarted implements collector.Observer.
func (m *Metrics) ProbeStarted(string) {}

// ProbeStartFailed implements collector.Observer.
func (m *Metrics) ProbeStartFailed(host string, _ error) {
	m.startFailures.WithLabelValues(host).Inc()
}

// ProbeEvent implements collector.Observer.
func (m *Metrics) ProbeEvent(host string, ev probe.Event) {
	m.probeEvents.WithLabelValues(host, ev.Kind.String()).Inc()
}

// MeasurementDropped implements collector.Observer.
func (m *Metrics) MeasurementDropped(meas types.Measurement) {
	m.dropped.WithLabelValues(meas.Host).Inc()
}

// MeasurementReceived implements collector.Observer.
func (m *Metrics) MeasurementReceived(meas types.Measurement) {
	m.measurements.WithLabelValues(meas.Host).Inc()
	m.rtt.WithLabelValues(meas.Host).Observe(meas.Duration.Seconds())
}

// StoreAddFailed implements collector.Observer.
func (m *Metrics) StoreAddFailed(types.Measurement, error) {
	m.addErrors.Inc()
}

// StoreFlushed implements collector.Observer.
func (m *Metrics) StoreFlushed(d time.Duration, err error) {
	m.flushDuration.Set(d.Seconds())
	m.flushes.WithLabelValues(result(err)).Inc()
}

// RunFinished records the outcome of one collection run.
func (m *Metrics) RunFinished(d time.Duration, err error) {
	m.runDuration.Set(d.Seconds())
	m.lastRun.SetToCurrentTime()
	m.runs.WithLabelValues(result(err)).Inc()
}

// WriteTextfile writes all metrics to path for the node_exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
