package types

import (
	"fmt"
	"time"
)

// HostSummary describes what one host contributed to a run.
type HostSummary struct {
	Host string

	// Probe events observed by the worker.
	Successes    int
	Timeouts     int
	Unrecognized int

	// Exited is set when the probe stream ended before the requested count.
	Exited   bool
	ExitCode int

	// StartErr is set when the probe could not be started at all.
	StartErr error

	// Dropped counts measurements abandoned because the run was cancelled
	// while the worker was blocked on a full channel.
	Dropped int

	// Latency statistics over the measurements the writer received.
	Count int
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration

	First time.Time
	Last  time.Time
}

// Observed returns the number of probe events counted toward ping_count.
func (s HostSummary) Observed() int {
	return s.Successes + s.Timeouts + s.Unrecognized
}

// LossRatio returns the share of counted events that produced no measurement.
func (s HostSummary) LossRatio() float64 {
	n := s.Observed()
	if n == 0 {
		return 0
	}
	return float64(n-s.Successes) / float64(n)
}

// String renders a one-line report.
func (s HostSummary) String() string {
	if s.StartErr != nil {
		return fmt.Sprintf("%s: not started: %v", s.Host, s.StartErr)
	}
	out := fmt.Sprintf("%s: %d/%d replies, loss %.0f%%", s.Host, s.Successes, s.Observed(), s.LossRatio()*100)
	if s.Count > 0 {
		out += fmt.Sprintf(", min/avg/max %v/%v/%v, p99 %v", s.Min, s.Avg, s.Max, s.P99)
	}
	if s.Exited {
		out += fmt.Sprintf(", probe exited (code %d)", s.ExitCode)
	}
	return out
}
