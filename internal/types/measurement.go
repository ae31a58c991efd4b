package types

import (
	"time"

	"github.com/xtxerr/pingd/internal/errors"
)

// Measurement is one latency sample.
type Measurement struct {
	// Host is the probed target.
	Host string

	// Time is the receipt time of the probe reply. Within one host it never
	// goes backwards.
	Time time.Time

	// Duration is the observed round-trip time.
	Duration time.Duration
}

// NewMeasurement builds a Measurement for host.
func NewMeasurement(host string, at time.Time, rtt time.Duration) Measurement {
	return Measurement{Host: host, Time: at, Duration: rtt}
}

// Validate reports whether m can be stored.
func (m Measurement) Validate() error {
	if m.Host == "" {
		return errors.ErrEmptyHost
	}
	if m.Duration < 0 {
		return errors.Wrapf(errors.ErrNegativeDuration, "host %s", m.Host)
	}
	return nil
}

// Millis returns the round-trip time in whole milliseconds, the unit of the
// stored duration field. Sub-millisecond remainders are truncated.
func (m Measurement) Millis() int64 {
	return m.Duration.Milliseconds()
}

// UnixNano returns the timestamp in nanoseconds since the epoch.
func (m Measurement) UnixNano() int64 {
	return m.Time.UnixNano()
}
