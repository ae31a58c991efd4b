// Package summary keeps per-host latency statistics for the report printed
// at the end of a run.
//
// Percentiles come from a DDSketch, so memory stays constant however many
// measurements a host produces.
package summary

import (
	"math"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/pingd/config"
	"github.com/xtxerr/pingd/internal/probe"
	"github.com/xtxerr/pingd/internal/types"
)

// hostAggregate maintains running statistics for one host.
type hostAggregate struct {
	s types.HostSummary

	sum    float64 // milliseconds
	min    float64
	max    float64
	sketch *ddsketch.DDSketch
}

func newHostAggregate(host string, accuracy float64) *hostAggregate {
	agg := &hostAggregate{
		s:   types.HostSummary{Host: host},
		min: math.MaxFloat64,
		max: -math.MaxFloat64,
	}
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err == nil {
		agg.sketch = sketch
	}
	return agg
}

func (a *hostAggregate) add(m types.Measurement) {
	ms := float64(m.Duration) / float64(time.Millisecond)

	a.s.Count++
	a.sum += ms
	if ms < a.min {
		a.min = ms
	}
	if ms > a.max {
		a.max = ms
	}
	if a.s.First.IsZero() || m.Time.Before(a.s.First) {
		a.s.First = m.Time
	}
	if m.Time.After(a.s.Last) {
		a.s.Last = m.Time
	}
	if a.sketch != nil {
		_ = a.sketch.Add(ms)
	}
}

func (a *hostAggregate) result() types.HostSummary {
	out := a.s
	if out.Count == 0 {
		return out
	}

	out.Min = millis(a.min)
	out.Max = millis(a.max)
	out.Avg = millis(a.sum / float64(out.Count))

	if a.sketch != nil {
		p50, _ := a.sketch.GetValueAtQuantile(0.50)
		p90, _ := a.sketch.GetValueAtQuantile(0.90)
		p99, _ := a.sketch.GetValueAtQuantile(0.99)
		out.P50 = millis(p50)
		out.P90 = millis(p90)
		out.P99 = millis(p99)
	}
	return out
}

func millis(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}

// Collector aggregates probe events and received measurements per host.
// It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	accuracy float64
	hosts    map[string]*hostAggregate
	order    []string
}

// New creates a Collector with the given percentile accuracy. A value
// outside (0, 1) selects the default.
func New(accuracy float64) *Collector {
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = config.DefaultPercentileAccuracy
	}
	return &Collector{
		accuracy: accuracy,
		hosts:    make(map[string]*hostAggregate),
	}
}

// Register fixes the report order. Hosts seen without registration are
// appended in order of first appearance.
func (c *Collector) Register(hosts ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range hosts {
		c.host(h)
	}
}

func (c *Collector) host(name string) *hostAggregate {
	agg, ok := c.hosts[name]
	if !ok {
		agg = newHostAggregate(name, c.accuracy)
		c.hosts[name] = agg
		c.order = append(c.order, name)
	}
	return agg
}

// ProbeStarted implements collector.Observer.
func (c *Collector) ProbeStarted(host string) {
	c.Register(host)
}

// ProbeStartFailed implements collector.Observer.
func (c *Collector) ProbeStartFailed(host string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host(host).s.StartErr = err
}

// ProbeEvent implements collector.Observer.
func (c *Collector) ProbeEvent(host string, ev probe.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.host(host).s
	switch ev.Kind {
	case probe.Success:
		s.Successes++
	case probe.Timeout:
		s.Timeouts++
	case probe.Unrecognized:
		s.Unrecognized++
	case probe.Exited:
		s.Exited = true
		s.ExitCode = ev.ExitCode
	}
}

// MeasurementDropped implements collector.Observer.
func (c *Collector) MeasurementDropped(m types.Measurement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host(m.Host).s.Dropped++
}

// MeasurementReceived implements collector.Observer.
func (c *Collector) MeasurementReceived(m types.Measurement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host(m.Host).add(m)
}

// StoreAddFailed implements collector.Observer.
func (c *Collector) StoreAddFailed(types.Measurement, error) {}

// StoreFlushed implements collector.Observer.
func (c *Collector) StoreFlushed(time.Duration, error) {}

// Summaries returns one summary per host in report order.
func (c *Collector) Summaries() []types.HostSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.HostSummary, 0, len(c.order))
	for _, h := range c.order {
		out = append(out, c.hosts[h].result())
	}
	return out
}

// Host returns the summary of one host.
func (c *Collector) Host(name string) (types.HostSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agg, ok := c.hosts[name]
	if !ok {
		return types.HostSummary{}, false
	}
	return agg.result(), true
}
