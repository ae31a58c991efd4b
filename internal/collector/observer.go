package collector

import (
	"time"

	"github.com/xtxerr/pingd/internal/probe"
	"github.com/xtxerr/pingd/internal/types"
)

// Observer receives pipeline events for statistics. Workers call it from
// their own goroutines, so implementations must be safe for concurrent use.
// Calls must not block.
type Observer interface {
	ProbeStarted(host string)
	ProbeStartFailed(host string, err error)
	ProbeEvent(host string, ev probe.Event)
	MeasurementDropped(m types.Measurement)

	// Called by the writer.
	MeasurementReceived(m types.Measurement)
	StoreAddFailed(m types.Measurement, err error)
	StoreFlushed(d time.Duration, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ProbeStarted(string)                     {}
func (NopObserver) ProbeStartFailed(string, error)          {}
func (NopObserver) ProbeEvent(string, probe.Event)          {}
func (NopObserver) MeasurementDropped(types.Measurement)    {}
func (NopObserver) MeasurementReceived(types.Measurement)   {}
func (NopObserver) StoreAddFailed(types.Measurement, error) {}
func (NopObserver) StoreFlushed(time.Duration, error)       {}

// Observers fans every event out to several observers in order.
type Observers []Observer

func (o Observers) ProbeStarted(host string) {
	for _, obs := range o {
		obs.ProbeStarted(host)
	}
}

func (o Observers) ProbeStartFailed(host string, err error) {
	for _, obs := range o {
		obs.ProbeStartFailed(host, err)
	}
}

func (o Observers) ProbeEvent(host string, ev probe.Event) {
	for _, obs := range o {
		obs.ProbeEvent(host, ev)
	}
}

func (o Observers) MeasurementDropped(m types.Measurement) {
	for _, obs := range o {
		obs.MeasurementDropped(m)
	}
}

func (o Observers) MeasurementReceived(m types.Measurement) {
	for _, obs := range o {
		obs.MeasurementReceived(m)
	}
}

func (o Observers) StoreAddFailed(m types.Measurement, err error) {
	for _, obs := range o {
		obs.StoreAddFailed(m, err)
	}
}

func (o Observers) StoreFlushed(d time.Duration, err error) {
	for _, obs := range o {
		obs.StoreFlushed(d, err)
	}
}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}
