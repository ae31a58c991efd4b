// Package storetest provides an in-memory Store that records every call.
package storetest

import (
	"context"
	"sync"

	"github.com/xtxerr/pingd/internal/types"
)

// Call is one recorded store operation.
type Call struct {
	Op          string // "add" or "flush"
	Measurement types.Measurement
	Err         error
}

// Recorder is a Store that keeps what it was given.
//
// Added measurements are buffered like a real backend and move to Flushed
// on a successful Flush.
type Recorder struct {
	// AddErr, when set, decides the result of the n-th AddMeasurement call
	// (0-based). A failing add does not buffer the measurement.
	AddErr func(n int, m types.Measurement) error

	// FlushErr is returned by every Flush. The buffer is kept.
	FlushErr error

	mu      sync.Mutex
	calls   []Call
	adds    int
	buffer  []types.Measurement
	flushed []types.Measurement
	flushes int
	closed  bool
}

// AddMeasurement implements store.Store.
func (r *Recorder) AddMeasurement(ctx context.Context, m types.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.AddErr != nil {
		err = r.AddErr(r.adds, m)
	}
	r.adds++
	r.calls = append(r.calls, Call{Op: "add", Measurement: m, Err: err})
	if err != nil {
		return err
	}
	r.buffer = append(r.buffer, m)
	return nil
}

// Flush implements store.Store.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushes++
	r.calls = append(r.calls, Call{Op: "flush", Err: r.FlushErr})
	if r.FlushErr != nil {
		return r.FlushErr
	}
	r.flushed = append(r.flushed, r.buffer...)
	r.buffer = nil
	return nil
}

// Pending returns the number of buffered measurements.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Calls returns every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Flushed returns the measurements delivered by successful flushes.
func (r *Recorder) Flushed() []types.Measurement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Measurement(nil), r.flushed...)
}

// Buffered returns the measurements not yet flushed.
func (r *Recorder) Buffered() []types.Measurement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Measurement(nil), r.buffer...)
}

// Flushes returns how often Flush was called.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// ByHost groups the flushed measurements by host, preserving order.
func (r *Recorder) ByHost() map[string][]types.Measurement {
	out := make(map[string][]types.Measurement)
	for _, m := range r.Flushed() {
		out[m.Host] = append(out[m.Host], m)
	}
	return out
}
