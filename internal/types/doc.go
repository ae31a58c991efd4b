// Package types defines the data that flows through the pingd pipeline.
//
// Measurement is the unit handed from a probe worker to the writer. It is a
// value type: workers construct it once and pass it by value through the
// aggregator channel, so no component can mutate a sample after it was sent.
//
// HostSummary is the per-host report produced at the end of a run.
package types
