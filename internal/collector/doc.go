// Package collector runs one collection: a Worker per host probes its
// target and sends measurements over a bounded channel to a single Writer,
// which adds them to the Store and flushes it once at the end.
//
// Data flow:
//
//	Worker(host 1) ─┐
//	Worker(host 2) ─┼─> chan Measurement (bounded) ─> Writer ─> Store
//	Worker(host n) ─┘
//
// A full channel blocks the workers. Measurements are never dropped unless
// the run is cancelled while a worker waits to send, and such drops are
// logged. The driver closes the channel after every worker has returned and
// then waits for the writer to drain and flush.
package collector
