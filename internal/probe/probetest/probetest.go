// Package probetest provides a scripted Prober for tests.
package probetest

import (
	"context"
	"sync"
	"time"

	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/probe"
)

// Script is a Prober that replays fixed events per host.
type Script struct {
	// Events lists the events each host's stream yields, in order.
	Events map[string][]probe.Event

	// StartErr makes Start fail for a host.
	StartErr map[string]error

	// Hold keeps a stream open after its scripted events until it is
	// closed, like a ping process that keeps running.
	Hold bool

	mu        sync.Mutex
	started   []string
	closed    map[string]int
	active    int
	maxActive int
}

// Successes builds Success events with the given round-trip times in
// milliseconds.
func Successes(ms ...int) []probe.Event {
	events := make([]probe.Event, 0, len(ms))
	for _, v := range ms {
		events = append(events, probe.Event{Kind: probe.Success, RTT: time.Duration(v) * time.Millisecond})
	}
	return events
}

// Start implements probe.Prober.
func (s *Script) Start(ctx context.Context, host string, interval time.Duration) (probe.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.StartErr[host]; err != nil {
		return nil, errors.NewProbeStartError(host, err)
	}

	s.started = append(s.started, host)
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}

	st := &stream{
		script: s,
		host:   host,
		events: make(chan probe.Event),
		done:   make(chan struct{}),
	}
	go st.play(s.Events[host], s.Hold)
	return st, nil
}

// Started returns the hosts whose streams were started, in start order.
func (s *Script) Started() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

// Closed returns how often the stream of host was closed.
func (s *Script) Closed(host string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed[host]
}

// MaxActive returns the largest number of streams open at the same time.
func (s *Script) MaxActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

func (s *Script) release(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed == nil {
		s.closed = make(map[string]int)
	}
	s.closed[host]++
	s.active--
}

type stream struct {
	script *Script
	host   string
	events chan probe.Event
	done   chan struct{}
	once   sync.Once
}

func (st *stream) play(events []probe.Event, hold bool) {
	defer close(st.events)
	for _, ev := range events {
		select {
		case st.events <- ev:
		case <-st.done:
			return
		}
	}
	if hold {
		<-st.done
	}
}

func (st *stream) Events() <-chan probe.Event {
	return st.events
}

func (st *stream) Close() error {
	st.once.Do(func() {
		close(st.done)
		st.script.release(st.host)
	})
	return nil
}
