package probe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/xtxerr/pingd/internal/errors"
)

// ICMPProber sends ICMP echo requests from within the process.
//
// Unprivileged mode uses datagram ICMP sockets, which on Linux requires the
// group to be listed in net.ipv4.ping_group_range. Privileged mode uses raw
// sockets and needs CAP_NET_RAW.
type ICMPProber struct {
	Privileged bool

	// Timeout is how long a request may stay unanswered before it is
	// reported as a Timeout event.
	Timeout time.Duration
}

// Start resolves host, opens the ICMP socket and begins sending echo
// requests. A socket that cannot be opened is reported as a start error.
func (p *ICMPProber) Start(ctx context.Context, host string, interval time.Duration) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewProbeStartError(host, err)
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		return nil, errors.NewProbeStartError(host, err)
	}
	pinger.Interval = interval
	pinger.Count = -1
	pinger.SetPrivileged(p.Privileged)

	s := &icmpStream{
		pinger:   pinger,
		pending:  newPendingTracker(p.Timeout, time.Now),
		events:   make(chan Event),
		done:     make(chan struct{}),
		runDone:  make(chan struct{}),
		finished: make(chan struct{}),
	}

	pinger.OnSend = func(pkt *probing.Packet) {
		s.pending.sent(pkt.Seq)
	}
	pinger.OnRecv = func(pkt *probing.Packet) {
		if !s.pending.received(pkt.Seq) {
			// Already reported as timed out.
			return
		}
		s.send(Event{
			Kind: Success,
			RTT:  pkt.Rtt,
			Line: fmt.Sprintf("reply from %s: icmp_seq=%d time=%.3f ms", pkt.Addr, pkt.Seq, float64(pkt.Rtt)/float64(time.Millisecond)),
		})
	}

	ready := make(chan struct{})
	pinger.OnSetup = func() { close(ready) }

	go s.run(sweepInterval(interval, p.Timeout))

	if err := awaitSetup(ctx, ready, s.runDone, s.runError); err != nil {
		_ = s.Close()
		return nil, errors.NewProbeStartError(host, err)
	}
	return s, nil
}

// awaitSetup waits until the pinger has opened its socket. A pinger that
// returns before that failed to start.
func awaitSetup(ctx context.Context, ready, runDone <-chan struct{}, runErr func() error) error {
	select {
	case <-ready:
		return nil
	case <-runDone:
		select {
		case <-ready:
			return nil
		default:
		}
		if err := runErr(); err != nil {
			return err
		}
		return fmt.Errorf("pinger stopped before opening a socket")
	case <-ctx.Done():
		return ctx.Err()
	}
}

type icmpStream struct {
	pinger  *probing.Pinger
	pending *pendingTracker

	events   chan Event
	done     chan struct{} // closed by Close
	runDone  chan struct{} // closed when pinger.Run returned
	runErr   error         // set before runDone is closed
	finished chan struct{}

	closeOnce sync.Once
}

func (s *icmpStream) Events() <-chan Event {
	return s.events
}

func (s *icmpStream) run(sweep time.Duration) {
	defer close(s.finished)
	defer close(s.events)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.sweep(sweep)
	}()

	err := s.pinger.Run()
	s.runErr = err
	close(s.runDone)
	wg.Wait()

	select {
	case <-s.done:
		return
	default:
	}

	ev := Event{Kind: Exited}
	if err != nil {
		ev.ExitCode = -1
		ev.Stderr = err.Error()
	}
	s.send(ev)
}

func (s *icmpStream) runError() error {
	return s.runErr
}

// sweep reports requests that outlived the timeout.
func (s *icmpStream) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.runDone:
			return
		case <-ticker.C:
			for _, seq := range s.pending.expire() {
				line := fmt.Sprintf("no answer for icmp_seq=%d", seq)
				if !s.send(Event{Kind: Timeout, Line: line}) {
					return
				}
			}
		}
	}
}

func (s *icmpStream) send(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Close stops the pinger and waits for its goroutines.
func (s *icmpStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.pinger.Stop()
		<-s.finished
	})
	return nil
}

func sweepInterval(interval, timeout time.Duration) time.Duration {
	every := timeout / 4
	if interval > 0 && interval < every {
		every = interval
	}
	if every < 10*time.Millisecond {
		every = 10 * time.Millisecond
	}
	return every
}

// =============================================================================
// Pending Requests
// =============================================================================

// pendingTracker remembers when each echo request was sent so that lost
// requests can be reported.
type pendingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	sentAt  map[int]time.Time
}

func newPendingTracker(timeout time.Duration, now func() time.Time) *pendingTracker {
	return &pendingTracker{
		timeout: timeout,
		now:     now,
		sentAt:  make(map[int]time.Time),
	}
}

func (t *pendingTracker) sent(seq int) {
	t.mu.Lock()
	t.sentAt[seq] = t.now()
	t.mu.Unlock()
}

// received reports whether seq was still pending.
func (t *pendingTracker) received(seq int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sentAt[seq]; !ok {
		return false
	}
	delete(t.sentAt, seq)
	return true
}

// expire removes and returns the requests older than the timeout, oldest
// first.
func (t *pendingTracker) expire() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var expired []int
	for seq, at := range t.sentAt {
		if now.Sub(at) >= t.timeout {
			expired = append(expired, seq)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return t.sentAt[expired[i]].Before(t.sentAt[expired[j]])
	})
	for _, seq := range expired {
		delete(t.sentAt, seq)
	}
	return expired
}

func (t *pendingTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sentAt)
}
