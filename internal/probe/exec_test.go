package probe

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/testutil"
)

func shellProber(script string) *ExecProber {
	return &ExecProber{
		Command: "sh",
		Args: func(host string, interval time.Duration) []string {
			return []string{"-c", script}
		},
	}
}

func collect(t *testing.T, s Stream) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not end")
		}
	}
}

func TestExecProberEvents(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	p := shellProber(`
echo 'PING 10.0.0.1 (10.0.0.1) 56(84) bytes of data.'
echo '64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=10 ms'
echo 'no answer yet for icmp_seq=2'
echo 'garbage'
echo 'ping: sendmsg: Network is unreachable' >&2
exit 2
`)
	s, err := p.Start(context.Background(), "10.0.0.1", 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	events := collect(t, s)
	wantKinds := []Kind{Success, Timeout, Unrecognized, Exited}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events (%v), want %d", len(events), events, len(wantKinds))
	}
	for i, k := range wantKinds {
		if events[i].Kind != k {
			t.Errorf("event %d kind = %v, want %v", i, events[i].Kind, k)
		}
	}
	if events[0].RTT != 10*time.Millisecond {
		t.Errorf("rtt = %v, want 10ms", events[0].RTT)
	}

	exited := events[3]
	if exited.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", exited.ExitCode)
	}
	if exited.Stderr != "ping: sendmsg: Network is unreachable" {
		t.Errorf("stderr = %q", exited.Stderr)
	}
}

func TestExecProberCloseKillsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	p := shellProber(`echo '64 bytes from h: icmp_seq=1 time=1.5 ms'; exec sleep 60`)
	s, err := p.Start(context.Background(), "h", time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case ev := <-s.Events():
		if ev.Kind != Success {
			t.Fatalf("first event = %v, want success", ev)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no event")
	}

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return")
	}

	// Safe to call again.
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if _, ok := <-s.Events(); ok {
		t.Error("events channel still open after Close")
	}
}

func TestExecProberCloseWithForkedChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	// The background sleep inherits stdout and outlives the shell unless
	// the whole process group is killed.
	p := shellProber(`sleep 20 & echo '64 bytes from h: icmp_seq=1 time=1.0 ms'; exec sleep 20`)
	s, err := p.Start(context.Background(), "h", time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case ev := <-s.Events():
		if ev.Kind != Success {
			t.Fatalf("first event = %v, want success", ev)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no event")
	}

	if err := testutil.WithTimeout(5*time.Second, s.Close); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-s.Events(); ok {
		t.Error("events channel still open after Close")
	}
}

func TestExecProberCloseAfterExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	s, err := shellProber(`exit 0`).Start(context.Background(), "h", time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := collect(t, s)
	if len(events) != 1 || events[0].Kind != Exited || events[0].ExitCode != 0 {
		t.Fatalf("events = %v, want one clean exit", events)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close after exit: %v", err)
	}
}

func TestExecProberMissingExecutable(t *testing.T) {
	p := &ExecProber{Command: "pingd-no-such-binary"}
	_, err := p.Start(context.Background(), "1.1.1.1", time.Second)
	if err == nil {
		t.Fatal("expected start error")
	}
	if !errors.IsProbeStart(err) {
		t.Errorf("IsProbeStart(%v) = false", err)
	}
	var pse *errors.ProbeStartError
	if !errors.As(err, &pse) || pse.Host != "1.1.1.1" {
		t.Errorf("error %v does not carry the host", err)
	}
}

func TestExecProberCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := shellProber("exit 0").Start(ctx, "h", time.Second)
	if !errors.IsProbeStart(err) {
		t.Fatalf("Start with cancelled context = %v, want probe start error", err)
	}
}
