package probe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/xtxerr/pingd/internal/errors"
)

// maxStderr bounds the error output kept for an Exited event.
const maxStderr = 4096

// waitDelay bounds how long Wait keeps copying stderr after the process
// exited, in case a forked helper still holds the pipe.
const waitDelay = 2 * time.Second

// ExecProber runs the system ping binary once per host.
type ExecProber struct {
	// Command is the ping executable, looked up in PATH.
	Command string

	// Args builds the argument list. Nil selects PingArgs for the running
	// operating system.
	Args func(host string, interval time.Duration) []string
}

// PingArgs returns the ping arguments for goos that probe host forever at
// the given interval and report lost packets on their own line.
func PingArgs(goos, host string, interval time.Duration) []string {
	secs := strconv.FormatFloat(interval.Seconds(), 'f', -1, 64)
	switch goos {
	case "linux":
		return []string{"-O", "-i", secs, host}
	case "windows":
		// Windows ping has no interval flag; it probes once per second.
		return []string{"-t", host}
	default:
		return []string{"-i", secs, host}
	}
}

// Start launches the ping process for host.
func (p *ExecProber) Start(ctx context.Context, host string, interval time.Duration) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewProbeStartError(host, err)
	}

	path, err := exec.LookPath(p.Command)
	if err != nil {
		return nil, errors.NewProbeStartError(host, err)
	}

	var args []string
	if p.Args != nil {
		args = p.Args(host, interval)
	} else {
		args = PingArgs(runtime.GOOS, host, interval)
	}

	cmd := exec.Command(path, args...)
	cmd.WaitDelay = waitDelay
	startOwnGroup(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.NewProbeStartError(host, err)
	}
	stderr := &cappedBuffer{max: maxStderr}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.NewProbeStartError(host, err)
	}

	s := &execStream{
		cmd:      cmd,
		stdout:   stdout,
		stderr:   stderr,
		events:   make(chan Event),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go s.read(stdout)
	return s, nil
}

type execStream struct {
	cmd    *exec.Cmd
	stdout io.Closer
	stderr *cappedBuffer

	events   chan Event
	done     chan struct{} // closed by Close
	finished chan struct{} // closed once the process was reaped

	closeOnce sync.Once
}

func (s *execStream) Events() <-chan Event {
	return s.events
}

// read forwards classified lines until stdout ends, then reaps the process
// and reports how it exited.
func (s *execStream) read(stdout io.Reader) {
	defer close(s.finished)
	defer close(s.events)

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		ev, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if !s.send(ev) {
			// Closed by the owner; the process is killed by Close.
			_ = s.cmd.Wait()
			return
		}
	}

	err := s.cmd.Wait()
	if scanErr := scanner.Err(); scanErr != nil && err == nil {
		err = scanErr
	}

	ev := Event{Kind: Exited, ExitCode: s.cmd.ProcessState.ExitCode(), Stderr: s.stderr.String()}
	if ev.Stderr == "" && err != nil {
		ev.Stderr = err.Error()
	}
	s.send(ev)
}

func (s *execStream) send(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Close kills the ping process group and waits until the process was
// reaped. Closing stdout unblocks the reader when a forked child still
// holds the pipe open.
func (s *execStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if killErr := killGroup(s.cmd.Process); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			err = fmt.Errorf("kill ping: %w", killErr)
		}
		_ = s.stdout.Close()
		<-s.finished
	})
	return err
}

// cappedBuffer keeps the first max bytes written to it. exec copies stderr
// from its own goroutine, so access is synchronized.
type cappedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf.Bytes()))
}
