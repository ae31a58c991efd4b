// Package probe turns ping output into a stream of typed events.
//
// A Prober starts one stream per host. The stream yields an Event for every
// probe result and ends after an Exited event or when it is closed. Two
// backends exist: ExecProber runs the system ping binary and parses its
// output line by line, ICMPProber sends echo requests from within the
// process.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/xtxerr/pingd/config"
	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/errors"
)

// Kind identifies the variant of an Event.
type Kind int

const (
	// Success carries the round-trip time of one reply.
	Success Kind = iota
	// Timeout reports a probe that got no reply.
	Timeout
	// Unrecognized reports an output line that could not be classified.
	Unrecognized
	// Exited reports the end of the probe process. No events follow it.
	Exited
)

// String returns a human-readable representation of the Kind.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case Unrecognized:
		return "unrecognized"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// Event is one result of a probe stream.
type Event struct {
	Kind Kind

	// RTT is set for Success events.
	RTT time.Duration

	// Line is the raw output line, if the backend has one.
	Line string

	// ExitCode and Stderr are set for Exited events.
	ExitCode int
	Stderr   string
}

// Stream is a running probe for one host.
type Stream interface {
	// Events returns the event channel. It is closed after the Exited event
	// or after Close.
	Events() <-chan Event

	// Close stops the probe and releases its process or socket. It is safe
	// to call more than once and after the stream ended by itself.
	Close() error
}

// Prober starts probe streams.
type Prober interface {
	// Start begins probing host every interval. A failure to launch the
	// probe is returned as *errors.ProbeStartError.
	Start(ctx context.Context, host string, interval time.Duration) (Stream, error)
}

// Options selects and configures a Prober.
type Options struct {
	Backend    string
	Command    string
	Privileged bool
	Timeout    time.Duration
}

// New returns the Prober selected by opts.Backend.
func New(opts Options) (Prober, error) {
	switch opts.Backend {
	case "", constants.ProbeExec:
		command := opts.Command
		if command == "" {
			command = config.DefaultProbeCommand
		}
		return &ExecProber{Command: command}, nil
	case constants.ProbeICMP:
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = config.DefaultICMPTimeout
		}
		return &ICMPProber{Privileged: opts.Privileged, Timeout: timeout}, nil
	default:
		return nil, errors.NewUnknownBackend("probe backend", opts.Backend)
	}
}

func (e Event) String() string {
	switch e.Kind {
	case Success:
		return fmt.Sprintf("success rtt=%v", e.RTT)
	case Exited:
		return fmt.Sprintf("exited code=%d", e.ExitCode)
	default:
		return fmt.Sprintf("%s %q", e.Kind, e.Line)
	}
}
