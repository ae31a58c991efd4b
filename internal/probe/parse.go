package probe

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// rttPattern matches the round-trip time of a reply line on Linux, BSD,
// macOS ("time=10.2 ms") and Windows ("time=10ms", "time<1ms").
var rttPattern = regexp.MustCompile(`time[=<]([\d.]+)\s*ms`)

// Lines reporting a lost probe.
var timeoutMarkers = []string{
	"no answer yet for icmp_seq",  // iputils with -O
	"Request timeout for icmp_seq", // BSD, macOS
	"Request timed out.",           // Windows
}

// Lines that carry no per-probe result: banners, blank lines and the
// statistics block printed when ping terminates.
var ignoredPrefixes = []string{
	"PING ",
	"Pinging ",
	"--- ",
	"rtt min/avg/max",
	"round-trip min/avg/max",
	"Ping statistics for",
	"Packets: Sent",
	"Approximate round trip",
	"Minimum = ",
}

// ParseLine classifies one line of ping output. The second result is false
// for lines that are not probe results and must not be counted.
func ParseLine(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}
	for _, p := range ignoredPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return Event{}, false
		}
	}
	if strings.Contains(trimmed, "packets transmitted") {
		return Event{}, false
	}

	for _, m := range timeoutMarkers {
		if strings.Contains(trimmed, m) {
			return Event{Kind: Timeout, Line: trimmed}, true
		}
	}

	if match := rttPattern.FindStringSubmatch(trimmed); match != nil {
		ms, err := strconv.ParseFloat(match[1], 64)
		if err == nil && ms >= 0 {
			return Event{
				Kind: Success,
				RTT:  time.Duration(math.Round(ms * float64(time.Millisecond))),
				Line: trimmed,
			}, true
		}
	}

	return Event{Kind: Unrecognized, Line: trimmed}, true
}
