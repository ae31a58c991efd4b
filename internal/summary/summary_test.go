package summary

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/pingd/internal/probe"
	"github.com/xtxerr/pingd/internal/types"
)

var t0 = time.Unix(1700000000, 0)

func within(got, want time.Duration, rel float64) bool {
	diff := float64(got - want)
	if diff < 0 {
		diff = -diff
	}
	return diff <= rel*float64(want)
}

func TestCollector_Basic(t *testing.T) {
	c := New(0.01)
	c.Register("a", "b")

	for i, ms := range []int{10, 12, 11} {
		c.ProbeEvent("a", probe.Event{Kind: probe.Success})
		c.MeasurementReceived(types.NewMeasurement("a", t0.Add(time.Duration(i)*time.Second), time.Duration(ms)*time.Millisecond))
	}
	c.ProbeEvent("a", probe.Event{Kind: probe.Timeout})

	got, ok := c.Host("a")
	if !ok {
		t.Fatal("host a missing")
	}
	if got.Count != 3 || got.Successes != 3 || got.Timeouts != 1 {
		t.Errorf("counts = %+v", got)
	}
	if got.Min != 10*time.Millisecond || got.Max != 12*time.Millisecond || got.Avg != 11*time.Millisecond {
		t.Errorf("min/avg/max = %v/%v/%v", got.Min, got.Avg, got.Max)
	}
	if !within(got.P50, 11*time.Millisecond, 0.02) {
		t.Errorf("p50 = %v, want ~11ms", got.P50)
	}
	// The sketch ranks at q*(n-1), so p99 of three samples is the second.
	if !within(got.P99, 11*time.Millisecond, 0.02) {
		t.Errorf("p99 = %v, want ~11ms", got.P99)
	}
	if !got.First.Equal(t0) || !got.Last.Equal(t0.Add(2*time.Second)) {
		t.Errorf("first/last = %v/%v", got.First, got.Last)
	}

	summaries := c.Summaries()
	if len(summaries) != 2 || summaries[0].Host != "a" || summaries[1].Host != "b" {
		t.Fatalf("Summaries order = %+v", summaries)
	}
	if summaries[1].Count != 0 || summaries[1].Min != 0 {
		t.Errorf("empty host summary = %+v", summaries[1])
	}
}

func TestCollector_Anomalies(t *testing.T) {
	c := New(0)
	startErr := errors.New("executable not found")

	c.ProbeStartFailed("down", startErr)
	c.ProbeStarted("flaky")
	c.ProbeEvent("flaky", probe.Event{Kind: probe.Unrecognized, Line: "garbage"})
	c.ProbeEvent("flaky", probe.Event{Kind: probe.Exited, ExitCode: 2})
	c.MeasurementDropped(types.NewMeasurement("flaky", t0, time.Millisecond))

	down, _ := c.Host("down")
	if down.StartErr != startErr {
		t.Errorf("StartErr = %v", down.StartErr)
	}

	flaky, _ := c.Host("flaky")
	if flaky.Unrecognized != 1 || !flaky.Exited || flaky.ExitCode != 2 || flaky.Dropped != 1 {
		t.Errorf("flaky = %+v", flaky)
	}

	if _, ok := c.Host("unknown"); ok {
		t.Error("Host(unknown) should report false")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New(0.01)
	hosts := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, h := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.ProbeEvent(host, probe.Event{Kind: probe.Success})
				c.MeasurementReceived(types.NewMeasurement(host, t0, time.Duration(i+1)*time.Millisecond))
			}
		}(h)
	}
	wg.Wait()

	for _, s := range c.Summaries() {
		if s.Count != 100 || s.Successes != 100 {
			t.Errorf("%s: count=%d successes=%d, want 100", s.Host, s.Count, s.Successes)
		}
		if !within(s.P90, 90*time.Millisecond, 0.03) {
			t.Errorf("%s: p90 = %v, want ~90ms", s.Host, s.P90)
		}
		if !within(s.P99, 99*time.Millisecond, 0.03) {
			t.Errorf("%s: p99 = %v, want ~99ms", s.Host, s.P99)
		}
	}
}
