package backpressure

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelNormal, "normal"},
		{LevelWarning, "warning"},
		{LevelCritical, "critical"},
		{LevelFull, "full"},
		{Level(9), "unknown"},
	}

	for _, tt := range tests {
		if tt.level.String() != tt.expected {
			t.Errorf("level %d: expected %s, got %s", tt.level, tt.expected, tt.level.String())
		}
	}
}

func TestMonitor_Observe(t *testing.T) {
	m := New(DefaultThresholds(), nil)

	steps := []struct {
		length int
		want   Level
	}{
		{0, LevelNormal},
		{4, LevelNormal},
		{5, LevelWarning},  // 50%
		{4, LevelWarning},  // hysteresis keeps warning at 40%
		{8, LevelCritical}, // 80%
		{7, LevelCritical}, // 70% is not below 80%-10%
		{10, LevelFull},
		{9, LevelCritical},
		{6, LevelWarning},
		{3, LevelNormal},
	}

	for i, s := range steps {
		if got := m.Observe(s.length, 10); got != s.want {
			t.Fatalf("step %d: Observe(%d, 10) = %s, want %s", i, s.length, got, s.want)
		}
	}

	stats := m.Stats()
	if stats.Observations != int64(len(steps)) {
		t.Errorf("Observations = %d, want %d", stats.Observations, len(steps))
	}
	if stats.FullCount != 1 {
		t.Errorf("FullCount = %d, want 1", stats.FullCount)
	}
	if stats.PeakLen != 10 || stats.Capacity != 10 {
		t.Errorf("PeakLen/Capacity = %d/%d, want 10/10", stats.PeakLen, stats.Capacity)
	}
	if stats.LevelChanges != 6 {
		t.Errorf("LevelChanges = %d, want 6", stats.LevelChanges)
	}
}

type observeStep struct {
	length int
	want   Level
}

func TestMonitor_HysteresisBoundary(t *testing.T) {
	tests := []struct {
		capacity int
		steps    []observeStep
	}{
		{100, []observeStep{
			{80, LevelCritical},
			{70, LevelCritical}, // exactly critical minus hysteresis
			{69, LevelWarning},
			{40, LevelWarning},
			{39, LevelNormal},
		}},
		{33, []observeStep{
			{27, LevelCritical},
			{23, LevelCritical},
			{22, LevelWarning},
			{13, LevelWarning},
			{12, LevelNormal},
		}},
	}

	for _, tt := range tests {
		m := New(DefaultThresholds(), nil)
		for i, s := range tt.steps {
			if got := m.Observe(s.length, tt.capacity); got != s.want {
				t.Fatalf("cap %d step %d: Observe(%d) = %s, want %s", tt.capacity, i, s.length, got, s.want)
			}
		}
	}
}

func TestMonitor_CapacityOne(t *testing.T) {
	m := New(DefaultThresholds(), nil)

	if got := m.Observe(1, 1); got != LevelFull {
		t.Errorf("Observe(1, 1) = %s, want full", got)
	}
	if got := m.Observe(0, 1); got != LevelNormal {
		t.Errorf("Observe(0, 1) = %s, want normal", got)
	}
	if got := m.Observe(0, 0); got != LevelNormal {
		t.Errorf("unbuffered channel should stay normal, got %s", got)
	}
}

func TestMonitor_Callback(t *testing.T) {
	m := New(DefaultThresholds(), nil)

	var changes []string
	m.SetOnLevelChange(func(old, new Level) {
		changes = append(changes, old.String()+"->"+new.String())
	})

	m.Observe(10, 10)
	m.Observe(0, 10)

	want := []string{"normal->full", "full->normal"}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %s, want %s", i, changes[i], want[i])
		}
	}
	if m.CurrentLevel() != LevelNormal {
		t.Errorf("CurrentLevel = %s", m.CurrentLevel())
	}
}

func TestMonitor_LogsTransitions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := New(DefaultThresholds(), logger)

	m.Observe(33, 33)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "to=full") {
		t.Errorf("unexpected log output: %s", out)
	}
}
