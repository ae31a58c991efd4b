// Package backpressure tracks how full the aggregator channel runs.
//
// The channel itself provides the backpressure: a worker blocks when it is
// full. The Monitor only observes occupancy so that a writer that cannot keep
// up shows in the logs and in the run report. It never drops or delays
// measurements.
package backpressure

import (
	"log/slog"
	"math"
	"sync"

	"github.com/xtxerr/pingd/config"
)

// Level represents the current backpressure level.
type Level int

const (
	// LevelNormal - the writer keeps up.
	LevelNormal Level = iota

	// LevelWarning - the channel is filling up.
	LevelWarning

	// LevelCritical - the channel is nearly full.
	LevelCritical

	// LevelFull - the channel is full; senders are blocked.
	LevelFull
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelFull:
		return "full"
	default:
		return "unknown"
	}
}

// Thresholds are occupancy ratios (len/cap) at which a level is entered.
type Thresholds struct {
	Warning    float64
	Critical   float64
	Hysteresis float64
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Warning:    config.DefaultBackpressureWarning,
		Critical:   config.DefaultBackpressureCritical,
		Hysteresis: config.DefaultBackpressureHysteresis,
	}
}

// Monitor derives a level from channel occupancy with hysteresis.
type Monitor struct {
	mu sync.Mutex

	thresholds Thresholds
	logger     *slog.Logger
	level      Level
	stats      Stats

	// Level change callback
	onLevelChange func(old, new Level)
}

// Stats holds occupancy statistics.
type Stats struct {
	Observations  int64
	LevelChanges  int64
	WarningCount  int64
	CriticalCount int64
	FullCount     int64 // observations with a full channel
	PeakLen       int
	Capacity      int
}

// New creates a Monitor. A nil logger disables transition logging.
func New(thresholds Thresholds, logger *slog.Logger) *Monitor {
	return &Monitor{
		thresholds: thresholds,
		logger:     logger,
	}
}

// SetOnLevelChange sets the callback for level changes.
func (m *Monitor) SetOnLevelChange(fn func(old, new Level)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLevelChange = fn
}

// Observe records one occupancy sample and returns the resulting level.
func (m *Monitor) Observe(length, capacity int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Observations++
	m.stats.Capacity = capacity
	if length > m.stats.PeakLen {
		m.stats.PeakLen = length
	}
	if capacity > 0 && length >= capacity {
		m.stats.FullCount++
	}

	newLevel := m.determineLevel(length, capacity)
	if newLevel != m.level {
		m.setLevel(newLevel, length, capacity)
	}
	return newLevel
}

// determineLevel determines the level based on occupancy.
func (m *Monitor) determineLevel(length, capacity int) Level {
	if capacity <= 0 {
		return LevelNormal
	}
	if length >= capacity {
		return LevelFull
	}

	usage := float64(length) / float64(capacity)
	t := m.thresholds

	// Going up (increasing pressure)
	if usage >= t.Critical {
		return LevelCritical
	}
	if usage >= t.Warning && m.level < LevelWarning {
		return LevelWarning
	}

	// Going down (decreasing pressure) - apply hysteresis. The lower bounds
	// are compared in whole slots so that 0.8-0.1 on ten slots means 7.
	switch m.level {
	case LevelFull, LevelCritical:
		if length < slots(t.Critical-t.Hysteresis, capacity) {
			return levelBelow(usage, t.Warning)
		}
		return LevelCritical
	case LevelWarning:
		if length < slots(t.Warning-t.Hysteresis, capacity) {
			return LevelNormal
		}
		return LevelWarning
	default:
		return LevelNormal
	}
}

// slots converts a fraction of capacity to a slot count.
func slots(fraction float64, capacity int) int {
	return int(math.Round(fraction * float64(capacity)))
}

func levelBelow(usage, warning float64) Level {
	if usage >= warning {
		return LevelWarning
	}
	return LevelNormal
}

// setLevel updates the current level, logs and fires the callback.
func (m *Monitor) setLevel(newLevel Level, length, capacity int) {
	oldLevel := m.level
	m.level = newLevel
	m.stats.LevelChanges++

	switch newLevel {
	case LevelWarning:
		m.stats.WarningCount++
	case LevelCritical:
		m.stats.CriticalCount++
	}

	if m.logger != nil {
		log := m.logger.Info
		if newLevel > oldLevel && newLevel >= LevelCritical {
			log = m.logger.Warn
		}
		log("channel backpressure level changed",
			"from", oldLevel.String(),
			"to", newLevel.String(),
			"len", length,
			"cap", capacity)
	}

	if m.onLevelChange != nil {
		m.onLevelChange(oldLevel, newLevel)
	}
}

// CurrentLevel returns the current level.
func (m *Monitor) CurrentLevel() Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Stats returns current statistics.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
