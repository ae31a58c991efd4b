// Package loader handles configuration file loading, validation, and conversion.
//
// LOCATION: internal/loader/loader.go
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Processing include directives
//   - Validating the result before any probe is started
//   - Converting between YAML and the pipeline's runtime configuration

package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/xtxerr/pingd/internal/collector"
	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/errors"
	"github.com/xtxerr/pingd/internal/logging"
	"github.com/xtxerr/pingd/internal/probe"
	"github.com/xtxerr/pingd/internal/store"
	"github.com/xtxerr/pingd/internal/validation"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Process includes (load additional target and store files)
	baseDir := filepath.Dir(path)
	if err := processIncludes(cfg, baseDir); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

// Parse decodes a configuration document without resolving includes.
// The result has legacy fields applied but is not normalized.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyLegacyFields()
	return cfg, nil
}

// processIncludes loads and merges included configuration files.
func processIncludes(cfg *Config, baseDir string) error {
	for _, pattern := range cfg.Include {
		// Resolve relative paths
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}

		// Expand glob pattern
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}

		for _, match := range matches {
			if err := loadInclude(cfg, match); err != nil {
				return fmt.Errorf("load include %q: %w", match, err)
			}
		}
	}

	return nil
}

// loadInclude loads a single include file and merges it into the config.
func loadInclude(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := os.ExpandEnv(string(data))

	// Parse into a partial config
	var partial Config
	if err := yaml.Unmarshal([]byte(expanded), &partial); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	// Merge targets
	cfg.PingTargets = append(cfg.PingTargets, partial.PingTargets...)
	cfg.PingTargets = append(cfg.PingTargets, partial.PingHost...)

	// Merge stores
	if partial.Store != nil {
		cfg.Stores = append(cfg.Stores, *partial.Store)
	}
	cfg.Stores = append(cfg.Stores, partial.Stores...)

	return nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration. Every problem is reported, not just
// the first one.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	// Measurement validation
	if cfg.PingCount <= 0 {
		errs.AddField("ping_count", "must be positive")
	}
	if len(cfg.PingTargets) == 0 {
		errs.AddMissing("ping_targets")
	}
	for _, err := range validation.ValidateHosts(cfg.PingTargets) {
		errs.Add(fmt.Errorf("%v: %w", err, errors.ErrInvalidHost))
	}

	// Probe validation
	if !constants.Contains(constants.ValidProbeBackends, cfg.Probe.Backend) {
		errs.Add(errors.NewUnknownBackend("probe.backend", cfg.Probe.Backend))
	}
	if cfg.Probe.Interval <= 0 {
		errs.Add(fmt.Errorf("probe.interval %v: %w", cfg.Probe.Interval.Duration(), errors.ErrInvalidInterval))
	}
	if cfg.Probe.Backend == constants.ProbeExec && cfg.Probe.Command == "" {
		errs.AddField("probe.command", "cannot be empty for the exec backend")
	}
	if cfg.Probe.Backend == constants.ProbeICMP && cfg.Probe.Timeout <= 0 {
		errs.AddField("probe.timeout", "must be positive for the icmp backend")
	}

	// Pipeline validation
	if cfg.Pipeline.ChannelCapacity < 1 {
		errs.AddField("pipeline.channel_capacity", "must be at least 1")
	}
	if cfg.Pipeline.MaxParallel < 0 {
		errs.AddField("pipeline.max_parallel", "cannot be negative")
	}

	// Policy validation
	if !constants.Contains(constants.ValidStartErrorPolicies, cfg.Policy.OnProbeStartError) {
		errs.AddField("policy.on_probe_start_error", fmt.Sprintf("must be one of %v", constants.ValidStartErrorPolicies))
	}

	// Store validation
	stores := cfg.StoreConfigs()
	if len(stores) == 0 {
		errs.AddMissing("store")
	}
	for i, sc := range stores {
		validateStore(errs, fmt.Sprintf("stores[%d]", i), sc)
	}

	// Runtime validation
	if cfg.Collect.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Collect.Schedule); err != nil {
			errs.AddField("collect.schedule", err.Error())
		}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs.AddField("log.level", err.Error())
	}
	if !constants.Contains([]string{"", "text", "json", "auto"}, cfg.Log.Format) {
		errs.AddField("log.format", "must be one of text, json, auto")
	}
	if cfg.Summary.Accuracy <= 0 || cfg.Summary.Accuracy >= 1 {
		errs.AddField("summary.accuracy", "must be between 0 and 1")
	}

	return errs.Err()
}

func validateStore(errs *errors.ValidationErrors, field string, sc StoreConfig) {
	if !constants.IsValidStoreType(sc.Type) {
		errs.Add(errors.NewUnknownBackend(field+".type", sc.Type))
		return
	}
	if err := validation.ValidateSeriesName(sc.Measurement); err != nil {
		errs.AddField(field+".measurement", err.Error())
	}
	if sc.FlushTimeout <= 0 {
		errs.AddField(field+".flush_timeout", "must be positive")
	}
	if sc.MaxPending < 0 {
		errs.AddField(field+".max_pending", "must be positive")
	}

	switch sc.Type {
	case constants.StoreInfluxDB:
		if sc.Host == "" {
			errs.AddMissing(field + ".host")
		}
		if sc.DB == "" {
			errs.AddMissing(field + ".db")
		}
	case constants.StoreDuckDB, constants.StorePostgres:
		if sc.DSN == "" {
			errs.AddMissing(field + ".dsn")
		}
	case constants.StoreParquet:
		if sc.Path == "" {
			errs.AddMissing(field + ".path")
		}
	}
}

// StoreConfigs returns every configured backend. Before Normalize it also
// includes the single store block.
func (c *Config) StoreConfigs() []StoreConfig {
	if c.Store == nil {
		return c.Stores
	}
	return append([]StoreConfig{*c.Store}, c.Stores...)
}

// =============================================================================
// Conversion: Config → Runtime Configuration
// =============================================================================

// ToStoreConfig converts one store block to the backend configuration.
func ToStoreConfig(sc StoreConfig) store.Config {
	return store.Config{
		Type:        sc.Type,
		Host:        sc.Host,
		DB:          sc.DB,
		Org:         sc.Org,
		Token:       sc.Token,
		Measurement: sc.Measurement,
		From:        sc.From,
		DSN:         sc.DSN,
		Path:        sc.Path,
		MaxPending:  sc.MaxPending,
	}
}

// ToStoreConfigs converts every store block.
func ToStoreConfigs(cfg *Config) []store.Config {
	stores := cfg.StoreConfigs()
	out := make([]store.Config, 0, len(stores))
	for _, sc := range stores {
		out = append(out, ToStoreConfig(sc))
	}
	return out
}

// ToProbeOptions converts the probe block.
func ToProbeOptions(cfg *Config) probe.Options {
	return probe.Options{
		Backend:    cfg.Probe.Backend,
		Command:    cfg.Probe.Command,
		Privileged: cfg.Probe.Privileged,
		Timeout:    cfg.Probe.Timeout.Duration(),
	}
}

// ToLogOptions converts the log block.
func ToLogOptions(cfg *Config) logging.Options {
	return logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
}

// ToRunConfig converts the measurement, pipeline and policy blocks into the
// configuration of one collection run.
func ToRunConfig(cfg *Config) collector.RunConfig {
	return collector.RunConfig{
		Hosts:            cfg.Targets(),
		Count:            cfg.PingCount,
		Interval:         cfg.Probe.Interval.Duration(),
		ChannelCapacity:  cfg.Pipeline.ChannelCapacity,
		MaxParallel:      cfg.Pipeline.MaxParallel,
		OnStartError:     cfg.Policy.OnProbeStartError,
		FailOnFlushError: cfg.Policy.FailOnFlushError,
		FlushTimeout:     flushTimeout(cfg),
	}
}

// flushTimeout returns the longest flush timeout of all stores. The writer
// flushes all backends in one call.
func flushTimeout(cfg *Config) time.Duration {
	var longest time.Duration
	for _, sc := range cfg.StoreConfigs() {
		if d := sc.FlushTimeout.Duration(); d > longest {
			longest = d
		}
	}
	return longest
}
