package loader

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/pingd/config"
	"github.com/xtxerr/pingd/internal/constants"
	"github.com/xtxerr/pingd/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMinimal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pingd.yaml", `
ping_targets: [1.1.1.1, example.com]
store:
  db: telemetry
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.PingCount != config.DefaultPingCount {
		t.Errorf("PingCount = %d, want %d", cfg.PingCount, config.DefaultPingCount)
	}
	if cfg.Probe.Interval.Duration() != 300*time.Millisecond {
		t.Errorf("Interval = %v, want 300ms", cfg.Probe.Interval.Duration())
	}
	if cfg.Pipeline.ChannelCapacity != 33 {
		t.Errorf("ChannelCapacity = %d, want 33", cfg.Pipeline.ChannelCapacity)
	}
	if len(cfg.Stores) != 1 {
		t.Fatalf("got %d stores, want 1", len(cfg.Stores))
	}
	sc := cfg.Stores[0]
	if sc.Type != constants.StoreInfluxDB || sc.Host != config.DefaultInfluxHost {
		t.Errorf("store defaults not applied: %+v", sc)
	}
	if sc.Measurement != constants.MeasurementName {
		t.Errorf("Measurement = %q", sc.Measurement)
	}
	if sc.FlushTimeout.Duration() != config.DefaultFlushTimeout {
		t.Errorf("FlushTimeout = %v", sc.FlushTimeout.Duration())
	}
	if sc.MaxPending != config.DefaultMaxPending {
		t.Errorf("MaxPending = %d", sc.MaxPending)
	}
	if got := ToStoreConfig(sc).PendingLimit(); got != config.DefaultMaxPending {
		t.Errorf("PendingLimit = %d", got)
	}
}

func TestLoadLegacyFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pingd.yaml", `
count: 5
ping_host: 10.0.0.1
influxdb:
  host: http://influx:8086
  db: telemetry
  token: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.PingCount != 5 {
		t.Errorf("PingCount = %d, want 5", cfg.PingCount)
	}
	if !reflect.DeepEqual(cfg.Targets(), []string{"10.0.0.1"}) {
		t.Errorf("Targets = %v", cfg.Targets())
	}
	if len(cfg.Stores) != 1 || cfg.Stores[0].Type != constants.StoreInfluxDB || cfg.Stores[0].Token != "secret" {
		t.Errorf("legacy influxdb block not migrated: %+v", cfg.Stores)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PINGD_TEST_TOKEN", "from-env")

	dir := t.TempDir()
	path := writeFile(t, dir, "pingd.yaml", `
ping_targets: [1.1.1.1]
store:
  db: telemetry
  token: ${PINGD_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stores[0].Token != "from-env" {
		t.Errorf("Token = %q, want from-env", cfg.Stores[0].Token)
	}
}

func TestLoadIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "targets.d/a.yaml", "ping_targets: [a.example, 1.1.1.1]\n")
	writeFile(t, dir, "targets.d/b.yaml", `
ping_targets: b.example
stores:
  - type: parquet
    path: /var/lib/pingd
`)
	path := writeFile(t, dir, "pingd.yaml", `
ping_targets: [1.1.1.1]
include: ["targets.d/*.yaml"]
store:
  type: lineprotocol
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	want := []string{"1.1.1.1", "a.example", "b.example"}
	if !reflect.DeepEqual(cfg.Targets(), want) {
		t.Errorf("Targets = %v, want %v", cfg.Targets(), want)
	}

	if len(cfg.Stores) != 2 {
		t.Fatalf("got %d stores, want 2", len(cfg.Stores))
	}
	if cfg.Stores[0].Type != constants.StoreLineProtocol || cfg.Stores[0].Path != "-" {
		t.Errorf("stores[0] = %+v", cfg.Stores[0])
	}
	if cfg.Stores[1].Type != constants.StoreParquet {
		t.Errorf("stores[1] = %+v", cfg.Stores[1])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pingd.yaml", "ping_targets: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg, err := Parse([]byte(`
ping_count: -1
ping_targets: ["-rf", ok.example]
probe:
  backend: carrier-pigeon
pipeline:
  channel_capacity: 0
policy:
  on_probe_start_error: ignore
store:
  type: mongodb
collect:
  schedule: "not a cron"
log:
  level: loud
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.Normalize()

	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.IsValidation(err) {
		t.Errorf("IsValidation(%v) = false", err)
	}
	if !errors.Is(err, errors.ErrInvalidHost) {
		t.Error("missing ErrInvalidHost")
	}
	if !errors.Is(err, errors.ErrUnknownBackend) {
		t.Error("missing ErrUnknownBackend")
	}

	msg := err.Error()
	for _, field := range []string{
		"ping_count",
		"ping_targets[0]",
		"probe.backend",
		"pipeline.channel_capacity",
		"policy.on_probe_start_error",
		"stores[0].type",
		"collect.schedule",
		"log.level",
	} {
		if !strings.Contains(msg, field) {
			t.Errorf("validation message does not mention %s:\n%s", field, msg)
		}
	}
}

func TestValidateMissingTargetsAndStore(t *testing.T) {
	cfg := DefaultConfig()
	err := Validate(cfg)
	if !errors.Is(err, errors.ErrMissingField) {
		t.Fatalf("Validate = %v, want ErrMissingField", err)
	}
	if !strings.Contains(err.Error(), "ping_targets") || !strings.Contains(err.Error(), "store") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValidateStoreRequirements(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr string
	}{
		{"influx without db", StoreConfig{Type: constants.StoreInfluxDB}, "db"},
		{"duckdb without dsn", StoreConfig{Type: constants.StoreDuckDB}, "dsn"},
		{"postgres without dsn", StoreConfig{Type: constants.StorePostgres}, "dsn"},
		{"parquet without path", StoreConfig{Type: constants.StoreParquet}, "path"},
		{"bad measurement", StoreConfig{Type: constants.StoreLineProtocol, Measurement: "ping-rtt"}, "measurement"},
		{"negative max_pending", StoreConfig{Type: constants.StoreLineProtocol, MaxPending: -1}, "max_pending"},
		{"lineprotocol ok", StoreConfig{Type: constants.StoreLineProtocol}, ""},
		{"duckdb ok", StoreConfig{Type: constants.StoreDuckDB, DSN: "pingd.duckdb"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.PingTargets = StringList{"1.1.1.1"}
			cfg.Store = &tt.store
			cfg.Normalize()

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	cfg, err := Parse([]byte(`
probe:
  interval: 500ms
  timeout: 2
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Probe.Interval.Duration() != 500*time.Millisecond {
		t.Errorf("Interval = %v", cfg.Probe.Interval.Duration())
	}
	if cfg.Probe.Timeout.Duration() != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Probe.Timeout.Duration())
	}

	if _, err := Parse([]byte("probe:\n  interval: soon\n")); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestToRunConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingTargets = StringList{"a.example", "b.example"}
	cfg.PingCount = 3
	cfg.Pipeline.MaxParallel = 1
	cfg.Policy.OnProbeStartError = constants.PolicyAbort
	cfg.Policy.FailOnFlushError = true
	cfg.Stores = []StoreConfig{
		{Type: constants.StoreLineProtocol, FlushTimeout: Duration(5 * time.Second)},
		{Type: constants.StoreParquet, Path: "/tmp", FlushTimeout: Duration(10 * time.Second)},
	}

	rc := ToRunConfig(cfg)
	if !reflect.DeepEqual(rc.Hosts, []string{"a.example", "b.example"}) {
		t.Errorf("Hosts = %v", rc.Hosts)
	}
	if rc.Count != 3 || rc.MaxParallel != 1 || rc.ChannelCapacity != 33 {
		t.Errorf("unexpected run config: %+v", rc)
	}
	if rc.OnStartError != constants.PolicyAbort || !rc.FailOnFlushError {
		t.Errorf("policy not converted: %+v", rc)
	}
	if rc.FlushTimeout != 10*time.Second {
		t.Errorf("FlushTimeout = %v, want the longest store timeout", rc.FlushTimeout)
	}

	opts := ToProbeOptions(cfg)
	if opts.Backend != constants.ProbeExec || opts.Command != "ping" {
		t.Errorf("probe options = %+v", opts)
	}

	logOpts := ToLogOptions(cfg)
	if logOpts.Level != config.DefaultLogLevel || logOpts.MaxSizeMB != config.DefaultLogMaxSizeMB {
		t.Errorf("log options = %+v", logOpts)
	}

	stores := ToStoreConfigs(cfg)
	if len(stores) != 2 || stores[1].Path != "/tmp" {
		t.Errorf("store configs = %+v", stores)
	}
}
