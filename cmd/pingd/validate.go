package main

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xtxerr/pingd/internal/loader"
)

func newValidateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", *cfgPath)
			fmt.Fprintf(out, "  targets:  %d (%s)\n", len(cfg.Targets()), strings.Join(cfg.Targets(), ", "))
			fmt.Fprintf(out, "  count:    %d every %v\n", cfg.PingCount, cfg.Probe.Interval.Duration())
			fmt.Fprintf(out, "  probe:    %s\n", cfg.Probe.Backend)
			for _, sc := range cfg.StoreConfigs() {
				fmt.Fprintf(out, "  store:    %s\n", describeStore(sc))
			}
			if cfg.Collect.Schedule != "" {
				fmt.Fprintf(out, "  schedule: %s\n", cfg.Collect.Schedule)
			} else {
				fmt.Fprintf(out, "  schedule: run once\n")
			}
			return nil
		},
	}
}

// loadConfig loads and validates the configuration file.
func loadConfig(path string) (*loader.Config, error) {
	cfg, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func describeStore(sc loader.StoreConfig) string {
	switch {
	case sc.DB != "":
		return fmt.Sprintf("%s %s/%s", sc.Type, redact(sc.Host), sc.DB)
	case sc.DSN != "":
		return fmt.Sprintf("%s %s", sc.Type, redact(sc.DSN))
	case sc.Path != "":
		return fmt.Sprintf("%s %s", sc.Type, sc.Path)
	default:
		return sc.Type
	}
}

// passwordParam matches the password of a key=value connection string.
var passwordParam = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('[^']*'|[^\s&]+)`)

// redact hides the password of a URL or key=value connection string.
func redact(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		dsn = u.Redacted()
	}
	return passwordParam.ReplaceAllString(dsn, "${1}xxxxx")
}
