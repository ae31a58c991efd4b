// pingd probes a list of hosts and stores their round-trip times.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/xtxerr/pingd/internal/store/influx"
	_ "github.com/xtxerr/pingd/internal/store/parquet"
	_ "github.com/xtxerr/pingd/internal/store/sqlstore"
)

// Version is set at build time via ldflags
var Version = "dev"

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "pingd",
		Short:         "Ping latency collector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "pingd.yaml", "config file path")

	root.AddCommand(
		newRunCmd(&cfgPath),
		newValidateCmd(&cfgPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pingd %s\n", Version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pingd: %v\n", err)
		os.Exit(1)
	}
}
