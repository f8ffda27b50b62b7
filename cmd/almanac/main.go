// almanac is the main CLI: run one pipeline pass, serve the fact webhook,
// or reconcile the remote knowledge base against the local mapping.
//
// Usage:
//
//	almanac run       [--config=<path>] [--strict]
//	almanac serve     [--config=<path>] [--addr=<host:port>]
//	almanac reconcile [--config=<path>]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootFlags struct {
	configPath string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:           "almanac",
	Short:         "Feed a conversational agent's knowledge base from content plugins",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", os.Getenv("ALMANAC_CONFIG"), "Config file path (default almanac.toml)")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(runCmd, serveCmd, reconcileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "almanac:", err)
		os.Exit(1)
	}
}
