package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// newRootCmd builds the command tree. Commands load the config lazily so
// flags and environment are read at execution time.
func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	rootCmd := &cobra.Command{
		Use:   "railz",
		Short: "Two-phase registration workflows on railz",
		Long: `railz runs user registrations through a two-phase workflow: every
field check runs concurrently and reports all failures at once, then the
processing steps run in order and stop at the first failure.

Register a single user, serve the registration API over HTTP, or run the
end-to-end demo scenarios.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	load := func() (Config, error) {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return Config{}, err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newRegisterCmd(load))
	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newDemoCmd(load))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
