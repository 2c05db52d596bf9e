package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memexhq/memex/internal/logging"
	"github.com/memexhq/memex/pkg/config"
)

var (
	// Version is set during build.
	Version = "0.1.0"

	configPath string
	dbPath     string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "memexd",
	Short: "Local-first memory engine for AI agents",
	Long: `memexd stores, recalls, and decays short textual memories for AI
agents: a persistent, searchable store grouped into sessions and owned by
users, with importance scoring, TTL expiry, and full-text recall.

Examples:
  memexd save alice s1 "Meeting notes about API design" --importance 0.8
  memexd recall alice --session s1 --limit 10
  memexd decay run
  memexd serve`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress informational output")
}

// loadConfig resolves the engine configuration from --config and --db,
// falling back to config.Load's search path.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if quiet {
		cfg.Logging.Level = "error"
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return cfg, nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
