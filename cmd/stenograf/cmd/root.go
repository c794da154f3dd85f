// Package cmd implements the CLI commands for stenograf.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stenograf/stenograf/internal/config"
	"github.com/stenograf/stenograf/internal/observability"
	"github.com/stenograf/stenograf/internal/version"
)

// ErrConfig marks configuration errors. The process exits with status 2
// when a command fails with it, and 1 for everything else.
var ErrConfig = errors.New("configuration error")

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "stenograf",
	Short:   "Political video transcript ingest and search service",
	Version: version.Short(),
	Long: `stenograf ingests political video transcripts (annotated HTML rally
pages and Dutch parliamentary VLOS XML session reports) into a relational
content store, keeps a Meilisearch instance in sync with it, and serves a
search and browse API over both.

When the search engine is unreachable the API degrades to an SQL keyword
fallback instead of failing.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags. These are not bound to viper: initRuntime checks
	// Changed() and only then overrides config/env values, preserving
	// CLI flag > env var > config file > default precedence.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, /etc/stenograf/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// initRuntime loads configuration, applies CLI logging overrides, and
// installs the process-wide logger. Every subcommand starts here.
func initRuntime() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		cfg.Logging.Level = strings.ToLower(level)
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ := rootCmd.PersistentFlags().GetString("log-format")
		cfg.Logging.Format = strings.ToLower(format)
	}
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}

	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	return cfg, logger, nil
}
