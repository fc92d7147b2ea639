// Package cmd implements the dupfind command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eargollo/dupfind/internal/config"
	"github.com/eargollo/dupfind/internal/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	cfgFile   string
	logLevel  string
	logFormat string
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "dupfind",
		Short: "Find duplicate files by content",
		Long: `dupfind walks a directory tree, fingerprints files of equal size and
confirms duplicates with a byte-for-byte comparison.

Each duplicate is reported against the first file with the same content
in directory order. Scans can be recorded in a SQLite history and run on
a schedule by the HTTP server.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.cfgFile, "config", "c", "dupfind.yaml",
		"Path to configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "",
		"Override log format (console, json)")

	root.AddCommand(newScanCmd(g), newServeCmd(g), newHistoryCmd(g), newVersionCmd())
	return root
}

// Execute runs the root command
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}

// load reads the config file and applies the logging overrides.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.LogFormat = g.logFormat
	}
	return cfg, nil
}

// newLogger builds the operational logger and installs it as the zap
// global.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "stderr")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	return log, nil
}
