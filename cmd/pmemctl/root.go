package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/joshuapare/pmemkit/internal/config"
	"github.com/joshuapare/pmemkit/internal/metrics"
	"github.com/joshuapare/pmemkit/pkg/log"
	"github.com/joshuapare/pmemkit/pool"
)

var (
	// Global flags
	verbose     bool
	quiet       bool
	jsonOut     bool
	configPath  string
	metricsFile string

	// Pool flags, merged with the config file
	flagLayout    string
	flagSize      string
	flagLogSize   string
	flagFlushMode string
	flagPreFault  bool
	flagLogLevel  string
)

// Set up by loadConfig before any command runs.
var (
	cfg        = config.Default()
	logger     log.Logger = log.NoopLogger{}
	metricsReg            = prometheus.NewRegistry()
	collector  *metrics.Collector
)

var rootCmd = &cobra.Command{
	Use:   "pmemctl",
	Short: "Create, inspect and edit pmemkit pools",
	Long: `pmemctl manages pmemkit pool files: it creates them, reports their
header and heap state, runs crash recovery, and edits the int64 vector kept
at a pool's root object.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return writeMetrics()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	pf.BoolVar(&jsonOut, "json", false, "Output in JSON format")
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.pmemkit/config.toml)")
	pf.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	pf.StringVar(&flagLayout, "layout", "", "Pool layout name")
	pf.StringVar(&flagSize, "size", "", "Pool size for create, e.g. 64MiB")
	pf.StringVar(&flagLogSize, "log-size", "", "Undo log size for create, e.g. 1MiB")
	pf.StringVar(&flagFlushMode, "flush-mode", "", "Commit durability: auto, data-only or full")
	pf.BoolVar(&flagPreFault, "prefault", false, "Touch every page when opening a pool")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds cfg from defaults, the config file and explicitly set
// flags, in increasing precedence, then sets up logging and metrics.
func loadConfig(cmd *cobra.Command) error {
	cfg = config.Default()
	flags := cmd.Flags()
	changed := make(map[string]bool)
	for _, name := range []string{"layout", "size", "log-size", "flush-mode", "prefault", "log-level"} {
		changed[name] = flags.Changed(name)
	}

	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	switch {
	case path != "" && config.FileExists(path):
		fc, err := config.LoadFileConfig(path)
		if err != nil {
			return err
		}
		if err := config.ApplyFileConfig(&cfg, fc, changed); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	case flags.Changed("config"):
		return fmt.Errorf("config file %s not found", path)
	}

	if err := applyFlags(changed); err != nil {
		return err
	}
	if err := setupLogger(); err != nil {
		return err
	}
	return setupMetrics()
}

func applyFlags(changed map[string]bool) error {
	if changed["layout"] {
		cfg.Layout = flagLayout
	}
	if changed["size"] {
		n, err := config.ParseSize("size", flagSize)
		if err != nil {
			return err
		}
		cfg.Size = n
	}
	if changed["log-size"] {
		n, err := config.ParseSize("log-size", flagLogSize)
		if err != nil {
			return err
		}
		cfg.LogSize = n
	}
	if changed["flush-mode"] {
		fc := config.FileConfig{FlushMode: flagFlushMode}
		if err := config.ApplyFileConfig(&cfg, fc, nil); err != nil {
			return err
		}
	}
	if changed["prefault"] {
		cfg.PreFault = flagPreFault
	}
	if changed["log-level"] {
		cfg.LogLevel = flagLogLevel
	}
	return nil
}

func setupLogger() error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	switch {
	case quiet:
		level = zerolog.ErrorLevel
	case verbose:
		level = zerolog.DebugLevel
	}
	logger = log.NewZerologAdapterWriter(zerolog.ConsoleWriter{Out: os.Stderr}, level)
	return nil
}

func setupMetrics() error {
	metricsReg = prometheus.NewRegistry()
	c, err := metrics.New(metricsReg)
	if err != nil {
		return err
	}
	collector = c
	return nil
}

func writeMetrics() error {
	if metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(metricsFile, metricsReg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// poolOptions returns the options every command opens pools with.
func poolOptions(reg *pool.Registry) pool.Options {
	opts := cfg.PoolOptions()
	opts.Registry = reg
	opts.Logger = logger
	opts.Metrics = collector
	return opts
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
