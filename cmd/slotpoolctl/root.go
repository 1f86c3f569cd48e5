package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavanmanishd/slotpool"
	"github.com/pavanmanishd/slotpool/hal"
)

var (
	// Global flags
	verbose   bool
	quiet     bool
	jsonOut   bool
	logFormat string
	logLevel  string

	// Pool flags shared by info and stress
	poolCapacity int
	poolStrategy string
	poolWithout  []string
	poolOffHeap  bool
)

var rootCmd = &cobra.Command{
	Use:   "slotpoolctl",
	Short: "Inspect and exercise fixed-capacity slot pools",
	Long: `slotpoolctl reports which free-list strategy a pool would use on this
host, replays scripted interrupt interleavings against every strategy and
stress-tests a shared pool from many goroutines.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// addPoolFlags registers the flags that describe the pool under test.
func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&poolCapacity, "capacity", slotpool.DefaultCapacity, "Number of slots")
	cmd.Flags().StringVar(&poolStrategy, "strategy", "auto", "Strategy: auto, tagged, packed or masked")
	cmd.Flags().StringSliceVar(&poolWithout, "without", nil, "Primitives to hide from the pool: cas64, cas32, mask")
	cmd.Flags().BoolVar(&poolOffHeap, "off-heap", false, "Place slots in an anonymous mapping")
}

// poolConfig builds the pool config and capabilities from the pool flags.
func poolConfig() (slotpool.Config, hal.Capabilities, error) {
	s, err := slotpool.ParseStrategy(poolStrategy)
	if err != nil {
		return slotpool.Config{}, hal.Capabilities{}, err
	}
	cfg := slotpool.Config{Capacity: poolCapacity, Strategy: s, OffHeap: poolOffHeap}
	if err := cfg.Validate(); err != nil {
		return slotpool.Config{}, hal.Capabilities{}, err
	}
	return cfg, hal.Host().Without(poolWithout...), nil
}

// newLogger builds the logger handed to pools from the log flags.
func newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	if verbose && level > slog.LevelInfo {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logFormat) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid --log-format %q: want text or json", logFormat)
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
