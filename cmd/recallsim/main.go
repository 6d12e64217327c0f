package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/nvandessel/narrative-recall/internal/config"
	"github.com/nvandessel/narrative-recall/internal/logging"
	"github.com/nvandessel/narrative-recall/internal/simulation"
	"github.com/nvandessel/narrative-recall/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recallsim",
		Short: "Narrative free-recall simulator",
		Long: `recallsim simulates free recall of narrative idea units.

It encodes a story's reading cycles with the landscape model (activation
spreading with Hebbian learning) or with context maintenance and retrieval
(CMR), then samples or replays recall sequences.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.recallsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace")
	rootCmd.PersistentFlags().String("db", "", "Directory holding recallsim.db (default ~/.recallsim)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newReplayCmd(),
		newBatchCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// loadConfig resolves configuration: file, then environment, then flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// newRunner builds a runner whose event trace lives next to the database.
// The returned closer releases the trace file.
func newRunner(cmd *cobra.Command, cfg *config.Config) (*simulation.Runner, func(), error) {
	dir, err := cfg.StoreDir()
	if err != nil {
		return nil, nil, err
	}
	events := logging.NewEventLogger(dir, cfg.Logging.Level)
	return simulation.NewRunner(cfg, newLogger(cmd, cfg), events), events.Close, nil
}

func openStore(cfg *config.Config) (*store.SQLiteRunStore, error) {
	dir, err := cfg.StoreDir()
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteRunStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseSequence parses a comma-separated list of unit indices.
func parseSequence(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	seq := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid unit index %q: %w", p, err)
		}
		seq = append(seq, n)
	}
	return seq, nil
}

func formatSequence(seq []int) string {
	parts := make([]string, len(seq))
	for i, n := range seq {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
