package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/nvandessel/narrative-recall/internal/export"
	"github.com/nvandessel/narrative-recall/internal/simulation"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage saved simulation runs",
		Long: `List, inspect, delete, export and import runs saved with --save.

Runs live in recallsim.db under ~/.recallsim, or under --db / RECALLSIM_DB_PATH.`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
		newRunsExportCmd(),
		newRunsImportCmd(),
	)
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _ := cmd.Flags().GetString("model")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if model != "" {
				if _, err := simulation.ParseModel(model); err != nil {
					return err
				}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), model)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved runs.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCENARIO\tMODEL\tSEED\tRECALLS\tSTOPPED\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\t%s\n",
					r.ID, r.Scenario, r.Model, r.Seed, r.Recalls, r.Stopped,
					r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("model", "", "Only list runs of this model")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a saved run and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export saved runs as JSONL or an Arrow IPC stream",
		Long: `Export saved runs.

The format follows --format, or the file extension when --format is unset:
".arrow" writes one recall-event record batch per run; anything else writes
one run per JSONL line, oldest first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			path := args[0]
			if format == "" {
				format = "jsonl"
				if strings.EqualFold(filepath.Ext(path), ".arrow") {
					format = "arrow"
				}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			var n int
			switch format {
			case "jsonl":
				n, err = s.ExportJSONL(cmd.Context(), path)
				if err != nil {
					return err
				}
			case "arrow":
				summaries, err := s.ListRuns(cmd.Context(), "")
				if err != nil {
					return err
				}
				results := make([]*simulation.Result, 0, len(summaries))
				for i := len(summaries) - 1; i >= 0; i-- {
					res, err := s.GetRun(cmd.Context(), summaries[i].ID)
					if err != nil {
						return err
					}
					results = append(results, res)
				}
				if err := export.WriteFile(path, results); err != nil {
					return err
				}
				n = len(results)
			default:
				return fmt.Errorf("unknown export format %q (valid: jsonl, arrow)", format)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs to %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().String("format", "", "Export format: jsonl or arrow")
	return cmd
}

func newRunsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Import runs from a JSONL export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.ImportJSONL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs from %s\n", n, args[0])
			return nil
		},
	}
}
