package main

import (
	"fmt"
	"io"

	"github.com/nvandessel/narrative-recall/internal/config"
	"github.com/nvandessel/narrative-recall/internal/export"
	"github.com/nvandessel/narrative-recall/internal/recall"
	"github.com/nvandessel/narrative-recall/internal/simulation"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Encode a scenario and sample one free-recall sequence",
		Long: `Encode a scenario's reading cycles with the chosen model, then sample
a free-recall sequence from the seeded generator.

Examples:
  recallsim simulate --scenario story.yaml
  recallsim simulate --scenario story.yaml --model cmr --seed 7 --save
  recallsim simulate --scenario story.yaml --trace-cycles --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			modelName, _ := cmd.Flags().GetString("model")
			seed, _ := cmd.Flags().GetUint64("seed")
			steps, _ := cmd.Flags().GetInt("steps")
			save, _ := cmd.Flags().GetBool("save")
			arrowPath, _ := cmd.Flags().GetString("arrow")
			traceCycles, _ := cmd.Flags().GetBool("trace-cycles")
			jsonOut, _ := cmd.Flags().GetBool("json")

			model, err := simulation.ParseModel(modelName)
			if err != nil {
				return err
			}
			scn, err := simulation.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}
			scn.TraceCycles = scn.TraceCycles || traceCycles

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runner, closeEvents, err := newRunner(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeEvents()

			res, err := runner.Run(scn, model, simulation.NewSource(seed), steps)
			if err != nil {
				return err
			}
			res.Seed = seed

			if err := persist(cmd, cfg, save, arrowPath, []*simulation.Result{res}); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().String("scenario", "", "Scenario file (YAML or JSON)")
	cmd.Flags().String("model", string(simulation.ModelLandscape), "Model: landscape, cmr, landscape-cmr")
	cmd.Flags().Uint64("seed", 1, "Random seed")
	cmd.Flags().Int("steps", recall.Unbounded, "Maximum recalls (-1 for unbounded)")
	cmd.Flags().Bool("save", false, "Save the run to the run database")
	cmd.Flags().String("arrow", "", "Write recall events to an Arrow IPC stream file")
	cmd.Flags().Bool("trace-cycles", false, "Record model state after every encoding step")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

// persist saves results to the run database and/or writes an Arrow file.
func persist(cmd *cobra.Command, cfg *config.Config, save bool, arrowPath string, results []*simulation.Result) error {
	if save {
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		for _, res := range results {
			if err := s.SaveRun(cmd.Context(), res); err != nil {
				return fmt.Errorf("saving run %s: %w", res.RunID, err)
			}
		}
	}
	if arrowPath != "" {
		if err := export.WriteFile(arrowPath, results); err != nil {
			return fmt.Errorf("writing arrow file: %w", err)
		}
	}
	return nil
}

func printResult(w io.Writer, res *simulation.Result) {
	fmt.Fprintf(w, "Run:      %s\n", res.RunID)
	fmt.Fprintf(w, "Scenario: %s\n", res.Scenario)
	fmt.Fprintf(w, "Model:    %s\n", res.Model)
	fmt.Fprintf(w, "Seed:     %d\n", res.Seed)
	fmt.Fprintf(w, "Recalls:  %s (%d of %d units)\n", formatSequence(res.Recalls), len(res.Recalls), unitCount(res))
	if res.Replay != nil {
		fmt.Fprintf(w, "Log-likelihood: %.6f\n", res.LogLikelihood)
	}
	if res.Stopped {
		fmt.Fprintln(w, "Ended:    stop")
	} else {
		fmt.Fprintln(w, "Ended:    step limit or exhaustion")
	}
}

// unitCount is the number of distinct presented units.
func unitCount(res *simulation.Result) int {
	seen := make(map[int]bool, len(res.Presentations))
	for _, u := range res.Presentations {
		seen[u] = true
	}
	return len(seen)
}
