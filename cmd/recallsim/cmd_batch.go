package main

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"

	"github.com/nvandessel/narrative-recall/internal/recall"
	"github.com/nvandessel/narrative-recall/internal/simulation"
	"github.com/spf13/cobra"
)

// batchSummary reports recall statistics across trials.
type batchSummary struct {
	Scenario    string    `json:"scenario"`
	Model       string    `json:"model"`
	Trials      int       `json:"trials"`
	Seed        uint64    `json:"seed"`
	MeanRecalls float64   `json:"mean_recalls"`
	StopRate    float64   `json:"stop_rate"`
	RecallRate  []float64 `json:"recall_rate"`
	RunIDs      []string  `json:"run_ids"`
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run many seeded trials of one scenario in parallel",
		Long: `Run independent trials with consecutive seeds and summarize how often
each unit was recalled. Results are identical for any --parallel value.

Interrupting the command cancels trials that have not started.

Examples:
  recallsim batch --scenario story.yaml --trials 500
  recallsim batch --scenario story.yaml --model cmr --trials 100 --save --arrow runs.arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			modelName, _ := cmd.Flags().GetString("model")
			trials, _ := cmd.Flags().GetInt("trials")
			seed, _ := cmd.Flags().GetUint64("seed")
			steps, _ := cmd.Flags().GetInt("steps")
			parallel, _ := cmd.Flags().GetInt("parallel")
			save, _ := cmd.Flags().GetBool("save")
			arrowPath, _ := cmd.Flags().GetString("arrow")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if trials <= 0 {
				return fmt.Errorf("--trials must be positive, got %d", trials)
			}
			model, err := simulation.ParseModel(modelName)
			if err != nil {
				return err
			}
			scn, err := simulation.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runner, closeEvents, err := newRunner(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeEvents()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
			defer stop()

			jobs := simulation.Jobs(scn, model, trials, seed, steps)
			results, err := simulation.RunBatch(ctx, runner, jobs, parallel)
			if err != nil {
				return err
			}

			if err := persist(cmd, cfg, save, arrowPath, results); err != nil {
				return err
			}

			summary := summarize(scn, model, seed, results)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Scenario: %s\n", summary.Scenario)
			fmt.Fprintf(w, "Model:    %s\n", summary.Model)
			fmt.Fprintf(w, "Trials:   %d (seeds %d-%d)\n", summary.Trials, seed, seed+uint64(trials)-1)
			fmt.Fprintf(w, "Mean recalls: %.3f\n", summary.MeanRecalls)
			fmt.Fprintf(w, "Stop rate:    %.3f\n", summary.StopRate)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Unit  Recall rate")
			for unit, rate := range summary.RecallRate {
				fmt.Fprintf(w, "%4d  %.3f\n", unit, rate)
			}
			return nil
		},
	}

	cmd.Flags().String("scenario", "", "Scenario file (YAML or JSON)")
	cmd.Flags().String("model", string(simulation.ModelLandscape), "Model: landscape, cmr, landscape-cmr")
	cmd.Flags().Int("trials", 100, "Number of trials")
	cmd.Flags().Uint64("seed", 1, "Seed of the first trial")
	cmd.Flags().Int("steps", recall.Unbounded, "Maximum recalls per trial (-1 for unbounded)")
	cmd.Flags().Int("parallel", runtime.NumCPU(), "Maximum trials in flight")
	cmd.Flags().Bool("save", false, "Save every run to the run database")
	cmd.Flags().String("arrow", "", "Write recall events to an Arrow IPC stream file")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

func summarize(scn simulation.Scenario, model simulation.Model, seed uint64, results []*simulation.Result) batchSummary {
	summary := batchSummary{
		Scenario:   scn.Name,
		Model:      string(model),
		Trials:     len(results),
		Seed:       seed,
		RecallRate: make([]float64, scn.Units()),
		RunIDs:     make([]string, 0, len(results)),
	}
	if len(results) == 0 {
		return summary
	}

	var recalls, stops int
	for _, res := range results {
		summary.RunIDs = append(summary.RunIDs, res.RunID)
		recalls += len(res.Recalls)
		if res.Stopped {
			stops++
		}
		for _, unit := range res.Recalls {
			summary.RecallRate[unit]++
		}
	}

	n := float64(len(results))
	summary.MeanRecalls = float64(recalls) / n
	summary.StopRate = float64(stops) / n
	for i := range summary.RecallRate {
		summary.RecallRate[i] /= n
	}
	return summary
}
