package main

import (
	"fmt"

	"github.com/nvandessel/narrative-recall/internal/simulation"
	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Score an observed recall sequence under a model",
		Long: `Encode a scenario, then force a recall sequence through the model and
report the probability of every outcome, including the closing stop.

The sequence defaults to the scenario's target recall.

Examples:
  recallsim replay --scenario story.yaml
  recallsim replay --scenario story.yaml --model cmr --sequence 3,1,2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			modelName, _ := cmd.Flags().GetString("model")
			sequenceFlag, _ := cmd.Flags().GetString("sequence")
			save, _ := cmd.Flags().GetBool("save")
			jsonOut, _ := cmd.Flags().GetBool("json")

			model, err := simulation.ParseModel(modelName)
			if err != nil {
				return err
			}
			sequence, err := parseSequence(sequenceFlag)
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

			res, err := runner.Replay(scn, model, sequence)
			if err != nil {
				return err
			}

			if err := persist(cmd, cfg, save, "", []*simulation.Result{res}); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			w := cmd.OutOrStdout()
			printResult(w, res)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Position  Outcome  Probability")
			for _, step := range res.Replay {
				outcome := "stop"
				if step.Choice > 0 {
					outcome = fmt.Sprintf("%d", step.Choice-1)
				}
				fmt.Fprintf(w, "%8d  %7s  %.6f\n", step.Position, outcome, step.Probability)
			}
			return nil
		},
	}

	cmd.Flags().String("scenario", "", "Scenario file (YAML or JSON)")
	cmd.Flags().String("model", string(simulation.ModelLandscape), "Model: landscape, cmr, landscape-cmr")
	cmd.Flags().String("sequence", "", "Comma-separated unit indices (default: scenario target)")
	cmd.Flags().Bool("save", false, "Save the run to the run database")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}
