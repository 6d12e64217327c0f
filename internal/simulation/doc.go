// Package simulation drives recall trials against the landscape and CMR
// engines.
//
// A Scenario carries one narrative: its unit-by-unit connectivity, the
// reading cycles in study order, and optionally an observed recall sequence.
// A Runner builds a fresh engine per trial, encodes the cycles, and then
// either samples a free-recall sequence or replays the observed one while
// recording outcome probabilities. RunBatch fans independent trials out
// across goroutines, each with its own seeded generator.
//
// Usage:
//
//	scn, err := simulation.LoadScenario("fisherman.yaml")
//	if err != nil {
//	    return err
//	}
//	r := simulation.NewRunner(config.Default(), logger, nil)
//	res, err := r.Run(scn, simulation.ModelLandscape, rand.New(rand.NewPCG(1, 2)), recall.Unbounded)
package simulation
