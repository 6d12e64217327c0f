package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// seedStream is the second PCG word; trials differ by their first word.
const seedStream = 0x9e3779b97f4a7c15

// Job is one independent trial in a batch.
type Job struct {
	Scenario Scenario
	Model    Model
	Seed     uint64
	Steps    int
}

// Jobs expands trials of one scenario into consecutive seeds starting at
// seed.
func Jobs(scn Scenario, model Model, trials int, seed uint64, steps int) []Job {
	jobs := make([]Job, trials)
	for i := range jobs {
		jobs[i] = Job{Scenario: scn, Model: model, Seed: seed + uint64(i), Steps: steps}
	}
	return jobs
}

// NewSource returns the generator a trial with the given seed draws from.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seedStream))
}

// RunBatch runs jobs with at most parallelism trials in flight and returns
// their results in job order. Each trial gets its own engine and generator,
// so results do not depend on scheduling. The first failing trial cancels
// the rest; ctx cancellation is checked before each trial starts.
func RunBatch(ctx context.Context, r *Runner, jobs []Job, parallelism int) ([]*Result, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	results := make([]*Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.Run(job.Scenario, job.Model, NewSource(job.Seed), job.Steps)
			if err != nil {
				return fmt.Errorf("trial %d (seed %d): %w", i, job.Seed, err)
			}
			res.Seed = job.Seed
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
