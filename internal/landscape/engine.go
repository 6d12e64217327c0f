// Package landscape implements the revised Landscape model of reading
// comprehension. Activation spreads between text units through a saturating
// function of their connection strengths, attended units are pinned to the
// activation ceiling, total activation is capped by memory capacity, and
// co-active units strengthen their connections after every reading cycle.
package landscape

import (
	"fmt"
	"math"

	"github.com/nvandessel/narrative-recall/internal/recall"
	"gonum.org/v1/gonum/mat"
)

// Engine holds the activation vector and connection matrix of one simulated
// reader. An Engine is not safe for concurrent use; run independent trials
// on independent engines.
type Engine struct {
	config Config
	choice recall.ChoiceConfig
	units  int

	initial     *mat.Dense
	connections *mat.Dense
	activations *mat.VecDense

	preretrieval *mat.VecDense
	episode      *recall.Episode
	cycleIndex   int

	sigma *mat.Dense
	probs []float64
}

// New creates an engine over the N×N connectivity matrix. The connectivity
// is copied, scaled by SemanticStrength, and its diagonal set to
// DiagonalSentinel, so undefined self-similarities are ignored.
func New(connectivity mat.Matrix, config Config, choice recall.ChoiceConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := choice.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{config: config, choice: choice}
	if err := e.ResetWith(connectivity); err != nil {
		return nil, err
	}
	return e, nil
}

// ResetWith replaces the connectivity and restores initial state while
// keeping the engine's parameters. The new matrix may have a different size.
func (e *Engine) ResetWith(connectivity mat.Matrix) error {
	r, c := connectivity.Dims()
	if r != c || r == 0 {
		return fmt.Errorf("%w: connectivity is %dx%d, want non-empty square", recall.ErrShapeMismatch, r, c)
	}
	if floor := float64(r) * e.config.MinActivity; floor > e.config.MemoryCapacity {
		return fmt.Errorf("%w: %d units at min_activity %g need %g, above memory_capacity %g",
			recall.ErrInvalidConfig, r, e.config.MinActivity, floor, e.config.MemoryCapacity)
	}

	initial := mat.NewDense(r, r, nil)
	initial.Scale(e.config.SemanticStrength, connectivity)
	for i := 0; i < r; i++ {
		initial.Set(i, i, DiagonalSentinel)
	}

	e.units = r
	e.initial = initial
	e.sigma = mat.NewDense(r, r, nil)
	e.probs = make([]float64, r+1)
	e.episode = recall.NewEpisode(r)
	e.Reset()
	return nil
}

// Reset restores the initial connections and activations and clears all
// recall and cycle bookkeeping.
func (e *Engine) Reset() {
	e.connections = mat.DenseCopyOf(e.initial)
	e.activations = mat.NewVecDense(e.units, nil)
	for i := 0; i < e.units; i++ {
		e.activations.SetVec(i, e.config.MinActivity)
	}
	e.preretrieval = mat.VecDenseCopyOf(e.activations)
	e.episode.Reset()
	e.cycleIndex = 0
}

// Experience processes reading cycles in order. Each cycle updates
// activations and then connections. Every index is checked before any state
// changes.
func (e *Engine) Experience(cycles [][]int) error {
	for i, cycle := range cycles {
		if err := recall.CheckUnits(cycle, e.units); err != nil {
			return fmt.Errorf("cycle %d: %w", e.cycleIndex+i, err)
		}
	}
	for _, cycle := range cycles {
		e.spread(cycle)
		e.learn(e.activations)
	}
	e.cycleIndex += len(cycles)
	return nil
}

// UpdateActivations applies one cycle of spreading, attention, clamping and
// capacity rescaling.
func (e *Engine) UpdateActivations(cycle []int) error {
	if err := recall.CheckUnits(cycle, e.units); err != nil {
		return err
	}
	e.spread(cycle)
	return nil
}

// UpdateConnections adds LearningRate * outer(a, a) to the connections and
// holds the diagonal at DiagonalSentinel.
func (e *Engine) UpdateConnections(activations mat.Vector) error {
	if activations.Len() != e.units {
		return fmt.Errorf("%w: activations have length %d, want %d", recall.ErrShapeMismatch, activations.Len(), e.units)
	}
	e.learn(activations)
	return nil
}

func (e *Engine) spread(cycle []int) {
	e.sigma.Apply(func(_, _ int, w float64) float64 {
		return math.Tanh(3*(w-1)) + 1
	}, e.connections)

	next := mat.NewVecDense(e.units, nil)
	next.MulVec(e.sigma, e.activations)
	next.ScaleVec(e.config.DecayRate, next)

	for _, u := range cycle {
		next.SetVec(u, e.config.MaxActivity)
	}

	var total float64
	for i := 0; i < e.units; i++ {
		v := math.Min(math.Max(next.AtVec(i), e.config.MinActivity), e.config.MaxActivity)
		next.SetVec(i, v)
		total += v
	}
	// Only the mass above the floor is rescaled, so entries stay at or above
	// MinActivity. With a zero floor this is plain proportional rescaling.
	if total > e.config.MemoryCapacity {
		floor := float64(e.units) * e.config.MinActivity
		scale := (e.config.MemoryCapacity - floor) / (total - floor)
		for i := 0; i < e.units; i++ {
			v := next.AtVec(i)
			next.SetVec(i, e.config.MinActivity+(v-e.config.MinActivity)*scale)
		}
	}

	e.activations = next
}

func (e *Engine) learn(a mat.Vector) {
	// Rank-one update connections += lr * a aᵀ.
	e.connections.RankOne(e.connections, e.config.LearningRate, a, a)
	for i := 0; i < e.units; i++ {
		e.connections.Set(i, i, DiagonalSentinel)
	}
}

// OutcomeProbabilities returns the distribution over {STOP, unit 1..N}
// given current activations and the recalls made so far.
func (e *Engine) OutcomeProbabilities() []float64 {
	e.probs = e.choice.OutcomeProbabilities(e.probs, e.activations.RawVector().Data, e.episode)
	out := make([]float64, len(e.probs))
	copy(out, e.probs)
	return out
}

func (e *Engine) begin() {
	if e.episode.Begin() {
		e.preretrieval = mat.VecDenseCopyOf(e.activations)
	}
}

func (e *Engine) stop() {
	e.episode.End()
	e.activations = mat.VecDenseCopyOf(e.preretrieval)
}

func (e *Engine) accept(unit int) error {
	if err := e.episode.Accept(unit); err != nil {
		return err
	}
	// Output interference: the recalled unit acts as a singleton cycle.
	e.spread([]int{unit})
	return nil
}

// FreeRecall samples recalls from src until steps more units have been
// recalled, a stop is drawn, or no unit remains. Pass recall.Unbounded for
// steps to run to termination. A drawn stop ends the episode and restores
// the activations held before it began. The sequence so far is returned.
func (e *Engine) FreeRecall(src recall.Source, steps int) ([]int, error) {
	e.begin()
	sampler := recall.NewSampler(src)

	target := e.episode.Target(steps)
	for e.episode.Total() < target {
		choice := sampler.Sample(e.OutcomeProbabilities())
		if choice == recall.Stop {
			e.stop()
			break
		}
		if err := e.accept(choice - 1); err != nil {
			return e.episode.Recalls(), err
		}
	}
	return e.episode.Recalls(), nil
}

// ForceRecall applies an externally chosen outcome: recall.Stop ends the
// episode and restores state, k > 0 recalls unit k-1, and recall.NoChoice
// only opens the episode.
func (e *Engine) ForceRecall(choice int) ([]int, error) {
	e.begin()
	switch {
	case choice == recall.NoChoice:
	case choice == recall.Stop:
		e.stop()
	case choice > 0:
		if err := e.accept(choice - 1); err != nil {
			return e.episode.Recalls(), err
		}
	default:
		return e.episode.Recalls(), fmt.Errorf("%w: forced choice %d", recall.ErrIndexOutOfRange, choice)
	}
	return e.episode.Recalls(), nil
}

// Units is the number of text units N.
func (e *Engine) Units() int { return e.units }

// CycleIndex is the number of cycles experienced since construction or reset.
func (e *Engine) CycleIndex() int { return e.cycleIndex }

// RecallTotal is the number of recalls in the current or last episode.
func (e *Engine) RecallTotal() int { return e.episode.Total() }

// Retrieving reports whether a recall episode is in progress.
func (e *Engine) Retrieving() bool { return e.episode.Retrieving() }

// Recalls returns the recall sequence of the current or last episode.
func (e *Engine) Recalls() []int { return e.episode.Recalls() }

// Config returns the engine's parameters.
func (e *Engine) Config() Config { return e.config }

// Activations returns a copy of the activation vector.
func (e *Engine) Activations() []float64 {
	return recall.Values(e.activations)
}

// Connections returns a copy of the connection matrix.
func (e *Engine) Connections() *mat.Dense {
	return mat.DenseCopyOf(e.connections)
}

// ConnectionStrengths returns each unit's mean connection to every other
// unit. The diagonal is excluded.
func (e *Engine) ConnectionStrengths() []float64 {
	out := make([]float64, e.units)
	if e.units < 2 {
		return out
	}
	for i := 0; i < e.units; i++ {
		var sum float64
		for j := 0; j < e.units; j++ {
			if i != j {
				sum += e.connections.At(i, j)
			}
		}
		out[i] = sum / float64(e.units-1)
	}
	return out
}
