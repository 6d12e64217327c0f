// Package cmr implements the Context Maintenance and Retrieval model with an
// optional semantic term. A unit-norm context vector drifts with every
// studied or recalled item; item-to-context (Mfc) and context-to-item (Mcf)
// associations are learned during study; recall is cued by passing the
// current context through Mcf, optionally blended with an item similarity
// matrix.
//
// Context has N+2 slots: slot 0 is the start-of-list token, slots 1..N
// belong to items, and slot N+1 is reserved for an end-of-list token.
package cmr

import (
	"fmt"
	"math"

	"github.com/nvandessel/narrative-recall/internal/recall"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Engine holds the context vector and associative matrices of one simulated
// participant. An Engine is not safe for concurrent use.
type Engine struct {
	config Config
	choice recall.ChoiceConfig
	items  int

	context      *mat.VecDense
	preretrieval *mat.VecDense
	startInput   *mat.VecDense
	mfc          *mat.Dense // items × (items+2)
	mcf          *mat.Dense // (items+2) × items
	similarities *mat.Dense // (items+2) × items, nil when unused

	primacy       []float64
	encodingIndex int
	episode       *recall.Episode
	probs         []float64
}

// New creates an engine for itemCount items studied over presentationCount
// presentations. similarities is an optional itemCount×itemCount matrix
// blended into retrieval cueing with weight SemanticScale; pass nil for
// plain CMR.
func New(itemCount, presentationCount int, similarities mat.Matrix, config Config, choice recall.ChoiceConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := choice.Validate(); err != nil {
		return nil, err
	}
	if itemCount <= 0 {
		return nil, fmt.Errorf("%w: item count must be positive, got %d", recall.ErrShapeMismatch, itemCount)
	}
	if presentationCount < 0 {
		return nil, fmt.Errorf("%w: presentation count must be non-negative, got %d", recall.ErrInvalidConfig, presentationCount)
	}

	e := &Engine{
		config:  config,
		choice:  choice,
		items:   itemCount,
		primacy: make([]float64, presentationCount),
		episode: recall.NewEpisode(itemCount),
		probs:   make([]float64, itemCount+1),
	}
	for i := range e.primacy {
		e.primacy[i] = config.PrimacyScale*math.Exp(-config.PrimacyDecay*float64(i)) + 1
	}

	if similarities != nil {
		r, c := similarities.Dims()
		if r != itemCount || c != itemCount {
			return nil, fmt.Errorf("%w: similarities are %dx%d, want %dx%d", recall.ErrShapeMismatch, r, c, itemCount, itemCount)
		}
		// Pad with zero rows for the start and end slots so the context can
		// probe it directly.
		e.similarities = mat.NewDense(itemCount+2, itemCount, nil)
		e.similarities.Slice(1, itemCount+1, 0, itemCount).(*mat.Dense).Copy(similarities)
	}

	e.startInput = mat.NewVecDense(itemCount+2, nil)
	e.startInput.SetVec(0, 1)

	e.Reset()
	return e, nil
}

// Reset restores pre-experimental context and associations and clears the
// encoding index and recall bookkeeping. Parameters are unchanged.
func (e *Engine) Reset() {
	n := e.items

	e.context = mat.NewVecDense(n+2, nil)
	e.context.SetVec(0, 1)
	e.preretrieval = mat.VecDenseCopyOf(e.context)

	e.mfc = mat.NewDense(n, n+2, nil)
	for i := 0; i < n; i++ {
		e.mfc.Set(i, i+1, 1-e.config.LearningRate)
	}

	e.mcf = mat.NewDense(n+2, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				e.mcf.Set(i+1, j, e.config.ItemSupport)
			} else {
				e.mcf.Set(i+1, j, e.config.SharedSupport)
			}
		}
	}

	e.encodingIndex = 0
	e.episode.Reset()
}

// Item returns the one-hot feature vector of item i.
func (e *Engine) Item(i int) (*mat.VecDense, error) {
	if i < 0 || i >= e.items {
		return nil, fmt.Errorf("%w: item %d with %d items", recall.ErrIndexOutOfRange, i, e.items)
	}
	v := mat.NewVecDense(e.items, nil)
	v.SetVec(i, 1)
	return v, nil
}

// StartInput returns the start-of-list contextual input.
func (e *Engine) StartInput() *mat.VecDense {
	return mat.VecDenseCopyOf(e.startInput)
}

// Experience encodes each representation in order. A length-N item vector
// drifts context with EncodingDriftRate and then updates
// Mfc += LearningRate * (c fᵀ)ᵀ and Mcf += primacy[k] * c fᵀ. A length-N+2
// contextual input (such as StartInput) only drifts context and is not
// counted as a presentation. Lengths and the presentation count are checked
// up front, and a failed update restores the state held before the call.
func (e *Engine) Experience(representations []mat.Vector) error {
	presentations := 0
	for k, f := range representations {
		switch f.Len() {
		case e.items:
			presentations++
		case e.items + 2:
		default:
			return fmt.Errorf("%w: representation %d has length %d, want %d or %d", recall.ErrShapeMismatch, k, f.Len(), e.items, e.items+2)
		}
	}
	if e.encodingIndex+presentations > len(e.primacy) {
		return fmt.Errorf("%w: %d presentations after %d exceed presentation count %d",
			recall.ErrIndexOutOfRange, presentations, e.encodingIndex, len(e.primacy))
	}

	context := mat.VecDenseCopyOf(e.context)
	mfc := mat.DenseCopyOf(e.mfc)
	mcf := mat.DenseCopyOf(e.mcf)
	index := e.encodingIndex
	if err := e.encode(representations); err != nil {
		e.context, e.mfc, e.mcf, e.encodingIndex = context, mfc, mcf, index
		return err
	}
	return nil
}

func (e *Engine) encode(representations []mat.Vector) error {
	for k, f := range representations {
		if f.Len() == e.items+2 {
			if err := e.UpdateContext(e.config.EncodingDriftRate, f); err != nil {
				return fmt.Errorf("representation %d: %w", k, err)
			}
			continue
		}
		if err := e.UpdateContext(e.config.EncodingDriftRate, f); err != nil {
			return fmt.Errorf("presentation %d: %w", e.encodingIndex, err)
		}
		e.mfc.RankOne(e.mfc, e.config.LearningRate, f, e.context)
		e.mcf.RankOne(e.mcf, e.primacy[e.encodingIndex], e.context, f)
		e.encodingIndex++
	}
	return nil
}

// Present encodes the listed items in order as one-hot vectors.
func (e *Engine) Present(items []int) error {
	if err := recall.CheckUnits(items, e.items); err != nil {
		return err
	}
	reps := make([]mat.Vector, len(items))
	for i, item := range items {
		reps[i], _ = e.Item(item)
	}
	return e.Experience(reps)
}

// UpdateContext drifts context toward an input. A length-N item vector is
// first mapped through Mfc; any input is normalized to unit length. The new
// context is rho*c + drift*input with rho chosen so the result has unit
// norm:
//
//	rho = sqrt(1 + drift²(⟨c,input⟩² - 1)) - drift⟨c,input⟩
func (e *Engine) UpdateContext(driftRate float64, input mat.Vector) error {
	var in *mat.VecDense
	switch input.Len() {
	case e.items:
		in = mat.NewVecDense(e.items+2, nil)
		in.MulVec(e.mfc.T(), input)
	case e.items + 2:
		in = mat.VecDenseCopyOf(input)
	default:
		return fmt.Errorf("%w: context input has length %d, want %d or %d", recall.ErrShapeMismatch, input.Len(), e.items, e.items+2)
	}

	norm := floats.Norm(in.RawVector().Data, 2)
	if norm == 0 || math.IsNaN(norm) {
		return recall.ErrZeroContextInput
	}
	in.ScaleVec(1/norm, in)

	dot := mat.Dot(e.context, in)
	radicand := 1 + driftRate*driftRate*(dot*dot-1)
	if radicand < 0 {
		radicand = 0
	}
	rho := math.Sqrt(radicand) - driftRate*dot

	next := mat.NewVecDense(e.items+2, nil)
	next.AddScaledVec(next, rho, e.context)
	next.AddScaledVec(next, driftRate, in)
	e.context = next
	return nil
}

// Activations returns the cue strength of every probe target plus a floor
// of recall.Epsilon. With useMfc the probe is an item vector and the result
// is its contextual input (length N+2). Otherwise the probe is a context
// vector and the result is item support (length N): probe·Mcf plus
// SemanticScale * probe·similarities when similarities are configured.
func (e *Engine) Activations(probe mat.Vector, useMfc bool) ([]float64, error) {
	var out *mat.VecDense
	if useMfc {
		if probe.Len() != e.items {
			return nil, fmt.Errorf("%w: item probe has length %d, want %d", recall.ErrShapeMismatch, probe.Len(), e.items)
		}
		out = mat.NewVecDense(e.items+2, nil)
		out.MulVec(e.mfc.T(), probe)
	} else {
		if probe.Len() != e.items+2 {
			return nil, fmt.Errorf("%w: context probe has length %d, want %d", recall.ErrShapeMismatch, probe.Len(), e.items+2)
		}
		out = mat.NewVecDense(e.items, nil)
		out.MulVec(e.mcf.T(), probe)
		if e.similarities != nil && e.config.SemanticScale != 0 {
			sem := mat.NewVecDense(e.items, nil)
			sem.MulVec(e.similarities.T(), probe)
			out.AddScaledVec(out, e.config.SemanticScale, sem)
		}
	}

	data := out.RawVector().Data
	floats.AddConst(recall.Epsilon, data)
	return data, nil
}

// OutcomeProbabilities returns the distribution over {STOP, item 1..N} cued
// by the current context.
func (e *Engine) OutcomeProbabilities() []float64 {
	support, _ := e.Activations(e.context, false)
	e.probs = e.choice.OutcomeProbabilities(e.probs, support, e.episode)
	out := make([]float64, len(e.probs))
	copy(out, e.probs)
	return out
}

func (e *Engine) begin() error {
	if e.episode.Retrieving() {
		return nil
	}
	snapshot := mat.VecDenseCopyOf(e.context)
	if err := e.UpdateContext(e.config.StartDriftRate, e.startInput); err != nil {
		return err
	}
	e.preretrieval = snapshot
	e.episode.Begin()
	return nil
}

func (e *Engine) stop() {
	e.episode.End()
	e.context = mat.VecDenseCopyOf(e.preretrieval)
}

func (e *Engine) accept(item int) error {
	f, err := e.Item(item)
	if err != nil {
		return err
	}
	if err := e.episode.Accept(item); err != nil {
		return err
	}
	return e.UpdateContext(e.config.RecallDriftRate, f)
}

// FreeRecall samples recalls from src until steps more items have been
// recalled, a stop is drawn, or no item remains. Pass recall.Unbounded for
// steps to run to termination. A new episode first reinstates start-of-list
// context with StartDriftRate; a drawn stop restores the context held
// before that reinstatement.
func (e *Engine) FreeRecall(src recall.Source, steps int) ([]int, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
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
// episode and restores context, k > 0 recalls item k-1, and recall.NoChoice
// only opens the episode.
func (e *Engine) ForceRecall(choice int) ([]int, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
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

// Items is the number of items N.
func (e *Engine) Items() int { return e.items }

// EncodingIndex is the number of item presentations encoded.
func (e *Engine) EncodingIndex() int { return e.encodingIndex }

// RecallTotal is the number of recalls in the current or last episode.
func (e *Engine) RecallTotal() int { return e.episode.Total() }

// Retrieving reports whether a recall episode is in progress.
func (e *Engine) Retrieving() bool { return e.episode.Retrieving() }

// Recalls returns the recall sequence of the current or last episode.
func (e *Engine) Recalls() []int { return e.episode.Recalls() }

// Config returns the engine's parameters.
func (e *Engine) Config() Config { return e.config }

// PrimacyWeighting returns the per-presentation learning multipliers.
func (e *Engine) PrimacyWeighting() []float64 {
	out := make([]float64, len(e.primacy))
	copy(out, e.primacy)
	return out
}

// Context returns a copy of the context vector.
func (e *Engine) Context() []float64 { return recall.Values(e.context) }

// Mfc returns a copy of the item-to-context matrix.
func (e *Engine) Mfc() *mat.Dense { return mat.DenseCopyOf(e.mfc) }

// Mcf returns a copy of the context-to-item matrix.
func (e *Engine) Mcf() *mat.Dense { return mat.DenseCopyOf(e.mcf) }
