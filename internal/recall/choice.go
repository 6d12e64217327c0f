// Package recall holds the retrieval machinery shared by the Landscape and
// CMR engines: the categorical sampler, the power-law choice rule with a
// growing stop probability, and per-episode recall bookkeeping.
package recall

import (
	"fmt"
	"math"
)

// Stop is the outcome index that ends a recall episode. Outcome k > 0
// selects unit k-1.
const Stop = 0

// NoChoice passed to a ForceRecall method only opens the episode.
const NoChoice = -1

// Unbounded passed as a step count recalls until a stop is drawn or every
// unit has been recalled.
const Unbounded = -1

// Epsilon keeps the stop probability below certainty while any unit is
// still unrecalled, and floors cue strengths in the CMR engine.
const Epsilon = 1e-6

// ChoiceConfig holds the retrieval parameters shared by both engines.
type ChoiceConfig struct {
	// StopProbabilityScale is the stop probability before the first recall.
	// Range: [0, 1].
	StopProbabilityScale float64 `json:"stop_probability_scale" yaml:"stop_probability_scale"`

	// StopProbabilityGrowth is the exponential growth of the stop probability
	// per accepted recall. Must be non-negative.
	StopProbabilityGrowth float64 `json:"stop_probability_growth" yaml:"stop_probability_growth"`

	// ChoiceSensitivity is the exponent of the power-law choice rule. Must be
	// positive.
	ChoiceSensitivity float64 `json:"choice_sensitivity" yaml:"choice_sensitivity"`
}

// DefaultChoiceConfig returns choice parameters that let a typical list
// produce several recalls before stopping.
func DefaultChoiceConfig() ChoiceConfig {
	return ChoiceConfig{
		StopProbabilityScale:  0.01,
		StopProbabilityGrowth: 0.3,
		ChoiceSensitivity:     1.0,
	}
}

// Validate checks every choice parameter against its accepted range.
func (c ChoiceConfig) Validate() error {
	if err := CheckFinite("stop_probability_scale", c.StopProbabilityScale); err != nil {
		return err
	}
	if c.StopProbabilityScale < 0 || c.StopProbabilityScale > 1 {
		return fmt.Errorf("%w: stop_probability_scale must be between 0 and 1, got %g", ErrInvalidConfig, c.StopProbabilityScale)
	}
	if err := CheckNonNegative("stop_probability_growth", c.StopProbabilityGrowth); err != nil {
		return err
	}
	if err := CheckFinite("choice_sensitivity", c.ChoiceSensitivity); err != nil {
		return err
	}
	if c.ChoiceSensitivity <= 0 {
		return fmt.Errorf("%w: choice_sensitivity must be positive, got %g", ErrInvalidConfig, c.ChoiceSensitivity)
	}
	return nil
}

// StopProbability returns min(scale * exp(growth * recallTotal), ceiling)
// where ceiling = 1 - remaining*Epsilon. A zero scale never stops, and a
// growth term that overflows saturates at the ceiling.
func (c ChoiceConfig) StopProbability(recallTotal, remaining int) float64 {
	ceiling := 1.0 - float64(remaining)*Epsilon
	if c.StopProbabilityScale == 0 {
		return 0
	}
	p := c.StopProbabilityScale * math.Exp(c.StopProbabilityGrowth*float64(recallTotal))
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return ceiling
	}
	return math.Min(p, ceiling)
}

// OutcomeProbabilities writes the distribution over {STOP, unit 1..N} into
// dst (length len(support)+1) and returns it.
//
// Recalled units get zero. The mass left after the stop probability is split
// across the others in proportion to support[i]^ChoiceSensitivity. Negative
// support counts as zero. When no unrecalled unit has positive support every
// item probability is zero, which the sampler resolves as STOP.
func (c ChoiceConfig) OutcomeProbabilities(dst, support []float64, ep *Episode) []float64 {
	n := len(support)
	if len(dst) != n+1 {
		dst = make([]float64, n+1)
	}

	remaining := n - ep.Total()
	dst[Stop] = c.StopProbability(ep.Total(), remaining)

	var total float64
	for i, s := range support {
		w := 0.0
		if s > 0 && !ep.Recalled(i) {
			w = math.Pow(s, c.ChoiceSensitivity)
		}
		dst[i+1] = w
		total += w
	}

	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		for i := 1; i <= n; i++ {
			dst[i] = 0
		}
		return dst
	}

	scale := (1 - dst[Stop]) / total
	for i := 1; i <= n; i++ {
		dst[i] *= scale
	}
	return dst
}

// CheckFinite rejects NaN and infinite parameter values.
func CheckFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite, got %g", ErrInvalidConfig, name, v)
	}
	return nil
}

// CheckNonNegative rejects negative or non-finite parameter values.
func CheckNonNegative(name string, v float64) error {
	if err := CheckFinite(name, v); err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %g", ErrInvalidConfig, name, v)
	}
	return nil
}

// CheckUnit rejects values outside [0, 1].
func CheckUnit(name string, v float64) error {
	if err := CheckFinite(name, v); err != nil {
		return err
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1, got %g", ErrInvalidConfig, name, v)
	}
	return nil
}
