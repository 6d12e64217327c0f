package landscape

import (
	"fmt"

	"github.com/nvandessel/narrative-recall/internal/recall"
)

// DiagonalSentinel is the value every self-connection is held at.
const DiagonalSentinel = 0.0

// Config holds the Landscape model parameters. Defaults follow Yeari and
// van den Broek (2016).
type Config struct {
	// DecayRate scales activation carried from one cycle to the next. Default: 0.1.
	DecayRate float64 `json:"decay_rate" yaml:"decay_rate"`

	// MemoryCapacity caps the summed activation after each cycle. Default: 5.0.
	MemoryCapacity float64 `json:"memory_capacity" yaml:"memory_capacity"`

	// LearningRate scales the Hebbian connection increment. Default: 0.9.
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`

	// SemanticStrength scales the initial connectivity. Default: 1.0.
	SemanticStrength float64 `json:"semantic_strength" yaml:"semantic_strength"`

	// MinActivity is the activation floor. Default: 0.0.
	MinActivity float64 `json:"min_activity" yaml:"min_activity"`

	// MaxActivity is the activation ceiling and the value attended units
	// receive. Default: 1.0.
	MaxActivity float64 `json:"max_activity" yaml:"max_activity"`
}

// DefaultConfig returns the default Landscape parameters.
func DefaultConfig() Config {
	return Config{
		DecayRate:        0.1,
		MemoryCapacity:   5.0,
		LearningRate:     0.9,
		SemanticStrength: 1.0,
		MinActivity:      0.0,
		MaxActivity:      1.0,
	}
}

// Validate checks every parameter against its accepted range.
func (c Config) Validate() error {
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"decay_rate", c.DecayRate},
		{"learning_rate", c.LearningRate},
		{"semantic_strength", c.SemanticStrength},
		{"min_activity", c.MinActivity},
	} {
		if err := recall.CheckNonNegative(p.name, p.v); err != nil {
			return err
		}
	}
	if err := recall.CheckFinite("memory_capacity", c.MemoryCapacity); err != nil {
		return err
	}
	if c.MemoryCapacity <= 0 {
		return fmt.Errorf("%w: memory_capacity must be positive, got %g", recall.ErrInvalidConfig, c.MemoryCapacity)
	}
	if err := recall.CheckFinite("max_activity", c.MaxActivity); err != nil {
		return err
	}
	if c.MaxActivity <= 0 {
		return fmt.Errorf("%w: max_activity must be positive, got %g", recall.ErrInvalidConfig, c.MaxActivity)
	}
	if c.MinActivity > c.MaxActivity {
		return fmt.Errorf("%w: min_activity %g exceeds max_activity %g", recall.ErrInvalidConfig, c.MinActivity, c.MaxActivity)
	}
	return nil
}
