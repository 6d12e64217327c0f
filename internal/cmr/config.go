package cmr

import "github.com/nvandessel/narrative-recall/internal/recall"

// Config holds the Context Maintenance and Retrieval parameters.
type Config struct {
	// EncodingDriftRate is the context drift per studied item. Range: [0, 1].
	EncodingDriftRate float64 `json:"encoding_drift_rate" yaml:"encoding_drift_rate"`

	// StartDriftRate is the drift toward the start-of-list context when
	// retrieval begins. Range: [0, 1].
	StartDriftRate float64 `json:"start_drift_rate" yaml:"start_drift_rate"`

	// RecallDriftRate is the context drift per recalled item. Range: [0, 1].
	RecallDriftRate float64 `json:"recall_drift_rate" yaml:"recall_drift_rate"`

	// SharedSupport is the pre-experimental context-to-item support between
	// different items.
	SharedSupport float64 `json:"shared_support" yaml:"shared_support"`

	// ItemSupport is the pre-experimental context-to-item support of an item
	// for itself.
	ItemSupport float64 `json:"item_support" yaml:"item_support"`

	// LearningRate scales item-to-context learning. Pre-experimental
	// item-to-context strength is 1 - LearningRate. Range: [0, 1].
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`

	// PrimacyScale and PrimacyDecay shape the learning-rate multiplier
	// PrimacyScale * exp(-PrimacyDecay * position) + 1.
	PrimacyScale float64 `json:"primacy_scale" yaml:"primacy_scale"`
	PrimacyDecay float64 `json:"primacy_decay" yaml:"primacy_decay"`

	// SemanticScale weights the item similarity matrix in retrieval cueing.
	// Zero disables the similarity contribution.
	SemanticScale float64 `json:"semantic_scale" yaml:"semantic_scale"`
}

// DefaultConfig returns parameters in the range typically fit to
// free-recall data.
func DefaultConfig() Config {
	return Config{
		EncodingDriftRate: 0.8,
		StartDriftRate:    0.5,
		RecallDriftRate:   0.8,
		SharedSupport:     0.05,
		ItemSupport:       0.5,
		LearningRate:      0.3,
		PrimacyScale:      1.0,
		PrimacyDecay:      0.1,
		SemanticScale:     0.0,
	}
}

// Validate checks every parameter against its accepted range.
func (c Config) Validate() error {
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"encoding_drift_rate", c.EncodingDriftRate},
		{"start_drift_rate", c.StartDriftRate},
		{"recall_drift_rate", c.RecallDriftRate},
		{"learning_rate", c.LearningRate},
	} {
		if err := recall.CheckUnit(p.name, p.v); err != nil {
			return err
		}
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"shared_support", c.SharedSupport},
		{"item_support", c.ItemSupport},
		{"primacy_scale", c.PrimacyScale},
		{"primacy_decay", c.PrimacyDecay},
		{"semantic_scale", c.SemanticScale},
	} {
		if err := recall.CheckNonNegative(p.name, p.v); err != nil {
			return err
		}
	}
	return nil
}
