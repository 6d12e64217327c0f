package recall

import (
	"errors"
	"math"
	"testing"
)

func TestChoiceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ChoiceConfig)
		wantErr bool
	}{
		{"defaults", func(c *ChoiceConfig) {}, false},
		{"scale at one", func(c *ChoiceConfig) { c.StopProbabilityScale = 1 }, false},
		{"scale above one", func(c *ChoiceConfig) { c.StopProbabilityScale = 1.1 }, true},
		{"negative scale", func(c *ChoiceConfig) { c.StopProbabilityScale = -0.1 }, true},
		{"negative growth", func(c *ChoiceConfig) { c.StopProbabilityGrowth = -1 }, true},
		{"zero sensitivity", func(c *ChoiceConfig) { c.ChoiceSensitivity = 0 }, true},
		{"NaN sensitivity", func(c *ChoiceConfig) { c.ChoiceSensitivity = math.NaN() }, true},
		{"infinite growth", func(c *ChoiceConfig) { c.StopProbabilityGrowth = math.Inf(1) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultChoiceConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestStopProbability(t *testing.T) {
	cfg := ChoiceConfig{StopProbabilityScale: 0.1, StopProbabilityGrowth: 0.5, ChoiceSensitivity: 1}

	if got, want := cfg.StopProbability(0, 10), 0.1; math.Abs(got-want) > 1e-12 {
		t.Errorf("StopProbability(0) = %v, want %v", got, want)
	}
	if got, want := cfg.StopProbability(2, 8), 0.1*math.Exp(1.0); math.Abs(got-want) > 1e-12 {
		t.Errorf("StopProbability(2) = %v, want %v", got, want)
	}

	// Saturates just below certainty.
	cfg.StopProbabilityScale = 1
	if got, want := cfg.StopProbability(0, 3), 1-3*Epsilon; got != want {
		t.Errorf("saturated StopProbability = %v, want %v", got, want)
	}
}

func TestOutcomeProbabilities(t *testing.T) {
	cfg := ChoiceConfig{StopProbabilityScale: 0.2, StopProbabilityGrowth: 0, ChoiceSensitivity: 2}
	ep := NewEpisode(3)
	ep.Begin()

	p := cfg.OutcomeProbabilities(nil, []float64{1, 2, 1}, ep)
	if len(p) != 4 {
		t.Fatalf("len = %d, want 4", len(p))
	}
	if math.Abs(p[0]-0.2) > 1e-12 {
		t.Errorf("stop = %v, want 0.2", p[0])
	}
	// Weights 1, 4, 1 over remaining mass 0.8.
	want := []float64{0.2, 0.8 / 6, 0.8 * 4 / 6, 0.8 / 6}
	for i := range want {
		if math.Abs(p[i]-want[i]) > 1e-12 {
			t.Errorf("p[%d] = %v, want %v", i, p[i], want[i])
		}
	}

	if err := ep.Accept(1); err != nil {
		t.Fatal(err)
	}
	p = cfg.OutcomeProbabilities(p, []float64{1, 2, 1}, ep)
	if p[2] != 0 {
		t.Errorf("recalled unit has probability %v", p[2])
	}
	if math.Abs(p[1]-0.4) > 1e-12 || math.Abs(p[3]-0.4) > 1e-12 {
		t.Errorf("remaining mass not split evenly: %v", p)
	}
}

func TestOutcomeProbabilities_AllZeroSupport(t *testing.T) {
	cfg := DefaultChoiceConfig()
	ep := NewEpisode(2)
	ep.Begin()

	p := cfg.OutcomeProbabilities(nil, []float64{0, -1}, ep)
	if p[1] != 0 || p[2] != 0 {
		t.Fatalf("expected zero item probabilities, got %v", p)
	}
	if got := Choose(p, 0.99); got != Stop {
		t.Errorf("Choose on zero support = %d, want Stop", got)
	}
}

func TestStopProbability_Overflow(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
		want  float64
	}{
		{"zero scale never stops", 0, 0},
		{"positive scale saturates", 0.01, 1 - 2*Epsilon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ChoiceConfig{StopProbabilityScale: tt.scale, StopProbabilityGrowth: 1000, ChoiceSensitivity: 1}
			if got := cfg.StopProbability(1, 2); got != tt.want {
				t.Errorf("StopProbability = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutcomeProbabilities_ZeroScaleLargeGrowth(t *testing.T) {
	cfg := ChoiceConfig{StopProbabilityScale: 0, StopProbabilityGrowth: 1000, ChoiceSensitivity: 1}
	ep := NewEpisode(3)
	ep.Begin()
	if err := ep.Accept(0); err != nil {
		t.Fatal(err)
	}

	p := cfg.OutcomeProbabilities(nil, []float64{1, 1, 1}, ep)
	want := []float64{0, 0, 0.5, 0.5}
	for i := range want {
		if math.IsNaN(p[i]) || math.Abs(p[i]-want[i]) > 1e-12 {
			t.Errorf("p[%d] = %v, want %v", i, p[i], want[i])
		}
	}
	if got := Choose(p, 0.5); got == Stop {
		t.Errorf("Choose = Stop with zero stop probability")
	}
}
