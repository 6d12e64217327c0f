package simulation

import (
	"fmt"
	"math"
	"os"

	"github.com/nvandessel/narrative-recall/internal/recall"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Scenario defines one narrative to encode and recall.
type Scenario struct {
	Name string `json:"name" yaml:"name"`

	// Connectivity is the N×N pre-experimental unit similarity matrix.
	// Diagonal entries are ignored and may be NaN.
	Connectivity [][]float64 `json:"connectivity" yaml:"connectivity"`

	// Cycles lists the units co-active in each reading cycle, in study order.
	Cycles [][]int `json:"cycles" yaml:"cycles"`

	// Labels is an alternative to Cycles: the reading-cycle label of every
	// unit. It is converted with CyclesFromLabels when Cycles is empty.
	Labels []int `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Target is an observed recall sequence used by Replay.
	Target []int `json:"target,omitempty" yaml:"target,omitempty"`

	// TraceCycles records a snapshot after every encoded cycle.
	TraceCycles bool `json:"trace_cycles,omitempty" yaml:"trace_cycles,omitempty"`
}

// LoadScenario reads a scenario from a YAML or JSON file and validates it.
func LoadScenario(path string) (Scenario, error) {
	var scn Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return scn, fmt.Errorf("reading scenario: %w", err)
	}
	// JSON is a subset of YAML, so one decoder handles both.
	if err := yaml.Unmarshal(data, &scn); err != nil {
		return scn, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if len(scn.Cycles) == 0 && len(scn.Labels) > 0 {
		scn.Cycles = CyclesFromLabels(scn.Labels)
	}
	if err := scn.Validate(); err != nil {
		return scn, fmt.Errorf("scenario %s: %w", path, err)
	}
	return scn, nil
}

// Units is the number of units N.
func (s Scenario) Units() int { return len(s.Connectivity) }

// Validate checks that connectivity is square with finite off-diagonal
// entries and that every cycle and target index names a unit.
func (s Scenario) Validate() error {
	if _, err := recall.SquareMatrix(s.Connectivity); err != nil {
		return err
	}
	n := s.Units()
	for i, row := range s.Connectivity {
		for j, v := range row {
			if i != j && (math.IsNaN(v) || math.IsInf(v, 0)) {
				return fmt.Errorf("%w: connectivity[%d][%d] is %g", recall.ErrShapeMismatch, i, j, v)
			}
		}
	}
	for k, cycle := range s.Cycles {
		if err := recall.CheckUnits(cycle, n); err != nil {
			return fmt.Errorf("cycle %d: %w", k, err)
		}
	}
	if err := recall.CheckUnits(s.Target, n); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	return nil
}

// ConnectivityMatrix returns the connectivity as a dense matrix.
func (s Scenario) ConnectivityMatrix() (*mat.Dense, error) {
	return recall.SquareMatrix(s.Connectivity)
}

// SimilarityMatrix returns the connectivity with its diagonal zeroed, for
// use as a semantic similarity matrix.
func (s Scenario) SimilarityMatrix() (*mat.Dense, error) {
	m, err := s.ConnectivityMatrix()
	if err != nil {
		return nil, err
	}
	for i := 0; i < s.Units(); i++ {
		m.Set(i, i, 0)
	}
	return m, nil
}

// Presentations flattens the cycles into a study order.
func (s Scenario) Presentations() []int {
	var out []int
	for _, cycle := range s.Cycles {
		out = append(out, cycle...)
	}
	return out
}
