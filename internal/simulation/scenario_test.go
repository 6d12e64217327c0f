package simulation

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nvandessel/narrative-recall/internal/recall"
)

func TestCyclesFromLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		want   [][]int
	}{
		{"empty", nil, nil},
		{"single unit", []int{0}, [][]int{{0}}},
		{"runs", []int{0, 0, 1, 2, 2}, [][]int{{0, 1}, {2}, {3, 4}}},
		{"starts above zero", []int{3, 3, 4}, [][]int{{0, 1}, {2}}},
		{"repeated label later", []int{0, 1, 0}, [][]int{{0}, {1}, {2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CyclesFromLabels(tt.labels)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CyclesFromLabels(%v) = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}
}

func TestLoadScenario_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.yaml")
	content := `
name: fisherman
connectivity:
  - [.nan, 0.5, 0.1]
  - [0.5, .nan, 0.2]
  - [0.1, 0.2, .nan]
labels: [0, 0, 1]
target: [2, 0]
trace_cycles: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	scn, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if scn.Name != "fisherman" || scn.Units() != 3 || !scn.TraceCycles {
		t.Errorf("unexpected scenario: %+v", scn)
	}
	if !math.IsNaN(scn.Connectivity[0][0]) {
		t.Errorf("diagonal = %v, want NaN", scn.Connectivity[0][0])
	}
	if want := [][]int{{0, 1}, {2}}; !reflect.DeepEqual(scn.Cycles, want) {
		t.Errorf("Cycles = %v, want %v", scn.Cycles, want)
	}
	if want := []int{0, 1, 2}; !reflect.DeepEqual(scn.Presentations(), want) {
		t.Errorf("Presentations = %v, want %v", scn.Presentations(), want)
	}

	sim, err := scn.SimilarityMatrix()
	if err != nil {
		t.Fatal(err)
	}
	if sim.At(1, 1) != 0 || sim.At(0, 1) != 0.5 {
		t.Errorf("similarity diagonal not zeroed: %v", recall.Rows(sim))
	}
}

func TestLoadScenario_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.json")
	content := `{"name": "json", "connectivity": [[0, 1], [1, 0]], "cycles": [[1], [0]]}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	scn, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if want := [][]int{{1}, {0}}; !reflect.DeepEqual(scn.Cycles, want) {
		t.Errorf("Cycles = %v, want %v", scn.Cycles, want)
	}
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name string
		scn  Scenario
		want error
	}{
		{"empty", Scenario{}, recall.ErrShapeMismatch},
		{"ragged", Scenario{Connectivity: [][]float64{{0, 1}, {1}}}, recall.ErrShapeMismatch},
		{"nan off diagonal", Scenario{Connectivity: [][]float64{{0, math.NaN()}, {1, 0}}}, recall.ErrShapeMismatch},
		{"cycle out of range", Scenario{Connectivity: [][]float64{{0, 1}, {1, 0}}, Cycles: [][]int{{0, 2}}}, recall.ErrIndexOutOfRange},
		{"target out of range", Scenario{Connectivity: [][]float64{{0, 1}, {1, 0}}, Target: []int{-1}}, recall.ErrIndexOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.scn.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	ok := Scenario{Connectivity: [][]float64{{math.NaN(), 1}, {1, math.NaN()}}, Cycles: [][]int{{0, 1}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("NaN diagonal should be accepted: %v", err)
	}
}

func TestLoadScenario_Errors(t *testing.T) {
	if _, err := LoadScenario("/nonexistent/story.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("connectivity: [[0, 1], [1]]\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(path); !errors.Is(err, recall.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}
