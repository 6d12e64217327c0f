package simulation

import (
	"math"
	"testing"
)

// AssertNoRepeats asserts that no unit appears twice in a recall sequence.
func AssertNoRepeats(t *testing.T, res *Result) {
	t.Helper()
	seen := make(map[int]int, len(res.Recalls))
	for pos, item := range res.Recalls {
		if prev, ok := seen[item]; ok {
			t.Errorf("AssertNoRepeats: run %s: unit %d recalled at positions %d and %d", res.RunID, item, prev, pos)
		}
		seen[item] = pos
	}
}

// AssertRecallsInRange asserts that every recalled unit lies in [0, n).
func AssertRecallsInRange(t *testing.T, res *Result, n int) {
	t.Helper()
	for pos, item := range res.Recalls {
		if item < 0 || item >= n {
			t.Errorf("AssertRecallsInRange: run %s: position %d recalled unit %d outside [0, %d)", res.RunID, pos, item, n)
		}
	}
}

// AssertDistribution asserts that p is a probability vector: finite,
// non-negative and summing to one within tol.
func AssertDistribution(t *testing.T, p []float64, tol float64) {
	t.Helper()
	var sum float64
	for i, v := range p {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("AssertDistribution: p[%d] = %v", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > tol {
		t.Errorf("AssertDistribution: sum = %.12f, want 1", sum)
	}
}

// AssertUnitNorm asserts that v has Euclidean norm one within tol.
func AssertUnitNorm(t *testing.T, v []float64, tol float64) {
	t.Helper()
	var sq float64
	for _, x := range v {
		sq += x * x
	}
	if n := math.Sqrt(sq); math.Abs(n-1) > tol {
		t.Errorf("AssertUnitNorm: norm = %.12f, want 1", n)
	}
}

// AssertSymmetric asserts that a square matrix equals its transpose
// within tol.
func AssertSymmetric(t *testing.T, m [][]float64, tol float64) {
	t.Helper()
	for i := range m {
		for j := i + 1; j < len(m); j++ {
			if math.Abs(m[i][j]-m[j][i]) > tol {
				t.Errorf("AssertSymmetric: m[%d][%d] = %.12f, m[%d][%d] = %.12f", i, j, m[i][j], j, i, m[j][i])
			}
		}
	}
}

// AssertBounded asserts that every value lies in [lo, hi].
func AssertBounded(t *testing.T, v []float64, lo, hi float64) {
	t.Helper()
	for i, x := range v {
		if x < lo || x > hi {
			t.Errorf("AssertBounded: v[%d] = %.12f not in [%.4f, %.4f]", i, x, lo, hi)
		}
	}
}
