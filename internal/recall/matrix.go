package recall

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SquareMatrix copies rows into a dense N×N matrix, rejecting ragged or
// non-square input.
func SquareMatrix(rows [][]float64) (*mat.Dense, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: connectivity matrix is empty", ErrShapeMismatch)
	}
	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), n)
		}
		data = append(data, row...)
	}
	return mat.NewDense(n, n, data), nil
}

// Rows copies a matrix into row slices.
func Rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Values copies a vector into a slice.
func Values(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// CheckUnits verifies every index lies in [0, n).
func CheckUnits(units []int, n int) error {
	for _, u := range units {
		if u < 0 || u >= n {
			return fmt.Errorf("%w: unit %d with %d units", ErrIndexOutOfRange, u, n)
		}
	}
	return nil
}
