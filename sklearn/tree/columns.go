package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Columns is a column-major copy of a feature matrix with each column's
// row order presorted, so that growing many trees on the same rows (as
// boosting does) sorts every feature once.
type Columns struct {
	Values [][]float64
	Order  [][]int
	NRows  int
}

// NewColumns copies X into a Columns.
func NewColumns(X mat.Matrix) *Columns {
	r, c := X.Dims()
	cols := &Columns{
		Values: make([][]float64, c),
		Order:  make([][]int, c),
		NRows:  r,
	}
	for j := 0; j < c; j++ {
		values := mat.Col(nil, j, X)
		order := make([]int, r)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return values[order[a]] < values[order[b]]
		})
		cols.Values[j] = values
		cols.Order[j] = order
	}
	return cols
}

// NFeatures returns the number of columns.
func (c *Columns) NFeatures() int {
	return len(c.Values)
}
