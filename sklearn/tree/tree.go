// Package tree implements a CART regression tree with the squared-error
// criterion, used directly and as the base learner of gradient boosting.
package tree

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/core/model"
	"github.com/YuminosukeSato/amesprice/core/parallel"
	"github.com/YuminosukeSato/amesprice/metrics"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// impurityEpsilon: nodes at or below this impurity are not split further.
const impurityEpsilon = 1e-12

// Node is one node of a fitted tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	NSamples  int
	Impurity  float64
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// DecisionTreeRegressor is a CART regressor: binary splits on
// feature <= threshold chosen to minimise the weighted squared error.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	// Hyperparameters
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	NJobs           int

	// Learned state
	Nodes       []Node
	NFeatures   int
	Importances []float64
}

// NewDecisionTreeRegressor creates a tree with scikit-learn defaults
// (unlimited depth, min_samples_split=2, min_samples_leaf=1).
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		NJobs:           1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeRegressor) validate() error {
	if t.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0 (0 means unlimited)", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", t.MinSamplesLeaf)
	}
	return nil
}

// Fit grows the tree on X (n×p) and y (n×1).
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	rows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != rows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", 1, yCols, 1)
	}

	all := make([]int, rows)
	for i := range all {
		all[i] = i
	}
	return t.FitColumns(NewColumns(X), mat.Col(nil, 0, y), all)
}

// FitColumns grows the tree on the given rows of presorted columns. Rows not
// listed do not influence splits or leaf values.
func (t *DecisionTreeRegressor) FitColumns(cols *Columns, y []float64, rows []int) error {
	if err := t.validate(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != cols.NRows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", cols.NRows, len(y), 0)
	}

	g := &grower{
		tree: t,
		cols: cols,
		y:    y,
		mark: make([]bool, cols.NRows),
	}
	t.Nodes = t.Nodes[:0]
	t.NFeatures = cols.NFeatures()
	g.grow(rows, 0)
	t.computeImportances()
	t.SetFitted()
	return nil
}

type grower struct {
	tree *DecisionTreeRegressor
	cols *Columns
	y    []float64
	mark []bool
}

type candidate struct {
	feature   int
	threshold float64
	proxy     float64
	valid     bool
}

func (g *grower) grow(rows []int, depth int) int {
	t := g.tree
	n := len(rows)

	var sum float64
	for _, r := range rows {
		sum += g.y[r]
	}
	mean := sum / float64(n)
	var sse float64
	for _, r := range rows {
		d := g.y[r] - mean
		sse += d * d
	}
	impurity := sse / float64(n)

	nodeIdx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    mean,
		NSamples: n,
		Impurity: impurity,
	})

	if (t.MaxDepth > 0 && depth >= t.MaxDepth) ||
		n < t.MinSamplesSplit ||
		n < 2*t.MinSamplesLeaf ||
		impurity <= impurityEpsilon {
		return nodeIdx
	}

	best := g.bestSplit(rows)
	if !best.valid {
		return nodeIdx
	}

	values := g.cols.Values[best.feature]
	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, r := range rows {
		if values[r] <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	t.Nodes[nodeIdx].Feature = best.feature
	t.Nodes[nodeIdx].Threshold = best.threshold

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	t.Nodes[nodeIdx].Left = l
	t.Nodes[nodeIdx].Right = r
	return nodeIdx
}

// 特徴量がこれ以下なら goroutine を起こさない
const minParallelFeatures = 4

// bestSplit searches every feature; ties go to the lowest feature index.
func (g *grower) bestSplit(rows []int) candidate {
	for _, r := range rows {
		g.mark[r] = true
	}
	defer func() {
		for _, r := range rows {
			g.mark[r] = false
		}
	}()

	nFeatures := g.cols.NFeatures()
	results := make([]candidate, nFeatures)
	search := func(start, end int) {
		for j := start; j < end; j++ {
			results[j] = g.bestSplitForFeature(j, len(rows))
		}
	}
	parallel.ParallelizeWithThreshold(nFeatures, minParallelFeatures, g.tree.NJobs, search)

	best := candidate{proxy: math.Inf(-1)}
	for _, c := range results {
		if c.valid && c.proxy > best.proxy {
			best = c
		}
	}
	return best
}

// bestSplitForFeature scans the node's rows in presorted order and maximises
// sumL²/nL + sumR²/nR, which is equivalent to minimising the children's SSE.
func (g *grower) bestSplitForFeature(feature, n int) candidate {
	values := g.cols.Values[feature]
	sorted := make([]int, 0, n)
	var total float64
	for _, r := range g.cols.Order[feature] {
		if g.mark[r] {
			sorted = append(sorted, r)
			total += g.y[r]
		}
	}

	best := candidate{feature: feature, proxy: math.Inf(-1)}
	minLeaf := g.tree.MinSamplesLeaf

	var sumLeft float64
	for i := 0; i < n-1; i++ {
		sumLeft += g.y[sorted[i]]
		nLeft := i + 1
		nRight := n - nLeft

		v, next := values[sorted[i]], values[sorted[i+1]]
		if v == next || nLeft < minLeaf || nRight < minLeaf {
			continue
		}

		sumRight := total - sumLeft
		proxy := sumLeft*sumLeft/float64(nLeft) + sumRight*sumRight/float64(nRight)
		if proxy > best.proxy {
			threshold := v + (next-v)/2
			if threshold == next || math.IsInf(threshold, 0) {
				threshold = v
			}
			best.proxy = proxy
			best.threshold = threshold
			best.valid = true
		}
	}
	return best
}

// computeImportances sets the normalised total impurity decrease per feature.
func (t *DecisionTreeRegressor) computeImportances() {
	imp := make([]float64, t.NFeatures)
	for i := range t.Nodes {
		node := &t.Nodes[i]
		if node.IsLeaf() {
			continue
		}
		l, r := &t.Nodes[node.Left], &t.Nodes[node.Right]
		imp[node.Feature] += float64(node.NSamples)*node.Impurity -
			float64(l.NSamples)*l.Impurity -
			float64(r.NSamples)*r.Impurity
	}

	var total float64
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	t.Importances = imp
}

func (t *DecisionTreeRegressor) checkInput(op string, X mat.Matrix) error {
	if !t.IsFitted() {
		return errors.NewNotFittedError("DecisionTreeRegressor", op)
	}
	if _, c := X.Dims(); c != t.NFeatures {
		return errors.NewDimensionError("DecisionTreeRegressor."+op, t.NFeatures, c, 1)
	}
	return nil
}

func (t *DecisionTreeRegressor) leafFor(X mat.Matrix, i int) int {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.IsLeaf() {
			return idx
		}
		if X.At(i, node.Feature) <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// Predict returns the leaf value for every row as an n×1 matrix.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.checkInput("Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, t.Nodes[t.leafFor(X, i)].Value)
	}
	return out, nil
}

// Apply returns the index of the leaf each row lands in.
func (t *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	if err := t.checkInput("Apply", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	leaves := make([]int, rows)
	for i := range leaves {
		leaves[i] = t.leafFor(X, i)
	}
	return leaves, nil
}

// ApplyColumns is Apply over presorted columns.
func (t *DecisionTreeRegressor) ApplyColumns(cols *Columns, rows []int) []int {
	leaves := make([]int, len(rows))
	for k, r := range rows {
		idx := 0
		for !t.Nodes[idx].IsLeaf() {
			node := &t.Nodes[idx]
			if cols.Values[node.Feature][r] <= node.Threshold {
				idx = node.Left
			} else {
				idx = node.Right
			}
		}
		leaves[k] = idx
	}
	return leaves
}

// SetLeafValue overrides the prediction of a leaf. Boosting losses other
// than squared error use it to install their own leaf estimates.
func (t *DecisionTreeRegressor) SetLeafValue(node int, value float64) error {
	if node < 0 || node >= len(t.Nodes) || !t.Nodes[node].IsLeaf() {
		return errors.NewValueError("DecisionTreeRegressor.SetLeafValue", fmt.Sprintf("node %d is not a leaf", node))
	}
	t.Nodes[node].Value = value
	return nil
}

// Score returns the R² of the prediction.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// Depth returns the depth of the fitted tree (a single leaf has depth 0).
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		n := &t.Nodes[idx]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// NLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) NLeaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// GetParams returns the hyperparameters by their scikit-learn names.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         "squared_error",
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"n_jobs":            t.NJobs,
	}
}

// Clone returns an unfitted tree with the same hyperparameters.
func (t *DecisionTreeRegressor) Clone() interface{} {
	return NewDecisionTreeRegressor(
		WithMaxDepth(t.MaxDepth),
		WithMinSamplesSplit(t.MinSamplesSplit),
		WithMinSamplesLeaf(t.MinSamplesLeaf),
		WithNJobs(t.NJobs),
	)
}
