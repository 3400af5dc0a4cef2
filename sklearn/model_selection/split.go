package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// TrainTestSplit は行をシャッフルして訓練用と検証用に分割する。
// 検証側の件数は ceil(testSize * n)。同じ seed なら常に同じ分割になる。
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed uint64) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	trainIdx, testIdx, err := SplitIndices(X, y, testSize, seed)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	XTrain, yTrain = extractSubset(X, y, trainIdx)
	XTest, yTest = extractSubset(X, y, testIdx)
	return XTrain, XTest, yTrain, yTest, nil
}

// SplitIndices は TrainTestSplit と同じ分割をインデックスで返す。
func SplitIndices(X, y mat.Matrix, testSize float64, seed uint64) (train, test []int, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewValidationError("test_size", "must be in the open interval (0, 1)", testSize)
	}
	n, _ := X.Dims()
	if y != nil {
		if ny, _ := y.Dims(); ny != n {
			return nil, nil, errors.NewDimensionError("TrainTestSplit", n, ny, 0)
		}
	}
	if n < 2 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "need at least 2 samples to split")
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return nil, nil, errors.NewValueError("TrainTestSplit", "resulting train set would be empty")
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// extractSubset は indices の順に X と y の行を取り出す。y が nil なら yOut も nil。
func extractSubset(X, y mat.Matrix, indices []int) (xOut, yOut *mat.Dense) {
	_, xCols := X.Dims()
	xOut = mat.NewDense(len(indices), xCols, nil)
	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xOut.Set(i, j, X.At(idx, j))
		}
	}
	if y == nil {
		return xOut, nil
	}
	_, yCols := y.Dims()
	yOut = mat.NewDense(len(indices), yCols, nil)
	for i, idx := range indices {
		for j := 0; j < yCols; j++ {
			yOut.Set(i, j, y.At(idx, j))
		}
	}
	return xOut, yOut
}
