package model_selection

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/sklearn/ensemble"
)

// meanRegressor は訓練データの平均を返すだけの推定器
type meanRegressor struct {
	mean    float64
	fitted  bool
	failOn  int // この件数で Fit が失敗する（0 なら失敗しない）
	panicOn int // この件数で Fit が panic する
}

func (m *meanRegressor) Fit(X, y mat.Matrix) error {
	n, _ := y.Dims()
	if m.failOn > 0 && n == m.failOn {
		return errors.New("boom")
	}
	if m.panicOn > 0 && n == m.panicOn {
		panic("mat: index out of range")
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += y.At(i, 0)
	}
	m.mean = sum / float64(n)
	m.fitted = true
	return nil
}

func (m *meanRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, m.mean)
	}
	return out, nil
}

func (m *meanRegressor) Clone() interface{} {
	return &meanRegressor{failOn: m.failOn, panicOn: m.panicOn}
}

func sequence(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		y.Set(i, 0, 2*float64(i)+1)
	}
	return X, y
}

func TestKFold_Split(t *testing.T) {
	X, _ := sequence(23)

	tests := []struct {
		name    string
		shuffle bool
	}{
		{"contiguous", false},
		{"shuffled", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kf := NewKFold(5, tt.shuffle, 42)
			folds, err := kf.Split(X)
			require.NoError(t, err)
			require.Len(t, folds, 5)

			seen := make(map[int]int)
			for i, f := range folds {
				want := 4
				if i < 3 {
					want = 5
				}
				assert.Len(t, f.TestIndices, want)
				assert.Len(t, f.TrainIndices, 23-want)

				inTest := make(map[int]bool)
				for _, idx := range f.TestIndices {
					inTest[idx] = true
					seen[idx]++
				}
				for _, idx := range f.TrainIndices {
					assert.False(t, inTest[idx], "index %d in both train and test", idx)
				}
			}
			// every sample is held out exactly once
			assert.Len(t, seen, 23)
			for idx, c := range seen {
				assert.Equal(t, 1, c, "index %d", idx)
			}
		})
	}
}

func TestKFold_ContiguousMatchesScikitLearn(t *testing.T) {
	X, _ := sequence(10)
	folds, err := NewKFold(3, false, 0).Split(X)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)
}

func TestKFold_ShuffleIsSeeded(t *testing.T) {
	X, _ := sequence(30)
	a, err := NewKFold(3, true, 7).Split(X)
	require.NoError(t, err)
	b, err := NewKFold(3, true, 7).Split(X)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKFold_Errors(t *testing.T) {
	X, _ := sequence(3)

	_, err := NewKFold(1, false, 0).Split(X)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = NewKFold(4, false, 0).Split(X)
	assert.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		testSize float64
		wantTest int
	}{
		{"ames ratio", 100, 0.4, 40},
		{"rounds test size up", 11, 0.4, 5},
		{"small", 2, 0.4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X, y := sequence(tt.n)
			XTrain, XTest, yTrain, yTest, err := TrainTestSplit(X, y, tt.testSize, 0)
			require.NoError(t, err)

			nTest, _ := XTest.Dims()
			nTrain, _ := XTrain.Dims()
			assert.Equal(t, tt.wantTest, nTest)
			assert.Equal(t, tt.n-tt.wantTest, nTrain)

			// rows stay paired with their targets
			for i := 0; i < nTrain; i++ {
				assert.Equal(t, 2*XTrain.At(i, 0)+1, yTrain.At(i, 0))
			}
			for i := 0; i < nTest; i++ {
				assert.Equal(t, 2*XTest.At(i, 0)+1, yTest.At(i, 0))
			}
		})
	}
}

func TestSplitIndices_Partition(t *testing.T) {
	X, y := sequence(50)
	train, test, err := SplitIndices(X, y, 0.4, 0)
	require.NoError(t, err)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	train2, test2, err := SplitIndices(X, y, 0.4, 0)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test3, err := SplitIndices(X, y, 0.4, 1)
	require.NoError(t, err)
	assert.NotEqual(t, test, test3)
}

func TestTrainTestSplit_Errors(t *testing.T) {
	X, y := sequence(10)

	for _, size := range []float64{0, 1, -0.2, 1.5, math.NaN()} {
		_, _, _, _, err := TrainTestSplit(X, y, size, 0)
		assert.Error(t, err, "test size %v", size)
	}

	one, oneY := sequence(1)
	_, _, _, _, err := TrainTestSplit(one, oneY, 0.4, 0)
	assert.Error(t, err)

	short := mat.NewDense(9, 1, nil)
	_, _, _, _, err = TrainTestSplit(X, short, 0.4, 0)
	var derr *errors.DimensionError
	assert.True(t, errors.As(err, &derr))
}

func TestCrossValidate_MeanRegressor(t *testing.T) {
	X, y := sequence(20)
	est := &meanRegressor{}

	res, err := CrossValidate(context.Background(), est, X, y, NewKFold(4, false, 0), nil, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"test_MAE", "test_R2", "train_MAE", "train_R2"}, res.Keys())
	assert.Len(t, res.FitTimes, 4)
	for _, key := range res.Keys() {
		assert.Len(t, res.Scores[key], 4)
	}

	// fold 0 holds out y = 1,3,5,7,9; train mean = mean(11..39 step 2) = 25
	assert.InDelta(t, 20.0, res.Scores["test_MAE"][0], 1e-12)

	mean, ok := res.Mean("train_R2")
	require.True(t, ok)
	assert.InDelta(t, 0.0, mean, 1e-12)

	_, ok = res.Mean("val_R2")
	assert.False(t, ok)

	// the original estimator is untouched
	assert.False(t, est.fitted)
}

func TestCrossValidate_FoldErrorPropagates(t *testing.T) {
	X, y := sequence(20)
	// train folds have 15 rows with 4 splits
	est := &meanRegressor{failOn: 15}

	_, err := CrossValidate(context.Background(), est, X, y, NewKFold(4, false, 0), nil, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fold 0 training failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestCrossValidate_FitPanicBecomesError(t *testing.T) {
	X, y := sequence(20)
	est := &meanRegressor{panicOn: 15}

	_, err := CrossValidate(context.Background(), est, X, y, NewKFold(4, false, 0), nil, 2)
	require.Error(t, err)
	var panicErr *errors.PanicError
	require.True(t, errors.As(err, &panicErr), "got %v", err)
	assert.Equal(t, "mat: index out of range", panicErr.PanicValue)
	assert.Contains(t, err.Error(), "training failed")
}

func TestCrossValidate_Cancelled(t *testing.T) {
	X, y := sequence(20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CrossValidate(ctx, &meanRegressor{}, X, y, NewKFold(4, false, 0), nil, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrossValidate_GradientBoosting(t *testing.T) {
	X, y := sequence(60)
	gbr := ensemble.NewGradientBoostingRegressor(
		ensemble.WithNEstimators(50),
		ensemble.WithMaxDepth(2),
		ensemble.WithLearningRate(0.2),
	)

	res, err := CrossValidate(context.Background(), gbr, X, y, NewKFold(5, true, 0), DefaultScorers(), -1)
	require.NoError(t, err)

	trainR2, _ := res.Mean("train_R2")
	testR2, _ := res.Mean("test_R2")
	assert.Greater(t, trainR2, 0.99)
	assert.Greater(t, testR2, 0.9)
	assert.False(t, gbr.IsFitted())
}
