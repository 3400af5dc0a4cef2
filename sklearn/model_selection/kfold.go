// Package model_selection はデータ分割と交差検証を提供します。
package model_selection

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// Splitter は交差検証の分割器のインターフェース
type Splitter interface {
	Split(X mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// Fold は1つの分割の訓練・検証インデックス
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold は k-fold 交差検証の分割器
//
// Shuffle が false のときは scikit-learn の KFold と同じく連続したブロックで分割する。
// 先頭の n % k 個の fold が1件ずつ多くなる。
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold は新しいKFoldを作成する
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold.
func (kf *KFold) Split(X mat.Matrix) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	nSamples, _ := X.Dims()
	if nSamples < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		stop := current + testSize

		test := make([]int, testSize)
		copy(test, indices[current:stop])

		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[stop:]...)

		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current = stop
	}
	return folds, nil
}
