package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// logLossEps は log(0) を避けるためのクリップ幅
const logLossEps = 1e-15

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix は n×1 行列の入力に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// ClassificationError は誤分類率 (1 - Accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// BinaryLogLoss は二値分類の対数損失を計算する。
// yPred は陽性クラスの確率で、[eps, 1-eps] にクリップされる。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		if t != 0 && t != 1 {
			return 0, errors.NewValueError("BinaryLogLoss", "labels must be 0 or 1")
		}
		p := math.Min(math.Max(yPred.AtVec(i), logLossEps), 1-logLossEps)
		sum += -(t*math.Log(p) + (1-t)*math.Log(1-p))
	}
	return sum / float64(n), nil
}
