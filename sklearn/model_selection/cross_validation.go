package model_selection

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/amesprice/core/model"
	"github.com/YuminosukeSato/amesprice/core/parallel"
	"github.com/YuminosukeSato/amesprice/metrics"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
)

// ScoreFunc は正解値と予測値（どちらも n×1）からスコアを計算する
type ScoreFunc func(yTrue, yPred mat.Matrix) (float64, error)

// DefaultScorers は回帰用の既定スコアラー（"MAE" と "R2"）を返す
func DefaultScorers() map[string]ScoreFunc {
	return map[string]ScoreFunc{
		"MAE": metrics.MAEMatrix,
		"R2":  metrics.R2Matrix,
	}
}

// ContextFitter は途中キャンセル可能な学習を持つモデル
type ContextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// CVResult は交差検証の fold ごとの結果
//
// Scores のキーは "train_<name>" と "test_<name>"。
type CVResult struct {
	Scores     map[string][]float64
	FitTimes   []float64 // seconds
	ScoreTimes []float64 // seconds
}

// Mean は key の fold 平均を返す。key が無ければ false。
func (r *CVResult) Mean(key string) (float64, bool) {
	s, ok := r.Scores[key]
	if !ok || len(s) == 0 {
		return 0, false
	}
	return stat.Mean(s, nil), true
}

// Std は key の標本標準偏差を返す
func (r *CVResult) Std(key string) (float64, bool) {
	s, ok := r.Scores[key]
	if !ok || len(s) == 0 {
		return 0, false
	}
	if len(s) == 1 {
		return 0, true
	}
	return stat.StdDev(s, nil), true
}

// Keys returns the score keys in sorted order.
func (r *CVResult) Keys() []string {
	keys := make([]string, 0, len(r.Scores))
	for k := range r.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CrossValidate は cv の各 fold で estimator の複製を学習し、訓練側と検証側のスコアを返す。
// fold は最大 nJobs 並列で実行される（-1 は全CPU）。estimator 自身は変更されない。
func CrossValidate(ctx context.Context, estimator model.Estimator, X, y mat.Matrix, cv Splitter,
	scorers map[string]ScoreFunc, nJobs int) (*CVResult, error) {
	if len(scorers) == 0 {
		scorers = DefaultScorers()
	}
	if _, ok := estimator.(model.Cloner); !ok {
		return nil, errors.NewValidationError("estimator", "must implement Clone() for cross-validation", estimator)
	}
	nX, _ := X.Dims()
	nY, _ := y.Dims()
	if nX != nY {
		return nil, errors.NewDimensionError("CrossValidate", nX, nY, 0)
	}

	folds, err := cv.Split(X)
	if err != nil {
		return nil, err
	}
	nFolds := len(folds)

	result := &CVResult{
		Scores:     make(map[string][]float64, 2*len(scorers)),
		FitTimes:   make([]float64, nFolds),
		ScoreTimes: make([]float64, nFolds),
	}
	for name := range scorers {
		result.Scores["train_"+name] = make([]float64, nFolds)
		result.Scores["test_"+name] = make([]float64, nFolds)
	}

	logger := log.GetLoggerWithName("CrossValidate")
	logger.Debug("cross-validation started",
		"folds", nFolds,
		log.SamplesKey, nX,
		log.WorkersKey, parallel.Workers(nJobs, nFolds),
	)

	err = parallel.ForEach(ctx, nFolds, nJobs, func(ctx context.Context, idx int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fold := folds[idx]
		cloned, _ := model.Clone(estimator)
		est, ok := cloned.(model.Estimator)
		if !ok {
			return errors.NewValidationError("estimator", "Clone() did not return an Estimator", cloned)
		}

		trainX, trainY := extractSubset(X, y, fold.TrainIndices)
		testX, testY := extractSubset(X, y, fold.TestIndices)

		start := time.Now()
		// 推定器の panic でワーカーごと落ちないよう fold のエラーにする
		err := errors.SafeExecute("CrossValidate.fit", func() error {
			if cf, ok := est.(ContextFitter); ok {
				return cf.FitContext(ctx, trainX, trainY)
			}
			return est.Fit(trainX, trainY)
		})
		if err != nil {
			return errors.Wrapf(err, "fold %d training failed", idx)
		}
		result.FitTimes[idx] = time.Since(start).Seconds()

		start = time.Now()
		trainPred, err := est.Predict(trainX)
		if err != nil {
			return errors.Wrapf(err, "fold %d train prediction failed", idx)
		}
		testPred, err := est.Predict(testX)
		if err != nil {
			return errors.Wrapf(err, "fold %d test prediction failed", idx)
		}
		for name, score := range scorers {
			tr, err := score(trainY, trainPred)
			if err != nil {
				return errors.Wrapf(err, "fold %d scorer %s", idx, name)
			}
			te, err := score(testY, testPred)
			if err != nil {
				return errors.Wrapf(err, "fold %d scorer %s", idx, name)
			}
			// 各 fold は自分のインデックスにだけ書き込む
			result.Scores["train_"+name][idx] = tr
			result.Scores["test_"+name][idx] = te
		}
		result.ScoreTimes[idx] = time.Since(start).Seconds()

		logger.Debug("fold finished",
			log.FoldKey, idx,
			log.DurationMsKey, result.FitTimes[idx]*1000,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
