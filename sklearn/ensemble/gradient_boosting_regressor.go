// Package ensemble implements gradient-boosted regression trees for
// regression (squared error) and binary classification (log-loss).
package ensemble

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/core/model"
	"github.com/YuminosukeSato/amesprice/metrics"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
)

// GradientBoostingRegressor はscikit-learn互換の勾配ブースティング回帰器
//
// 使用例:
//
//	gbr := ensemble.NewGradientBoostingRegressor(
//	    ensemble.WithNEstimators(500),
//	    ensemble.WithMaxDepth(4),
//	    ensemble.WithMinSamplesSplit(2),
//	    ensemble.WithLearningRate(0.01),
//	)
//	err := gbr.Fit(XTrain, yTrain)
//	pred, err := gbr.Predict(XTest)
type GradientBoostingRegressor struct {
	model.BaseEstimator
	Params
	Booster

	// Loss は "squared_error"（"ls" はその別名）
	Loss string

	logger log.Logger
}

// NewGradientBoostingRegressor は新しいGradientBoostingRegressorを作成する
func NewGradientBoostingRegressor(opts ...Option) *GradientBoostingRegressor {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &GradientBoostingRegressor{
		Params: p,
		Loss:   "squared_error",
		logger: log.GetLoggerWithName("GradientBoostingRegressor"),
	}
}

func (g *GradientBoostingRegressor) lossFunction() (lossFunction, error) {
	switch g.Loss {
	case "squared_error", "ls", "":
		return squaredError{}, nil
	default:
		return nil, errors.NewValidationError("loss", "must be squared_error (or ls)", g.Loss)
	}
}

// Fit はモデルを訓練データで学習させる
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation checked between stages.
func (g *GradientBoostingRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	if err := g.Params.validate(); err != nil {
		return err
	}
	loss, err := g.lossFunction()
	if err != nil {
		return err
	}
	target, err := columnValues("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	g.Reset()
	if err := g.Booster.fit(ctx, &g.Params, loss, X, target, g.logger); err != nil {
		return err
	}
	g.SetFitted()
	return nil
}

// Predict は入力データに対する予測を n×1 で返す
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	raw, err := g.rawPredict(X, g.LearningRate)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(len(raw), 1, raw), nil
}

// Score は決定係数（R²）を返す
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Matrix(y, pred)
}

// StagedLoss はステージごとの訓練損失（in-bag の平均二乗誤差）を返す
func (g *GradientBoostingRegressor) StagedLoss() []float64 {
	return append([]float64(nil), g.TrainScore...)
}

// FeatureImportances は不純度減少に基づく特徴量重要度を返す（合計1）
func (g *GradientBoostingRegressor) FeatureImportances() ([]float64, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "FeatureImportances")
	}
	return g.featureImportances(), nil
}

// GetParams はハイパーパラメータを scikit-learn の名前で返す
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	params := g.Params.getParams()
	params["loss"] = g.Loss
	return params
}

// SetParams はハイパーパラメータを設定する
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k == "loss" {
			s, ok := v.(string)
			if !ok {
				return errors.NewValidationError(k, "must be a string", v)
			}
			g.Loss = s
			continue
		}
		known, err := g.Params.setParam(k, v)
		if err != nil {
			return err
		}
		if !known {
			return errors.NewValidationError(k, "unknown parameter for GradientBoostingRegressor", v)
		}
	}
	return nil
}

// Clone は同じパラメータを持つ未学習のモデルを返す
func (g *GradientBoostingRegressor) Clone() interface{} {
	return &GradientBoostingRegressor{
		Params: g.Params,
		Loss:   g.Loss,
		logger: g.logger,
	}
}

// SetLogger replaces the logger used for progress output.
func (g *GradientBoostingRegressor) SetLogger(logger log.Logger) {
	g.logger = logger
}

func (g *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(loss=%s, n_estimators=%d, learning_rate=%g, max_depth=%d, min_samples_split=%d)",
		g.Loss, g.NEstimators, g.LearningRate, g.MaxDepth, g.MinSamplesSplit)
}
