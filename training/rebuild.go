package training

import (
	"context"
	"os"

	"github.com/YuminosukeSato/amesprice/dataset"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
	"github.com/YuminosukeSato/amesprice/preprocessing"
	"github.com/YuminosukeSato/amesprice/sklearn/ensemble"
	"github.com/YuminosukeSato/amesprice/sklearn/model_selection"
	"github.com/YuminosukeSato/amesprice/sklearn/pipeline"
)

// RebuildConfig は rebuild-pipeline の設定
type RebuildConfig struct {
	CSVPath      string
	Label        string
	TestSize     float64
	RandomState  uint64
	NEstimators  int
	MaxDepth     int
	LearningRate float64
}

// RebuildResult は参照 Pipeline と組み立て直した Pipeline の検証結果
type RebuildResult struct {
	Steps             []string
	Features          []string
	ReferenceAccuracy float64
	RebuiltAccuracy   float64
}

// ReferencePipeline は StandardScaler → GradientBoostingClassifier の未学習 Pipeline を返す
func ReferencePipeline(cfg RebuildConfig) (*pipeline.Pipeline, error) {
	return pipeline.New(
		pipeline.Step{Name: "StandardScaler", Estimator: preprocessing.NewStandardScalerDefault()},
		pipeline.Step{Name: "GradientBoostingClassifier", Estimator: ensemble.NewGradientBoostingClassifier(
			ensemble.WithNEstimators(cfg.NEstimators),
			ensemble.WithMaxDepth(cfg.MaxDepth),
			ensemble.WithLearningRate(cfg.LearningRate),
			ensemble.WithRandomState(cfg.RandomState),
		)},
	)
}

// RunRebuild は CSV の数値列で参照 Pipeline を学習し、そのステップから Pipeline を組み立て直して
// 同じ訓練データで学習し直す。両方の検証データでの正解率を返す。
func RunRebuild(ctx context.Context, cfg RebuildConfig, logger log.Logger) (*RebuildResult, error) {
	if logger == nil {
		logger = log.GetLoggerWithName("training.rebuild")
	}
	if cfg.Label == "" {
		return nil, errors.NewValidationError("label", "must not be empty", cfg.Label)
	}

	f, err := os.Open(cfg.CSVPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.CSVPath)
	}
	defer f.Close()

	df, err := dataset.ReadCSV(f, dataset.Schema{})
	if err != nil {
		return nil, err
	}
	if df, err = dataset.DropMissing(df); err != nil {
		return nil, err
	}

	features := dataset.NumericColumns(df, cfg.Label)
	X, err := dataset.ToMatrix(df, features)
	if err != nil {
		return nil, err
	}
	y, err := dataset.Target(df, cfg.Label)
	if err != nil {
		return nil, err
	}
	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(X, y, cfg.TestSize, cfg.RandomState)
	if err != nil {
		return nil, err
	}

	reference, err := ReferencePipeline(cfg)
	if err != nil {
		return nil, err
	}
	if err := reference.FitContext(ctx, XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "fit reference pipeline")
	}
	refAcc, err := reference.Score(XTest, yTest)
	if err != nil {
		return nil, err
	}

	rebuilt, err := pipeline.Rebuild(reference)
	if err != nil {
		return nil, err
	}
	if err := rebuilt.FitContext(ctx, XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "fit rebuilt pipeline")
	}
	acc, err := rebuilt.Score(XTest, yTest)
	if err != nil {
		return nil, err
	}

	res := &RebuildResult{
		Features:          features,
		ReferenceAccuracy: refAcc,
		RebuiltAccuracy:   acc,
	}
	for _, s := range rebuilt.Steps {
		res.Steps = append(res.Steps, s.Name)
	}
	logger.Info("pipeline rebuilt",
		"steps", res.Steps,
		log.FeaturesKey, len(features),
		log.AccuracyKey, acc,
	)
	return res, nil
}
