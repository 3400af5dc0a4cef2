// Package amesprice trains a gradient-boosted regression model that predicts
// house sale prices on the Ames, Iowa housing data set.
//
// The module is split into a small scikit-learn style ML library and the
// training job built on top of it.
//
// # Library
//
//   - core/model: BaseEstimator, estimator interfaces and gob persistence
//   - sklearn/tree: CART regression trees
//   - sklearn/ensemble: GradientBoostingRegressor and GradientBoostingClassifier
//   - sklearn/model_selection: KFold, TrainTestSplit and CrossValidate
//   - sklearn/pipeline: Pipeline and Rebuild
//   - preprocessing: StandardScaler and TargetOrdinalEncoder
//   - metrics: MAE, MSE, R² and accuracy
//
// # Training job
//
//   - dataset: CSV loading, missing value policy and target-ordered encoding
//   - training: the load → clean → encode → split → cross-validate → fit →
//     evaluate → persist job, traced with OpenTelemetry
//   - tracking: metric sinks (log, JSON lines, Prometheus textfile, Redis)
//   - report: diagnostic plots
//   - config: YAML configuration
//
// # Quick Start
//
//	amestrain train --data-folder ./mnt --n-estimators 500 --max-depth 4 \
//	    --min-samples-split 2 --learning-rate 0.01
//
// writes outputs/gbr_500_4_2_0.01.gob and a JSON sidecar describing the
// encoders, parameters and metrics of the run.
//
// From Go:
//
//	gbr := ensemble.NewGradientBoostingRegressor(
//	    ensemble.WithNEstimators(500),
//	    ensemble.WithMaxDepth(4),
//	    ensemble.WithLearningRate(0.01),
//	)
//	if err := gbr.Fit(XTrain, yTrain); err != nil {
//	    return err
//	}
//	r2, err := gbr.Score(XTest, yTest)
package amesprice
