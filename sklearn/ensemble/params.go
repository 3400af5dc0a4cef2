package ensemble

import (
	"math"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/sklearn/tree"
)

// Params are the hyperparameters shared by the gradient boosting estimators.
// Names follow scikit-learn; MaxDepth 0 means unlimited.
type Params struct {
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Subsample       float64
	RandomState     uint64
	NJobs           int
}

// DefaultParams mirrors scikit-learn's GradientBoosting defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Subsample:       1.0,
		NJobs:           1,
	}
}

// Option is a function that configures Params
type Option func(*Params)

// WithNEstimators sets the number of boosting stages
func WithNEstimators(n int) Option {
	return func(p *Params) { p.NEstimators = n }
}

// WithLearningRate sets the shrinkage applied to every stage
func WithLearningRate(lr float64) Option {
	return func(p *Params) { p.LearningRate = lr }
}

// WithMaxDepth sets the depth of the individual trees
func WithMaxDepth(depth int) Option {
	return func(p *Params) { p.MaxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split of the individual trees
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) { p.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of the individual trees
func WithMinSamplesLeaf(n int) Option {
	return func(p *Params) { p.MinSamplesLeaf = n }
}

// WithSubsample sets the fraction of rows drawn for every stage
func WithSubsample(fraction float64) Option {
	return func(p *Params) { p.Subsample = fraction }
}

// WithRandomState seeds row subsampling
func WithRandomState(seed uint64) Option {
	return func(p *Params) { p.RandomState = seed }
}

// WithNJobs sets the workers used by each tree's split search
func WithNJobs(n int) Option {
	return func(p *Params) { p.NJobs = n }
}

func (p *Params) validate() error {
	switch {
	case p.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	case !(p.LearningRate > 0) || math.IsInf(p.LearningRate, 0):
		return errors.NewValidationError("learning_rate", "must be a positive finite number", p.LearningRate)
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.MinSamplesLeaf)
	case !(p.Subsample > 0 && p.Subsample <= 1):
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	}
	return nil
}

func (p *Params) newTree() *tree.DecisionTreeRegressor {
	return tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(p.MaxDepth),
		tree.WithMinSamplesSplit(p.MinSamplesSplit),
		tree.WithMinSamplesLeaf(p.MinSamplesLeaf),
		tree.WithNJobs(p.NJobs),
	)
}

func (p *Params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.NEstimators,
		"learning_rate":     p.LearningRate,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"subsample":         p.Subsample,
		"random_state":      p.RandomState,
		"n_jobs":            p.NJobs,
	}
}

// setParam applies one scikit-learn named parameter. Numbers may arrive as
// any Go numeric type (YAML and JSON decode them differently).
func (p *Params) setParam(key string, value interface{}) (bool, error) {
	var err error
	switch key {
	case "n_estimators":
		p.NEstimators, err = toInt(key, value)
	case "learning_rate":
		p.LearningRate, err = toFloat(key, value)
	case "max_depth":
		p.MaxDepth, err = toInt(key, value)
	case "min_samples_split":
		p.MinSamplesSplit, err = toInt(key, value)
	case "min_samples_leaf":
		p.MinSamplesLeaf, err = toInt(key, value)
	case "subsample":
		p.Subsample, err = toFloat(key, value)
	case "random_state":
		var seed int
		seed, err = toInt(key, value)
		if err == nil && seed < 0 {
			err = errors.NewValidationError(key, "must be >= 0", value)
		}
		p.RandomState = uint64(seed)
	case "n_jobs":
		p.NJobs, err = toInt(key, value)
	default:
		return false, nil
	}
	return true, err
}

func toInt(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.NewValidationError(key, "must be an integer", value)
		}
		return int(v), nil
	case nil:
		if key == "max_depth" {
			return 0, nil
		}
	}
	return 0, errors.NewValidationError(key, "must be an integer", value)
}

func toFloat(key string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, errors.NewValidationError(key, "must be a number", value)
}
