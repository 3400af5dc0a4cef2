package ensemble

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/core/model"
	"github.com/YuminosukeSato/amesprice/metrics"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
)

// GradientBoostingClassifier is binary gradient boosting on the log-loss.
// Any two distinct label values are accepted; ClassLabels[1] is the
// positive class.
type GradientBoostingClassifier struct {
	model.BaseEstimator
	Params
	Booster

	ClassLabels []float64

	logger log.Logger
}

// NewGradientBoostingClassifier creates a classifier with scikit-learn defaults.
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &GradientBoostingClassifier{
		Params: p,
		logger: log.GetLoggerWithName("GradientBoostingClassifier"),
	}
}

// Fit learns the ensemble. y must contain exactly two distinct labels.
func (c *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	return c.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation checked between stages.
func (c *GradientBoostingClassifier) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	if err := c.Params.validate(); err != nil {
		return err
	}
	labels, err := columnValues("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	classes := uniqueSorted(labels)
	if len(classes) != 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit",
			fmt.Sprintf("binary classification needs exactly 2 classes, got %d", len(classes)))
	}

	target := make([]float64, len(labels))
	for i, v := range labels {
		if v == classes[1] {
			target[i] = 1
		}
	}

	c.Reset()
	c.ClassLabels = classes
	if err := c.Booster.fit(ctx, &c.Params, binomialDeviance{}, X, target, c.logger); err != nil {
		return err
	}
	c.SetFitted()
	return nil
}

// DecisionFunction returns the raw log-odds of the positive class.
func (c *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "DecisionFunction")
	}
	return c.rawPredict(X, c.LearningRate)
}

// PredictProba returns an n×2 matrix of [P(class 0), P(class 1)].
func (c *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := c.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(raw), 2, nil)
	for i, r := range raw {
		p := sigmoid(r)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns the most probable label per row as n×1.
func (c *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	raw, err := c.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(raw), 1, nil)
	for i, r := range raw {
		label := c.ClassLabels[0]
		if r > 0 {
			label = c.ClassLabels[1]
		}
		out.Set(i, 0, label)
	}
	return out, nil
}

// Score returns the mean accuracy.
func (c *GradientBoostingClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the labels seen during fitting in ascending order.
func (c *GradientBoostingClassifier) Classes() []float64 {
	return append([]float64(nil), c.ClassLabels...)
}

// StagedLoss returns the in-bag mean log-loss after every stage.
func (c *GradientBoostingClassifier) StagedLoss() []float64 {
	return append([]float64(nil), c.TrainScore...)
}

// FeatureImportances returns impurity-based importances summing to 1.
func (c *GradientBoostingClassifier) FeatureImportances() ([]float64, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "FeatureImportances")
	}
	return c.featureImportances(), nil
}

// GetParams returns the hyperparameters by their scikit-learn names.
func (c *GradientBoostingClassifier) GetParams() map[string]interface{} {
	params := c.Params.getParams()
	params["loss"] = "log_loss"
	return params
}

// SetParams sets hyperparameters by their scikit-learn names.
func (c *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k == "loss" {
			if v != "log_loss" && v != "deviance" {
				return errors.NewValidationError(k, "only log_loss is supported", v)
			}
			continue
		}
		known, err := c.Params.setParam(k, v)
		if err != nil {
			return err
		}
		if !known {
			return errors.NewValidationError(k, "unknown parameter for GradientBoostingClassifier", v)
		}
	}
	return nil
}

// Clone returns an unfitted classifier with the same hyperparameters.
func (c *GradientBoostingClassifier) Clone() interface{} {
	return &GradientBoostingClassifier{Params: c.Params, logger: c.logger}
}

func (c *GradientBoostingClassifier) String() string {
	return fmt.Sprintf("GradientBoostingClassifier(n_estimators=%d, learning_rate=%g, max_depth=%d)",
		c.NEstimators, c.LearningRate, c.MaxDepth)
}

func uniqueSorted(values []float64) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
