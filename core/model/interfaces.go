package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns R² for regressors and accuracy for classifiers.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Scorer
}

// Classifier combines interfaces for binary classification models.
type Classifier interface {
	Estimator
	Scorer

	// PredictProba returns an n×2 matrix of class probabilities.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the class labels seen during fitting.
	Classes() []float64
}

// ProbaPredictor is implemented by models that return class probabilities.
type ProbaPredictor interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters keyed by their
	// scikit-learn names.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Cloner returns an unfitted copy with identical hyperparameters, the Go
// counterpart of sklearn.base.clone.
type Cloner interface {
	Clone() interface{}
}

// Clone clones v when it implements Cloner.
func Clone(v interface{}) (interface{}, bool) {
	c, ok := v.(Cloner)
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}
