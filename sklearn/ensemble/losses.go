package ensemble

import (
	"math"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/sklearn/tree"
)

// probEps bounds probabilities away from 0 and 1 before taking log-odds.
const probEps = 1e-15

// lossFunction is the part of boosting that depends on the loss.
type lossFunction interface {
	name() string
	// initRaw is the constant raw prediction before the first stage.
	initRaw(y []float64) float64
	// negativeGradient writes the pseudo-residuals into out.
	negativeGradient(y, raw, out []float64)
	// updateLeaves replaces leaf values of a tree fitted on the residuals.
	updateLeaves(t *tree.DecisionTreeRegressor, leaves, rows []int, y, raw, residual []float64) error
	// loss is the mean loss over rows.
	loss(y, raw []float64, rows []int) float64
}

// squaredError is the least-squares loss. The tree's leaf means of the
// residuals are already optimal, so leaves are left untouched.
type squaredError struct{}

func (squaredError) name() string { return "squared_error" }

func (squaredError) initRaw(y []float64) float64 {
	var sum float64
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}

func (squaredError) negativeGradient(y, raw, out []float64) {
	for i := range y {
		out[i] = y[i] - raw[i]
	}
}

func (squaredError) updateLeaves(*tree.DecisionTreeRegressor, []int, []int, []float64, []float64, []float64) error {
	return nil
}

func (squaredError) loss(y, raw []float64, rows []int) float64 {
	var sum float64
	for _, i := range rows {
		d := y[i] - raw[i]
		sum += d * d
	}
	return sum / float64(len(rows))
}

// binomialDeviance is the binary log-loss on raw log-odds, y in {0, 1}.
type binomialDeviance struct{}

func (binomialDeviance) name() string { return "log_loss" }

func (binomialDeviance) initRaw(y []float64) float64 {
	var pos float64
	for _, v := range y {
		pos += v
	}
	// 片方のクラスしかない部分集合でも有限の log-odds にする
	p := errors.ClipValue(pos/float64(len(y)), probEps, 1-probEps)
	return math.Log(p / (1 - p))
}

func (binomialDeviance) negativeGradient(y, raw, out []float64) {
	for i := range y {
		out[i] = y[i] - sigmoid(raw[i])
	}
}

// updateLeaves sets each leaf to one Newton step:
// sum(residual) / sum(p * (1 - p)) over the leaf's in-bag rows.
func (binomialDeviance) updateLeaves(t *tree.DecisionTreeRegressor, leaves, rows []int, y, raw, residual []float64) error {
	numerator := make(map[int]float64)
	denominator := make(map[int]float64)
	for k, i := range rows {
		leaf := leaves[k]
		p := y[i] - residual[i]
		numerator[leaf] += residual[i]
		denominator[leaf] += p * (1 - p)
	}
	for leaf, num := range numerator {
		value := 0.0
		if den := denominator[leaf]; math.Abs(den) >= 1e-150 {
			value = num / den
		}
		if err := t.SetLeafValue(leaf, value); err != nil {
			return err
		}
	}
	return nil
}

func (binomialDeviance) loss(y, raw []float64, rows []int) float64 {
	var sum float64
	for _, i := range rows {
		sum += softplus(raw[i]) - y[i]*raw[i]
	}
	return sum / float64(len(rows))
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// softplus is log(1 + exp(x)) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
