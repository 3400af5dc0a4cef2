package ensemble

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
	"github.com/YuminosukeSato/amesprice/sklearn/tree"
)

// Booster is the fitted additive model: raw(x) = Init + lr * Σ tree_m(x).
type Booster struct {
	Init       float64
	Trees      []*tree.DecisionTreeRegressor
	TrainScore []float64
	NFeatures  int
}

// fit runs the boosting stages. y is the target already mapped for the loss.
func (b *Booster) fit(ctx context.Context, p *Params, loss lossFunction, X mat.Matrix, y []float64, logger log.Logger) error {
	start := time.Now()
	cols := tree.NewColumns(X)
	n := cols.NRows

	b.NFeatures = cols.NFeatures()
	b.Init = loss.initRaw(y)
	if err := errors.CheckScalar(loss.name()+".init", b.Init, 0); err != nil {
		return err
	}
	b.Trees = make([]*tree.DecisionTreeRegressor, 0, p.NEstimators)
	b.TrainScore = make([]float64, 0, p.NEstimators)

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = b.Init
	}
	residual := make([]float64, n)

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	nInBag := max(1, int(p.Subsample*float64(n)))
	rng := rand.New(rand.NewPCG(p.RandomState, p.RandomState))

	for stage := 0; stage < p.NEstimators; stage++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "boosting stopped at stage %d", stage)
		}

		rows := all
		if nInBag < n {
			rows = rng.Perm(n)[:nInBag]
			sort.Ints(rows)
		}

		loss.negativeGradient(y, raw, residual)

		t := p.newTree()
		if err := t.FitColumns(cols, residual, rows); err != nil {
			return errors.Wrapf(err, "fitting tree for stage %d", stage)
		}
		if err := loss.updateLeaves(t, t.ApplyColumns(cols, rows), rows, y, raw, residual); err != nil {
			return err
		}

		// raw は全行について更新する（out-of-bag 行も含む）
		leaves := t.ApplyColumns(cols, all)
		for i, leaf := range leaves {
			raw[i] += p.LearningRate * t.Nodes[leaf].Value
		}

		score := loss.loss(y, raw, rows)
		if err := errors.CheckScalar(loss.name()+".stage", score, stage); err != nil {
			return err
		}
		b.Trees = append(b.Trees, t)
		b.TrainScore = append(b.TrainScore, score)

		if logger != nil && (stage+1)%100 == 0 {
			logger.Debug("boosting progress",
				log.IterationKey, stage+1,
				log.LossKey, score,
			)
		}
	}

	if logger != nil {
		logger.Debug("boosting finished",
			log.SamplesKey, n,
			log.FeaturesKey, b.NFeatures,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// rawPredict returns Init + lr * Σ tree(x) for every row of X.
func (b *Booster) rawPredict(X mat.Matrix, learningRate float64) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != b.NFeatures {
		return nil, errors.NewDimensionError("rawPredict", b.NFeatures, cols, 1)
	}
	raw := make([]float64, rows)
	for i := range raw {
		raw[i] = b.Init
	}
	for _, t := range b.Trees {
		leaves, err := t.Apply(X)
		if err != nil {
			return nil, err
		}
		for i, leaf := range leaves {
			raw[i] += learningRate * t.Nodes[leaf].Value
		}
	}
	return raw, nil
}

// featureImportances averages the per-tree importances of trees that split
// at least once and renormalises them.
func (b *Booster) featureImportances() []float64 {
	imp := make([]float64, b.NFeatures)
	used := 0
	for _, t := range b.Trees {
		var total float64
		for _, v := range t.Importances {
			total += v
		}
		if total == 0 {
			continue
		}
		used++
		for j, v := range t.Importances {
			imp[j] += v
		}
	}
	if used == 0 {
		return imp
	}
	var total float64
	for _, v := range imp {
		total += v
	}
	for j := range imp {
		imp[j] = errors.SafeDivide(imp[j], total)
	}
	return imp
}

func columnValues(op string, X, y mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	// NaN/Inf は木の分割探索を黙って壊すので入口で弾く
	if err := errors.CheckMatrix(op+".X", X); err != nil {
		return nil, err
	}
	target := mat.Col(nil, 0, y)
	if err := errors.CheckNumericalStability(op+".y", target, 0); err != nil {
		return nil, err
	}
	return target, nil
}
