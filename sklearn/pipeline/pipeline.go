// Package pipeline は変換器と最終推定器を名前付きステップで連結する Pipeline を提供します。
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/core/model"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// Step は Pipeline の名前付きステップ
type Step struct {
	Name      string
	Estimator interface{}
}

// Pipeline は scikit-learn の Pipeline 相当
//
// 途中のステップは model.Transformer、最後のステップは model.Estimator でなければならない。
//
// 使用例:
//
//	p, err := pipeline.New(
//	    pipeline.Step{Name: "StandardScaler", Estimator: preprocessing.NewStandardScalerDefault()},
//	    pipeline.Step{Name: "GradientBoostingClassifier", Estimator: ensemble.NewGradientBoostingClassifier()},
//	)
//	err = p.Fit(XTrain, yTrain)
type Pipeline struct {
	model.BaseEstimator

	Steps []Step
}

// New は steps を検証して新しい Pipeline を作成する
func New(steps ...Step) (*Pipeline, error) {
	p := &Pipeline{Steps: steps}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) validate() error {
	if len(p.Steps) == 0 {
		return errors.NewValidationError("steps", "pipeline needs at least one step", 0)
	}
	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		switch {
		case s.Name == "":
			return errors.NewValidationError("steps", "step name must not be empty", i)
		case strings.Contains(s.Name, "__"):
			return errors.NewValidationError("steps", "step name must not contain \"__\"", s.Name)
		case seen[s.Name]:
			return errors.NewValidationError("steps", "step names must be unique", s.Name)
		}
		seen[s.Name] = true

		if i < len(p.Steps)-1 {
			if _, ok := s.Estimator.(model.Transformer); !ok {
				return errors.NewValidationError("steps",
					fmt.Sprintf("intermediate step %q must implement Fit/Transform/FitTransform", s.Name),
					fmt.Sprintf("%T", s.Estimator))
			}
			continue
		}
		if _, ok := s.Estimator.(model.Estimator); !ok {
			return errors.NewValidationError("steps",
				fmt.Sprintf("final step %q must implement Fit/Predict", s.Name),
				fmt.Sprintf("%T", s.Estimator))
		}
	}
	return nil
}

func (p *Pipeline) final() model.Estimator {
	return p.Steps[len(p.Steps)-1].Estimator.(model.Estimator)
}

// Fit は各変換器を順に FitTransform し、最後のステップを学習する
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	return p.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation checked between steps and forwarded
// to a final step that supports it.
func (p *Pipeline) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if err := p.validate(); err != nil {
		return err
	}
	p.Reset()

	Xt := X
	for _, s := range p.Steps[:len(p.Steps)-1] {
		if err := ctx.Err(); err != nil {
			return err
		}
		Xt, err = s.Estimator.(model.Transformer).FitTransform(Xt)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", s.Name)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	last := p.Steps[len(p.Steps)-1]
	if cf, ok := last.Estimator.(interface {
		FitContext(ctx context.Context, X, y mat.Matrix) error
	}); ok {
		err = cf.FitContext(ctx, Xt, y)
	} else {
		err = p.final().Fit(Xt, y)
	}
	if err != nil {
		return errors.Wrapf(err, "pipeline step %q", last.Name)
	}
	p.SetFitted()
	return nil
}

// transform は最後のステップ以外を適用する
func (p *Pipeline) transform(op string, X mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", op)
	}
	Xt := X
	for _, s := range p.Steps[:len(p.Steps)-1] {
		var err error
		Xt, err = s.Estimator.(model.Transformer).Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", s.Name)
		}
	}
	return Xt, nil
}

// Predict は変換後のデータで最後のステップの予測を返す
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform("Predict", X)
	if err != nil {
		return nil, err
	}
	return p.final().Predict(Xt)
}

// PredictProba は最後のステップが確率予測に対応している場合のみ使える
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	last := p.Steps[len(p.Steps)-1]
	pp, ok := last.Estimator.(model.ProbaPredictor)
	if !ok {
		return nil, errors.NewValueError("Pipeline.PredictProba",
			fmt.Sprintf("final step %q does not support PredictProba", last.Name))
	}
	Xt, err := p.transform("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return pp.PredictProba(Xt)
}

// Score は最後のステップの Score を返す（回帰なら R²、分類なら正解率）
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	last := p.Steps[len(p.Steps)-1]
	sc, ok := last.Estimator.(model.Scorer)
	if !ok {
		return 0, errors.NewValueError("Pipeline.Score",
			fmt.Sprintf("final step %q does not support Score", last.Name))
	}
	Xt, err := p.transform("Score", X)
	if err != nil {
		return 0, err
	}
	return sc.Score(Xt, y)
}

// Step は i 番目のステップを返す
func (p *Pipeline) Step(i int) (Step, error) {
	if i < 0 || i >= len(p.Steps) {
		return Step{}, errors.NewValueError("Pipeline.Step",
			fmt.Sprintf("step index %d out of range [0, %d)", i, len(p.Steps)))
	}
	return p.Steps[i], nil
}

// NamedStep は名前でステップの推定器を引く
func (p *Pipeline) NamedStep(name string) (interface{}, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s.Estimator, true
		}
	}
	return nil, false
}

// GetParams は scikit-learn と同じ形でパラメータを返す。
// "steps" はステップの一覧、各ステップは名前で、そのパラメータは "<name>__<param>" で入る。
func (p *Pipeline) GetParams() map[string]interface{} {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)

	params := map[string]interface{}{"steps": steps}
	for _, s := range p.Steps {
		params[s.Name] = s.Estimator
		pg, ok := s.Estimator.(model.ParameterGetter)
		if !ok {
			continue
		}
		for k, v := range pg.GetParams() {
			params[s.Name+"__"+k] = v
		}
	}
	return params
}

// SetParams は "<name>__<param>" 形式のキーを該当ステップに渡す
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	grouped := make(map[string]map[string]interface{})
	for key, v := range params {
		name, param, ok := strings.Cut(key, "__")
		if !ok {
			return errors.NewValidationError(key, "pipeline parameters must be <step>__<param>", v)
		}
		if grouped[name] == nil {
			grouped[name] = make(map[string]interface{})
		}
		grouped[name][param] = v
	}
	for name, sub := range grouped {
		est, ok := p.NamedStep(name)
		if !ok {
			return errors.NewValidationError(name, "no such pipeline step", sub)
		}
		ps, ok := est.(model.ParameterSetter)
		if !ok {
			return errors.NewValidationError(name, "step does not support SetParams", sub)
		}
		if err := ps.SetParams(sub); err != nil {
			return err
		}
	}
	return nil
}

// Clone は各ステップを複製した未学習の Pipeline を返す。複製できないステップがあれば panic する。
func (p *Pipeline) Clone() interface{} {
	cloned, err := cloneSteps(p.Steps)
	if err != nil {
		panic(err)
	}
	return &Pipeline{Steps: cloned}
}

func (p *Pipeline) String() string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name
	}
	return fmt.Sprintf("Pipeline(steps=[%s])", strings.Join(names, ", "))
}

func cloneSteps(steps []Step) ([]Step, error) {
	out := make([]Step, len(steps))
	for i, s := range steps {
		c, ok := model.Clone(s.Estimator)
		if !ok {
			return nil, errors.NewValidationError("steps",
				fmt.Sprintf("step %q does not implement Clone()", s.Name),
				fmt.Sprintf("%T", s.Estimator))
		}
		out[i] = Step{Name: s.Name, Estimator: c}
	}
	return out, nil
}
