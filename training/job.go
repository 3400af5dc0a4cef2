// Package training は Ames 住宅価格の学習ジョブ全体（読み込み・前処理・交差検証・学習・評価・保存）を実行します。
package training

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/config"
	"github.com/YuminosukeSato/amesprice/core/model"
	"github.com/YuminosukeSato/amesprice/dataset"
	"github.com/YuminosukeSato/amesprice/metrics"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
	"github.com/YuminosukeSato/amesprice/preprocessing"
	"github.com/YuminosukeSato/amesprice/report"
	"github.com/YuminosukeSato/amesprice/sklearn/ensemble"
	"github.com/YuminosukeSato/amesprice/sklearn/model_selection"
	"github.com/YuminosukeSato/amesprice/tracking"
)

// Stage names, also used as span names.
const (
	StageLoad          = "load"
	StageClean         = "clean"
	StageEncode        = "encode"
	StageSplit         = "split"
	StageCrossValidate = "cross_validate"
	StageFit           = "fit"
	StageEvaluate      = "evaluate"
	StagePersist       = "persist"
)

// MetricNames は記録する指標名（記録順）
var MetricNames = []string{"train_MAE", "train_R2", "val_MAE", "val_R2", "test_MAE", "test_R2"}

// Job は1回の学習ジョブ
type Job struct {
	Config config.Config
	Schema dataset.Schema
	Policy dataset.Policy

	run    tracking.Run
	tracer trace.Tracer
	logger log.Logger
}

// Option configures a Job.
type Option func(*Job)

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(j *Job) { j.tracer = t }
}

// WithLogger sets the job logger.
func WithLogger(l log.Logger) Option {
	return func(j *Job) { j.logger = l }
}

// WithSchema replaces the Ames schema and cleaning policy.
func WithSchema(s dataset.Schema, p dataset.Policy) Option {
	return func(j *Job) {
		j.Schema = s
		j.Policy = p
	}
}

// NewJob は Ames のスキーマとポリシーで Job を作る。run には指標が記録される。
func NewJob(cfg config.Config, run tracking.Run, opts ...Option) *Job {
	j := &Job{
		Config: cfg,
		Schema: dataset.AmesSchema(),
		Policy: dataset.AmesPolicy(),
		run:    run,
		tracer: otel.Tracer(TracerName),
		logger: log.GetLoggerWithName("training"),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With(log.RunIDKey, run.ID())
	return j
}

// Result はジョブの成果物
type Result struct {
	RunID        string
	Model        *ensemble.GradientBoostingRegressor
	FeatureNames []string
	Encoders     map[string]*preprocessing.TargetOrdinalEncoder
	Clean        dataset.CleanReport
	CV           *model_selection.CVResult
	Metrics      map[string]float64
	ModelPath    string
	SidecarPath  string
	TrainRows    int
	TestRows     int
}

// NewRegressor は設定どおりのハイパーパラメータで未学習の回帰器を作る
func NewRegressor(cfg config.Config) *ensemble.GradientBoostingRegressor {
	gbr := ensemble.NewGradientBoostingRegressor(
		ensemble.WithNEstimators(cfg.Model.NEstimators),
		ensemble.WithMaxDepth(cfg.Model.MaxDepth),
		ensemble.WithMinSamplesSplit(cfg.Model.MinSamplesSplit),
		ensemble.WithLearningRate(cfg.Model.LearningRate),
		ensemble.WithSubsample(cfg.Model.Subsample),
		ensemble.WithRandomState(cfg.CV.RandomState),
	)
	gbr.Loss = "ls"
	return gbr
}

// Run はジョブを最初から最後まで実行する。途中の失敗はそのまま返す（リトライはしない）。
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if err := j.Config.Validate(); err != nil {
		return nil, err
	}
	ctx, span := j.tracer.Start(ctx, "train", trace.WithAttributes(
		attribute.String("run.id", j.run.ID()),
		attribute.Int("model.n_estimators", j.Config.Model.NEstimators),
		attribute.Int("model.max_depth", j.Config.Model.MaxDepth),
		attribute.Float64("model.learning_rate", j.Config.Model.LearningRate),
	))
	defer span.End()

	res := &Result{RunID: j.run.ID(), Metrics: make(map[string]float64, len(MetricNames))}

	var df dataframe.DataFrame
	err := j.stage(ctx, StageLoad, func(ctx context.Context) error {
		var err error
		df, err = dataset.Load(ctx, j.Config.DataFolder, j.Schema)
		return err
	})
	if err != nil {
		return nil, j.fail(span, err)
	}

	err = j.stage(ctx, StageClean, func(ctx context.Context) error {
		var err error
		df, res.Clean, err = dataset.NewCleaner(j.Policy, j.logger).Clean(df)
		return err
	})
	if err != nil {
		return nil, j.fail(span, err)
	}

	var X, y *mat.Dense
	err = j.stage(ctx, StageEncode, func(ctx context.Context) error {
		categorical := dataset.CategoricalColumns(df, j.Schema)
		var err error
		df, res.Encoders, err = dataset.EncodeCategoricals(df, categorical, j.Schema.Response)
		if err != nil {
			return err
		}
		res.FeatureNames = j.Schema.FeatureNames(categorical)
		if X, err = dataset.ToMatrix(df, res.FeatureNames); err != nil {
			return err
		}
		y, err = dataset.Target(df, j.Schema.Response)
		return err
	})
	if err != nil {
		return nil, j.fail(span, err)
	}

	var XTrain, XTest, yTrain, yTest *mat.Dense
	err = j.stage(ctx, StageSplit, func(ctx context.Context) error {
		var err error
		XTrain, XTest, yTrain, yTest, err = model_selection.TrainTestSplit(X, y, j.Config.CV.TestSize, j.Config.CV.RandomState)
		if err != nil {
			return err
		}
		res.TrainRows, _ = XTrain.Dims()
		res.TestRows, _ = XTest.Dims()
		return nil
	})
	if err != nil {
		return nil, j.fail(span, err)
	}

	err = j.stage(ctx, StageCrossValidate, func(ctx context.Context) error {
		var err error
		cv := model_selection.NewKFold(j.Config.CV.Folds, false, 0)
		res.CV, err = model_selection.CrossValidate(ctx, NewRegressor(j.Config), XTrain, yTrain, cv,
			model_selection.DefaultScorers(), j.Config.CV.NJobs)
		if err != nil {
			return err
		}
		for _, m := range []struct{ name, key string }{
			{"train_MAE", "train_MAE"},
			{"train_R2", "train_R2"},
			{"val_MAE", "test_MAE"},
			{"val_R2", "test_R2"},
		} {
			v, _ := res.CV.Mean(m.key)
			if err := j.record(ctx, res, m.name, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, j.fail(span, err)
	}

	err = j.stage(ctx, StageFit, func(ctx context.Context) error {
		res.Model = NewRegressor(j.Config)
		return res.Model.FitContext(ctx, XTrain, yTrain)
	})
	if err != nil {
		return nil, j.fail(span, err)
	}

	err = j.stage(ctx, StageEvaluate, func(ctx context.Context) error {
		pred, err := res.Model.Predict(XTest)
		if err != nil {
			return err
		}
		mae, err := metrics.MAEMatrix(yTest, pred)
		if err != nil {
			return err
		}
		r2, err := metrics.R2Matrix(yTest, pred)
		if err != nil {
			return err
		}
		if err := j.record(ctx, res, "test_MAE", mae); err != nil {
			return err
		}
		if err := j.record(ctx, res, "test_R2", r2); err != nil {
			return err
		}
		if j.Config.Plot {
			return j.plot(res, yTest, pred)
		}
		return nil
	})
	if err != nil {
		return nil, j.fail(span, err)
	}

	err = j.stage(ctx, StagePersist, func(ctx context.Context) error {
		return j.persist(res)
	})
	if err != nil {
		return nil, j.fail(span, err)
	}

	j.logger.Info("training finished",
		log.ModelNameKey, "GradientBoostingRegressor",
		"model_path", res.ModelPath,
		log.SamplesKey, res.TrainRows+res.TestRows,
		log.FeaturesKey, len(res.FeatureNames),
	)
	return res, nil
}

// stage は fn を span の中で実行し、所要時間をログに残す
func (j *Job) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := j.tracer.Start(ctx, name, trace.WithAttributes(attribute.String(log.StageKey, name)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		j.logger.Error("stage failed", err, log.StageKey, name, log.DurationMsKey, elapsed.Milliseconds())
		return errors.Wrapf(err, "stage %s", name)
	}
	j.logger.Info("stage finished", log.StageKey, name, log.DurationMsKey, elapsed.Milliseconds())
	return nil
}

func (j *Job) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (j *Job) record(ctx context.Context, res *Result, name string, value float64) error {
	res.Metrics[name] = value
	return j.run.Log(ctx, name, value)
}

func (j *Job) plot(res *Result, yTest, pred mat.Matrix) error {
	base := filepath.Join(j.Config.OutputDir, ModelBaseName(j.Config.Model))
	if err := report.PredictionScatter(mat.Col(nil, 0, yTest), mat.Col(nil, 0, pred),
		"test split", base+"_test.png"); err != nil {
		return err
	}
	importances, err := res.Model.FeatureImportances()
	if err != nil {
		return err
	}
	return report.FeatureImportanceBar(res.FeatureNames, importances, 25, base+"_importance.png")
}

func (j *Job) persist(res *Result) error {
	if err := os.MkdirAll(j.Config.OutputDir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", j.Config.OutputDir)
	}
	res.ModelPath = filepath.Join(j.Config.OutputDir, ModelFileName(j.Config.Model))
	if err := model.SaveModel(res.Model, res.ModelPath); err != nil {
		return err
	}
	res.SidecarPath = filepath.Join(j.Config.OutputDir, ModelBaseName(j.Config.Model)+".json")
	return WriteSidecar(res.SidecarPath, NewSidecar(res))
}
