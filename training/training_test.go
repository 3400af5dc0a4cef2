package training

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/config"
	"github.com/YuminosukeSato/amesprice/core/model"
	"github.com/YuminosukeSato/amesprice/dataset"
	"github.com/YuminosukeSato/amesprice/pkg/log"
	"github.com/YuminosukeSato/amesprice/sklearn/ensemble"
	"github.com/YuminosukeSato/amesprice/tracking"
)

func TestModelFileName(t *testing.T) {
	tests := []struct {
		model config.ModelConfig
		want  string
	}{
		{config.ModelConfig{NEstimators: 500, MaxDepth: 4, MinSamplesSplit: 2, LearningRate: 0.01}, "gbr_500_4_2_0.01.gob"},
		{config.ModelConfig{NEstimators: 100, MaxDepth: 3, MinSamplesSplit: 5, LearningRate: 0.1}, "gbr_100_3_5_0.1.gob"},
		{config.ModelConfig{NEstimators: 10, MaxDepth: 2, MinSamplesSplit: 2, LearningRate: 1}, "gbr_10_2_2_1.0.gob"},
		{config.ModelConfig{NEstimators: 10, MaxDepth: 2, MinSamplesSplit: 2, LearningRate: 0.00001}, "gbr_10_2_2_1e-05.gob"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ModelFileName(tt.model))
		})
	}
}

var neighborhoods = []string{"NAmes", "CollgCr", "OldTown", "StoneBr"}

// writeHousing は価格が床面積・品質・地域で決まる小さな住宅データを書き出す
func writeHousing(t *testing.T, dir string, n int) {
	t.Helper()
	r := rand.New(rand.NewPCG(1, 2))

	var b strings.Builder
	b.WriteString("Order,PID,Neighborhood,Lot.Frontage,Gr.Liv.Area,Quality,SalePrice\n")
	for i := 0; i < n; i++ {
		hood := i % len(neighborhoods)
		area := 800 + r.IntN(1600)
		quality := []string{"Po", "Fa", "TA", "Gd", "Ex"}[r.IntN(5)]
		bonus := map[string]int{"Po": 0, "Fa": 40000, "TA": 80000, "Gd": 120000, "Ex": 160000}[quality]
		price := 50*area + bonus + 15000*hood

		frontage := fmt.Sprint(40 + r.IntN(60))
		if i%7 == 0 {
			frontage = "NA"
		}
		liv := fmt.Sprint(area)
		if i == 3 {
			// no rule fills this column, so the row is dropped
			liv = "NA"
		}
		fmt.Fprintf(&b, "%d,%d,%s,%s,%s,%s,%d\n", i+1, 1000+i, neighborhoods[hood], frontage, liv, quality, price)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataset.DefaultRelativePath), []byte(b.String()), 0o644))
}

func smallConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.DataFolder = dir
	cfg.OutputDir = filepath.Join(dir, "outputs")
	cfg.Model.NEstimators = 60
	cfg.Model.MaxDepth = 3
	cfg.Model.LearningRate = 0.1
	cfg.CV.Folds = 3
	cfg.CV.NJobs = 2
	cfg.Plot = true
	return cfg
}

func housingSchema() (dataset.Schema, dataset.Policy) {
	return dataset.Schema{
			Response:    "SalePrice",
			Numeric:     []string{"Lot.Frontage", "Gr.Liv.Area"},
			Identifiers: []string{"Order", "PID"},
		}, dataset.Policy{
			GroupMedian: []dataset.GroupRule{{Column: "Lot.Frontage", By: "Neighborhood"}},
		}
}

func TestJob_Run(t *testing.T) {
	dir := t.TempDir()
	writeHousing(t, dir, 120)
	cfg := smallConfig(dir)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	logger, _ := log.NewTestLogger(log.LevelInfo)
	run := tracking.NewRunWithSinks("run-test", logger)
	schema, policy := housingSchema()

	job := NewJob(cfg, run,
		WithSchema(schema, policy),
		WithTracer(tp.Tracer(TracerName)),
		WithLogger(logger),
	)
	res, err := job.Run(context.Background())
	require.NoError(t, err)

	// cleaning
	assert.Equal(t, 120, res.Clean.RowsIn)
	assert.Equal(t, 1, res.Clean.RowsDropped())
	assert.Equal(t, []string{"Lot.Frontage", "Gr.Liv.Area", "Neighborhood_E", "Quality_E"}, res.FeatureNames)

	// split: 119 rows, ceil(0.4 * 119) = 48 test rows
	assert.Equal(t, 48, res.TestRows)
	assert.Equal(t, 71, res.TrainRows)

	for _, name := range MetricNames {
		assert.Contains(t, res.Metrics, name)
	}
	assert.Greater(t, res.Metrics["train_R2"], 0.95)
	assert.Greater(t, res.Metrics["test_R2"], 0.8)
	assert.Greater(t, res.Metrics["val_R2"], 0.7)
	assert.Equal(t, res.Metrics["val_R2"], run.Metrics()["val_R2E"])

	// persisted model predicts like the in-memory one
	assert.Equal(t, filepath.Join(cfg.OutputDir, "gbr_60_3_2_0.1.gob"), res.ModelPath)
	loaded := &ensemble.GradientBoostingRegressor{}
	require.NoError(t, model.LoadModel(loaded, res.ModelPath))
	X := mat.NewDense(1, 4, []float64{60, 1500, 2, 3})
	want, err := res.Model.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want.At(0, 0), got.At(0, 0))

	side, err := ReadSidecar(res.SidecarPath)
	require.NoError(t, err)
	assert.Equal(t, "run-test", side.RunID)
	assert.Equal(t, res.FeatureNames, side.Features)
	assert.Len(t, side.Encoders["Quality"], 5)
	assert.Equal(t, 1, side.Encoders["Quality"]["Po"])
	assert.Equal(t, 5, side.Encoders["Quality"]["Ex"])
	assert.Equal(t, float64(60), side.Params["n_estimators"])

	for _, suffix := range []string{"_test.png", "_importance.png"} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, "gbr_60_3_2_0.1"+suffix))
		assert.NoError(t, err, suffix)
	}

	var spans []string
	for _, s := range recorder.Ended() {
		spans = append(spans, s.Name())
	}
	assert.Equal(t, []string{
		StageLoad, StageClean, StageEncode, StageSplit,
		StageCrossValidate, StageFit, StageEvaluate, StagePersist, "train",
	}, spans)

	assert.True(t, logger.ContainsField(log.StageKey, StagePersist))
}

func TestJob_Run_MissingData(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)

	run := tracking.NewRunWithSinks("run-missing", nil)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, err := NewJob(cfg, run, WithTracer(tp.Tracer(TracerName))).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage load")

	ended := recorder.Ended()
	require.NotEmpty(t, ended)
	assert.Equal(t, "Error", ended[0].Status().Code.String())
}

func TestJob_Run_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.CV.Folds = 1
	_, err := NewJob(cfg, tracking.NewRunWithSinks("x", nil)).Run(context.Background())
	assert.Error(t, err)
}

func TestJob_Run_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeHousing(t, dir, 40)
	schema, policy := housingSchema()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewJob(smallConfig(dir), tracking.NewRunWithSinks("c", nil), WithSchema(schema, policy)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRebuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.csv")

	r := rand.New(rand.NewPCG(3, 4))
	var b strings.Builder
	b.WriteString("income,age,owner,label\n")
	for i := 0; i < 80; i++ {
		income := 20000 + r.IntN(100000)
		age := 20 + r.IntN(50)
		label := 0
		if income > 70000 {
			label = 1
		}
		fmt.Fprintf(&b, "%d,%d,%s,%d\n", income, age, []string{"yes", "no"}[i%2], label)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	res, err := RunRebuild(context.Background(), RebuildConfig{
		CSVPath:      path,
		Label:        "label",
		TestSize:     0.25,
		NEstimators:  30,
		MaxDepth:     2,
		LearningRate: 0.1,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"StandardScaler", "GradientBoostingClassifier"}, res.Steps)
	assert.Equal(t, []string{"income", "age"}, res.Features)
	assert.Greater(t, res.RebuiltAccuracy, 0.9)
	assert.Equal(t, res.ReferenceAccuracy, res.RebuiltAccuracy)
}

func TestRunRebuild_Errors(t *testing.T) {
	_, err := RunRebuild(context.Background(), RebuildConfig{CSVPath: "x.csv"}, nil)
	assert.Error(t, err)

	_, err = RunRebuild(context.Background(), RebuildConfig{CSVPath: filepath.Join(t.TempDir(), "none.csv"), Label: "y"}, nil)
	assert.Error(t, err)
}
