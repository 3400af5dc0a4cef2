package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/amesprice/config"
	"github.com/YuminosukeSato/amesprice/dataset"
	"github.com/YuminosukeSato/amesprice/training"
)

func parseTrainFlags(t *testing.T, args ...string) (*pflag.FlagSet, *trainFlags, *globalFlags) {
	t.Helper()
	g := &globalFlags{}
	f := &trainFlags{cfg: config.Default()}
	fs := pflag.NewFlagSet("train", pflag.ContinueOnError)
	fs.StringVar(&g.logLevel, "log-level", "info", "")
	fs.StringVar(&g.logFormat, "log-format", "console", "")
	bindTrainFlags(fs, f)
	require.NoError(t, fs.Parse(args))
	return fs, f, g
}

func TestResolveConfig_FlagsOnly(t *testing.T) {
	fs, f, g := parseTrainFlags(t,
		"--data-folder", "/mnt",
		"--n-estimators", "50",
		"--max-depth", "3",
		"--min-samples-split", "4",
		"--learning-rate", "0.1",
		"--log-level", "debug",
	)

	cfg, err := resolveConfig(fs, f, g)
	require.NoError(t, err)

	assert.Equal(t, "/mnt", cfg.DataFolder)
	assert.Equal(t, 50, cfg.Model.NEstimators)
	assert.Equal(t, 3, cfg.Model.MaxDepth)
	assert.Equal(t, 4, cfg.Model.MinSamplesSplit)
	assert.Equal(t, 0.1, cfg.Model.LearningRate)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// 未指定の項目は既定値
	assert.Equal(t, 10, cfg.CV.Folds)
	assert.Equal(t, 0.4, cfg.CV.TestSize)
}

func TestResolveConfig_FileWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	yaml := `
data_folder: /data
model:
  n_estimators: 200
  max_depth: 6
cv:
  folds: 5
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	fs, f, g := parseTrainFlags(t, "--config", path, "--max-depth", "2")
	cfg, err := resolveConfig(fs, f, g)
	require.NoError(t, err)

	assert.Equal(t, "/data", cfg.DataFolder)
	assert.Equal(t, 200, cfg.Model.NEstimators, "file value kept")
	assert.Equal(t, 2, cfg.Model.MaxDepth, "explicit flag wins")
	assert.Equal(t, 5, cfg.CV.Folds)
	assert.Equal(t, "warn", cfg.Logging.Level, "log flag not set explicitly")
	assert.Equal(t, 0.01, cfg.Model.LearningRate)
}

func TestResolveConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero estimators", []string{"--n-estimators", "0"}},
		{"negative rate", []string{"--learning-rate=-1"}},
		{"single fold", []string{"--cv-folds", "1"}},
		{"bad log level", []string{"--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, f, g := parseTrainFlags(t, tt.args...)
			_, err := resolveConfig(fs, f, g)
			assert.Error(t, err)
		})
	}

	fs, f, g := parseTrainFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := resolveConfig(fs, f, g)
	assert.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	res := &training.Result{
		RunID:        "abc",
		FeatureNames: []string{"Gr.Liv.Area", "Neighborhood_E"},
		Clean:        dataset.CleanReport{RowsIn: 10, RowsOut: 9},
		Metrics: map[string]float64{
			"train_MAE": 1000, "train_R2": 0.95,
			"val_MAE": 1500, "val_R2": 0.9,
			"test_MAE": 1600,
		},
		ModelPath: "outputs/gbr_500_4_2_0.01.gob",
		TrainRows: 5,
		TestRows:  4,
	}

	var buf bytes.Buffer
	printSummary(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "10 in, 9 kept (5 train / 4 test)")
	assert.Contains(t, out, "Gr.Liv.Area, Neighborhood_E")
	assert.Contains(t, out, "0.9500")
	assert.Contains(t, out, "missing", "test_R2 absent")
	assert.Contains(t, out, "gbr_500_4_2_0.01.gob")
	assert.NotContains(t, out, "sidecar")
}

func TestRebuildCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	r := rand.New(rand.NewPCG(5, 6))
	var b strings.Builder
	b.WriteString("income,age,y\n")
	for i := 0; i < 80; i++ {
		income := 20000 + r.IntN(100000)
		y := 0
		if income > 70000 {
			y = 1
		}
		fmt.Fprintf(&b, "%d,%d,%d\n", income, 20+r.IntN(50), y)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"rebuild-pipeline",
		"--csv", path, "--label", "y",
		"--n-estimators", "30", "--max-depth", "2",
		"--log-level", "error",
	})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "[StandardScaler GradientBoostingClassifier]")
	assert.Contains(t, out.String(), "rebuilt accuracy")
}

func TestRebuildCommand_RequiresCSV(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"rebuild-pipeline", "--log-level", "error"})
	assert.Error(t, root.Execute())
}

func TestTrainCommand_MissingData(t *testing.T) {
	dir := t.TempDir()
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"train",
		"--data-folder", dir,
		"--output-dir", filepath.Join(dir, "out"),
		"--log-level", "error",
	})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage load")
}
