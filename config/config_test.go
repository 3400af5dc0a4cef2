package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500, cfg.Model.NEstimators)
	assert.Equal(t, 4, cfg.Model.MaxDepth)
	assert.Equal(t, 2, cfg.Model.MinSamplesSplit)
	assert.Equal(t, 0.01, cfg.Model.LearningRate)
	assert.Equal(t, 10, cfg.CV.Folds)
	assert.Equal(t, 0.4, cfg.CV.TestSize)
	assert.Equal(t, uint64(0), cfg.CV.RandomState)
	assert.Equal(t, "./outputs", cfg.OutputDir)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_folder: /mnt/data
model:
  n_estimators: 100
  learning_rate: 0.05
tracking:
  file: runs.jsonl
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/data", cfg.DataFolder)
	assert.Equal(t, 100, cfg.Model.NEstimators)
	assert.Equal(t, 0.05, cfg.Model.LearningRate)
	// untouched keys keep their defaults
	assert.Equal(t, 4, cfg.Model.MaxDepth)
	assert.Equal(t, 10, cfg.CV.Folds)
	assert.Equal(t, "runs.jsonl", cfg.Tracking.File)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  n_trees: 3\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err, "unknown keys are rejected")
}

func TestDecode_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode(nil, &cfg))
	assert.Equal(t, Default(), cfg)
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Tracking.RedisAddr = "localhost:6379"
	out, err := cfg.Marshal()
	require.NoError(t, err)

	var back Config
	require.NoError(t, Decode(out, &back))
	assert.Equal(t, cfg, back)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"n_estimators", func(c *Config) { c.Model.NEstimators = 0 }, "n_estimators"},
		{"max_depth", func(c *Config) { c.Model.MaxDepth = 0 }, "max_depth"},
		{"min_samples_split", func(c *Config) { c.Model.MinSamplesSplit = 1 }, "min_samples_split"},
		{"learning_rate", func(c *Config) { c.Model.LearningRate = 0 }, "learning_rate"},
		{"subsample", func(c *Config) { c.Model.Subsample = 1.5 }, "subsample"},
		{"folds", func(c *Config) { c.CV.Folds = 1 }, "cv.folds"},
		{"test_size", func(c *Config) { c.CV.TestSize = 1 }, "cv.test_size"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "log_level"},
		{"data_folder", func(c *Config) { c.DataFolder = "" }, "data_folder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}
