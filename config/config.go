// Package config は学習ジョブの設定（YAML ファイルとコマンドラインフラグ）を扱います。
package config

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
)

// Config is the full training job configuration.
type Config struct {
	DataFolder string `yaml:"data_folder"`
	OutputDir  string `yaml:"output_dir"`

	Model    ModelConfig    `yaml:"model"`
	CV       CVConfig       `yaml:"cv"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracking TrackingConfig `yaml:"tracking"`
	Tracing  TracingConfig  `yaml:"tracing"`

	// Plot は診断用の PNG を出力するかどうか
	Plot bool `yaml:"plot"`
}

// ModelConfig は勾配ブースティングのハイパーパラメータ
type ModelConfig struct {
	NEstimators     int     `yaml:"n_estimators"`
	MaxDepth        int     `yaml:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	LearningRate    float64 `yaml:"learning_rate"`
	Subsample       float64 `yaml:"subsample"`
}

// CVConfig は分割と交差検証の設定
type CVConfig struct {
	Folds       int     `yaml:"folds"`
	TestSize    float64 `yaml:"test_size"`
	RandomState uint64  `yaml:"random_state"`
	NJobs       int     `yaml:"n_jobs"`
}

// LoggingConfig configures pkg/log.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TrackingConfig は実験トラッキングの出力先。空の項目は無効。
type TrackingConfig struct {
	File               string `yaml:"file"`
	PrometheusTextfile string `yaml:"prometheus_textfile"`
	RedisAddr          string `yaml:"redis_addr"`
	RedisDB            int    `yaml:"redis_db"`
}

// TracingConfig configures OpenTelemetry export. An empty endpoint keeps
// spans in-process only.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() Config {
	return Config{
		DataFolder: ".",
		OutputDir:  "./outputs",
		Model: ModelConfig{
			NEstimators:     500,
			MaxDepth:        4,
			MinSamplesSplit: 2,
			LearningRate:    0.01,
			Subsample:       1.0,
		},
		CV: CVConfig{
			Folds:       10,
			TestSize:    0.4,
			RandomState: 0,
			NJobs:       -1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load は Default の上に path の YAML を重ねて読み込む。未知のキーはエラー。
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Decode は data を cfg に上書きで読み込む
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// 空ファイルは既定値のまま
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.WithStack(err)
	}
	return nil
}

// Marshal は設定を YAML にする
func (c Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}

// Validate は設定値を検証する
func (c Config) Validate() error {
	switch {
	case c.DataFolder == "":
		return errors.NewValidationError("data_folder", "must not be empty", c.DataFolder)
	case c.OutputDir == "":
		return errors.NewValidationError("output_dir", "must not be empty", c.OutputDir)
	case c.Model.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", c.Model.NEstimators)
	case c.Model.MaxDepth < 1:
		return errors.NewValidationError("max_depth", "must be >= 1", c.Model.MaxDepth)
	case c.Model.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", c.Model.MinSamplesSplit)
	case !(c.Model.LearningRate > 0):
		return errors.NewValidationError("learning_rate", "must be > 0", c.Model.LearningRate)
	case !(c.Model.Subsample > 0 && c.Model.Subsample <= 1):
		return errors.NewValidationError("subsample", "must be in (0, 1]", c.Model.Subsample)
	case c.CV.Folds < 2:
		return errors.NewValidationError("cv.folds", "must be >= 2", c.CV.Folds)
	case !(c.CV.TestSize > 0 && c.CV.TestSize < 1):
		return errors.NewValidationError("cv.test_size", "must be in (0, 1)", c.CV.TestSize)
	case c.Logging.Format != "json" && c.Logging.Format != "console":
		return errors.NewValidationError("logging.format", "must be json or console", c.Logging.Format)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
