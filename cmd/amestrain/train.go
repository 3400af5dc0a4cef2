package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/amesprice/config"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
	"github.com/YuminosukeSato/amesprice/tracking"
	"github.com/YuminosukeSato/amesprice/training"
)

type trainFlags struct {
	configPath string
	cfg        config.Config
}

func newTrainCmd(g *globalFlags) *cobra.Command {
	f := &trainFlags{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Clean, encode, cross-validate and fit the regressor, then save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), f, g)
			if err != nil {
				return err
			}
			if err := log.SetupLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
				return err
			}
			return runTrain(cmd, cfg)
		},
	}

	bindTrainFlags(cmd.Flags(), f)
	return cmd
}

func bindTrainFlags(fs *pflag.FlagSet, f *trainFlags) {
	fs.StringVar(&f.configPath, "config", "", "YAML config file; flags set explicitly override it")
	fs.StringVar(&f.cfg.DataFolder, "data-folder", f.cfg.DataFolder, "data folder mounting point")
	fs.StringVar(&f.cfg.OutputDir, "output-dir", f.cfg.OutputDir, "directory for the model and its sidecar")
	fs.IntVar(&f.cfg.Model.NEstimators, "n-estimators", f.cfg.Model.NEstimators, "number of boosting stages")
	fs.IntVar(&f.cfg.Model.MaxDepth, "max-depth", f.cfg.Model.MaxDepth, "maximum depth of each tree")
	fs.IntVar(&f.cfg.Model.MinSamplesSplit, "min-samples-split", f.cfg.Model.MinSamplesSplit, "minimum samples to split a node")
	fs.Float64Var(&f.cfg.Model.LearningRate, "learning-rate", f.cfg.Model.LearningRate, "shrinkage applied to each tree")
	fs.Float64Var(&f.cfg.Model.Subsample, "subsample", f.cfg.Model.Subsample, "fraction of rows per stage")
	fs.IntVar(&f.cfg.CV.Folds, "cv-folds", f.cfg.CV.Folds, "number of cross-validation folds")
	fs.Float64Var(&f.cfg.CV.TestSize, "test-size", f.cfg.CV.TestSize, "held-out test fraction")
	fs.Uint64Var(&f.cfg.CV.RandomState, "random-state", f.cfg.CV.RandomState, "seed for the split and subsampling")
	fs.IntVar(&f.cfg.CV.NJobs, "n-jobs", f.cfg.CV.NJobs, "parallel folds (-1 = all CPUs)")
	fs.StringVar(&f.cfg.Tracking.File, "tracking-file", "", "append metrics as JSON lines to this file")
	fs.StringVar(&f.cfg.Tracking.PrometheusTextfile, "prometheus-textfile", "", "write metrics in Prometheus textfile format")
	fs.StringVar(&f.cfg.Tracking.RedisAddr, "redis-addr", "", "record metrics in a Redis hash at this address")
	fs.StringVar(&f.cfg.Tracing.OTLPEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint for job spans")
	fs.BoolVar(&f.cfg.Plot, "plot", false, "write diagnostic PNGs next to the model")
}

// flagSetters は明示的に指定されたフラグだけを設定ファイルの値に上書きする
var flagSetters = map[string]func(dst *config.Config, src config.Config){
	"data-folder":         func(d *config.Config, s config.Config) { d.DataFolder = s.DataFolder },
	"output-dir":          func(d *config.Config, s config.Config) { d.OutputDir = s.OutputDir },
	"n-estimators":        func(d *config.Config, s config.Config) { d.Model.NEstimators = s.Model.NEstimators },
	"max-depth":           func(d *config.Config, s config.Config) { d.Model.MaxDepth = s.Model.MaxDepth },
	"min-samples-split":   func(d *config.Config, s config.Config) { d.Model.MinSamplesSplit = s.Model.MinSamplesSplit },
	"learning-rate":       func(d *config.Config, s config.Config) { d.Model.LearningRate = s.Model.LearningRate },
	"subsample":           func(d *config.Config, s config.Config) { d.Model.Subsample = s.Model.Subsample },
	"cv-folds":            func(d *config.Config, s config.Config) { d.CV.Folds = s.CV.Folds },
	"test-size":           func(d *config.Config, s config.Config) { d.CV.TestSize = s.CV.TestSize },
	"random-state":        func(d *config.Config, s config.Config) { d.CV.RandomState = s.CV.RandomState },
	"n-jobs":              func(d *config.Config, s config.Config) { d.CV.NJobs = s.CV.NJobs },
	"tracking-file":       func(d *config.Config, s config.Config) { d.Tracking.File = s.Tracking.File },
	"prometheus-textfile": func(d *config.Config, s config.Config) { d.Tracking.PrometheusTextfile = s.Tracking.PrometheusTextfile },
	"redis-addr":          func(d *config.Config, s config.Config) { d.Tracking.RedisAddr = s.Tracking.RedisAddr },
	"otlp-endpoint":       func(d *config.Config, s config.Config) { d.Tracing.OTLPEndpoint = s.Tracing.OTLPEndpoint },
	"plot":                func(d *config.Config, s config.Config) { d.Plot = s.Plot },
}

// resolveConfig は 既定値 → 設定ファイル → 明示フラグ の順に重ねる
func resolveConfig(fs *pflag.FlagSet, f *trainFlags, g *globalFlags) (config.Config, error) {
	if f.configPath == "" {
		cfg := f.cfg
		cfg.Logging = config.LoggingConfig{Level: g.logLevel, Format: g.logFormat}
		return cfg, cfg.Validate()
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(fl *pflag.Flag) {
		if set, ok := flagSetters[fl.Name]; ok {
			set(&cfg, f.cfg)
		}
	})
	// ログ設定はルートの永続フラグが明示されたときだけ上書き
	if fl := fs.Lookup("log-level"); fl != nil && fl.Changed {
		cfg.Logging.Level = g.logLevel
	}
	if fl := fs.Lookup("log-format"); fl != nil && fl.Changed {
		cfg.Logging.Format = g.logFormat
	}
	return cfg, cfg.Validate()
}

func runTrain(cmd *cobra.Command, cfg config.Config) (err error) {
	ctx := cmd.Context()
	logger := log.GetLoggerWithName("amestrain")

	run, err := tracking.NewRun(ctx, tracking.Options{
		File:               cfg.Tracking.File,
		PrometheusTextfile: cfg.Tracking.PrometheusTextfile,
		RedisAddr:          cfg.Tracking.RedisAddr,
		RedisDB:            cfg.Tracking.RedisDB,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, run.Close(context.WithoutCancel(ctx)))
	}()

	tp, err := training.NewTracerProvider(ctx, cfg.Tracing, run.ID())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, tp.Shutdown(context.WithoutCancel(ctx)))
	}()

	job := training.NewJob(cfg, run,
		training.WithTracer(tp.Tracer(training.TracerName)),
		training.WithLogger(logger),
	)
	res, err := job.Run(ctx)
	if err != nil {
		logger.Error("training failed", err)
		return err
	}
	printSummary(cmd.OutOrStdout(), res)
	return nil
}
