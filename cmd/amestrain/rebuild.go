package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
	"github.com/YuminosukeSato/amesprice/training"
)

func newRebuildCmd(g *globalFlags) *cobra.Command {
	cfg := training.RebuildConfig{
		TestSize:     0.25,
		NEstimators:  100,
		MaxDepth:     3,
		LearningRate: 0.1,
	}
	cmd := &cobra.Command{
		Use:   "rebuild-pipeline",
		Short: "Fit a scaler+classifier pipeline, rebuild it from its steps and compare accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := g.setupLogging(); err != nil {
				return err
			}
			if cfg.CSVPath == "" {
				return errors.NewValidationError("csv", "is required", cfg.CSVPath)
			}
			res, err := training.RunRebuild(cmd.Context(), cfg, log.GetLoggerWithName("amestrain.rebuild"))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s steps: %v\n", boldGreen("✓"), res.Steps)
			fmt.Fprintf(w, "  reference accuracy: %s\n", formatMetric(res.ReferenceAccuracy))
			fmt.Fprintf(w, "  rebuilt accuracy:   %s\n", formatMetric(res.RebuiltAccuracy))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.CSVPath, "csv", "", "labelled CSV with numeric feature columns")
	fs.StringVar(&cfg.Label, "label", "label", "name of the label column")
	fs.Float64Var(&cfg.TestSize, "test-size", cfg.TestSize, "held-out test fraction")
	fs.Uint64Var(&cfg.RandomState, "random-state", cfg.RandomState, "split seed")
	fs.IntVar(&cfg.NEstimators, "n-estimators", cfg.NEstimators, "number of boosting stages")
	fs.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "maximum depth of each tree")
	fs.Float64Var(&cfg.LearningRate, "learning-rate", cfg.LearningRate, "shrinkage applied to each tree")
	return cmd
}
