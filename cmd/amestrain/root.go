package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/amesprice/pkg/log"
)

type globalFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "amestrain",
		Short:        "Train a gradient-boosted house price model on the Ames data set",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "console", "log format (console or json)")

	root.AddCommand(newTrainCmd(g), newRebuildCmd(g))
	return root
}

// setupLogging configures pkg/log from the global flags.
func (g *globalFlags) setupLogging() error {
	return log.SetupLogger(g.logLevel, g.logFormat)
}
