package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/YuminosukeSato/amesprice/training"
)

// printSummary は学習結果を人間向けに出力する
func printSummary(w io.Writer, res *training.Result) {
	fmt.Fprintf(w, "%s run %s\n", boldGreen("✓"), cyan(res.RunID))
	fmt.Fprintf(w, "  rows: %d in, %d kept (%d train / %d test)\n",
		res.Clean.RowsIn, res.Clean.RowsOut, res.TrainRows, res.TestRows)
	fmt.Fprintf(w, "  features: %s\n", strings.Join(res.FeatureNames, ", "))

	fmt.Fprintln(w, bold("  metrics"))
	for _, name := range training.MetricNames {
		v, ok := res.Metrics[name]
		if !ok {
			fmt.Fprintf(w, "    %-10s %s\n", name, red("missing"))
			continue
		}
		fmt.Fprintf(w, "    %-10s %s\n", name, formatMetric(v))
	}

	fmt.Fprintf(w, "  model:   %s\n", green(res.ModelPath))
	if res.SidecarPath != "" {
		fmt.Fprintf(w, "  sidecar: %s\n", res.SidecarPath)
	}
}

func formatMetric(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
