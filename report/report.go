// Package report は学習結果の診断用グラフを PNG で出力します。
package report

import (
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// PredictionScatter は実測値と予測値の散布図に y = x の線を重ねて path に保存する
func PredictionScatter(yTrue, yPred []float64, title, path string) error {
	if len(yTrue) == 0 {
		return errors.NewModelError("report.PredictionScatter", "empty data", errors.ErrEmptyData)
	}
	if len(yTrue) != len(yPred) {
		return errors.NewDimensionError("report.PredictionScatter", len(yTrue), len(yPred), 0)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"

	pts := make(plotter.XYs, len(yTrue))
	for i := range yTrue {
		pts[i].X = yTrue[i]
		pts[i].Y = yPred[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "scatter")
	}
	s.Radius = vg.Points(1.5)
	p.Add(s)

	lo := math.Min(floats.Min(yTrue), floats.Min(yPred))
	hi := math.Max(floats.Max(yTrue), floats.Max(yPred))
	diag, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "diagonal")
	}
	diag.LineStyle.Width = vg.Points(1)
	diag.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(diag)

	return save(p, 5*vg.Inch, 5*vg.Inch, path)
}

// FeatureImportanceBar は重要度の高い上位 top 個の特徴量を横棒グラフで保存する。
// top <= 0 なら全て。
func FeatureImportanceBar(names []string, importances []float64, top int, path string) error {
	if len(names) == 0 {
		return errors.NewModelError("report.FeatureImportanceBar", "empty data", errors.ErrEmptyData)
	}
	if len(names) != len(importances) {
		return errors.NewDimensionError("report.FeatureImportanceBar", len(names), len(importances), 1)
	}

	idx := TopFeatures(importances, top)
	// 一番重要なものを上に表示するため逆順に並べる
	values := make(plotter.Values, len(idx))
	labels := make([]string, len(idx))
	for i, j := range idx {
		values[len(idx)-1-i] = importances[j]
		labels[len(idx)-1-i] = names[j]
	}

	p := plot.New()
	p.Title.Text = "feature importance"
	bars, err := plotter.NewBarChart(values, vg.Points(8))
	if err != nil {
		return errors.Wrap(err, "bar chart")
	}
	bars.Horizontal = true
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(labels...)

	height := vg.Length(len(idx))*vg.Points(12) + vg.Inch
	return save(p, 6*vg.Inch, height, path)
}

// TopFeatures は重要度の降順に top 個のインデックスを返す。同値は元の順。
func TopFeatures(importances []float64, top int) []int {
	idx := make([]int, len(importances))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return importances[idx[a]] > importances[idx[b]]
	})
	if top > 0 && top < len(idx) {
		idx = idx[:top]
	}
	return idx
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := p.Save(w, h, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
