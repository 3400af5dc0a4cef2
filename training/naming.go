package training

import (
	"strconv"
	"strings"

	"github.com/YuminosukeSato/amesprice/config"
)

// ModelExt は保存するモデルファイルの拡張子
const ModelExt = ".gob"

// ModelBaseName は "gbr_<n_estimators>_<max_depth>_<min_samples_split>_<learning_rate>" を返す。
// 学習率は最短の表記で、整数値なら ".0" を付ける（0.01 → "0.01", 1 → "1.0"）。
func ModelBaseName(m config.ModelConfig) string {
	return strings.Join([]string{
		"gbr",
		strconv.Itoa(m.NEstimators),
		strconv.Itoa(m.MaxDepth),
		strconv.Itoa(m.MinSamplesSplit),
		formatRate(m.LearningRate),
	}, "_")
}

func formatRate(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// ModelFileName returns ModelBaseName with the model extension.
func ModelFileName(m config.ModelConfig) string {
	return ModelBaseName(m) + ModelExt
}
