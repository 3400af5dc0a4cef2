package dataset

import (
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
	"github.com/YuminosukeSato/amesprice/preprocessing"
)

// CategoricalColumns は数値列でも目的変数でもない列をフレームの順で返す。
// すでにエンコード済みの "<col>_E" 列は含めない。
func CategoricalColumns(df dataframe.DataFrame, schema Schema) []string {
	var cols []string
	for _, name := range df.Names() {
		if name == schema.Response || schema.isNumeric(name) || strings.HasSuffix(name, EncodedSuffix) {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}

// EncodeCategoricals は各カテゴリ列について目的変数の平均で順位付けし、
// "<col>_E" 列を追加する。元の列は残る。列ごとのエンコーダを返す。
func EncodeCategoricals(df dataframe.DataFrame, columns []string, response string) (dataframe.DataFrame, map[string]*preprocessing.TargetOrdinalEncoder, error) {
	if !hasColumn(df, response) {
		return df, nil, errors.NewColumnNotFoundError("dataset.EncodeCategoricals", response)
	}
	resp := df.Col(response)
	if hasMissing(resp) {
		return df, nil, errors.NewValueError("dataset.EncodeCategoricals", "response column has missing values")
	}
	y := resp.Float()

	logger := log.GetLoggerWithName("dataset.Encoder")
	encoders := make(map[string]*preprocessing.TargetOrdinalEncoder, len(columns))
	for _, col := range columns {
		if !hasColumn(df, col) {
			return df, nil, errors.NewColumnNotFoundError("dataset.EncodeCategoricals", col)
		}
		s := df.Col(col)
		if hasMissing(s) {
			return df, nil, errors.NewValueError("dataset.EncodeCategoricals",
				"column "+col+" has missing values; clean the frame first")
		}

		enc := preprocessing.NewTargetOrdinalEncoder(col)
		codes, err := enc.FitTransform(categoryKeys(s), y)
		if err != nil {
			return df, nil, errors.Wrapf(err, "encode column %s", col)
		}
		df = df.Mutate(series.New(codes, series.Float, col+EncodedSuffix))
		if df.Err != nil {
			return df, nil, errors.Wrapf(df.Err, "add column %s%s", col, EncodedSuffix)
		}
		encoders[col] = enc

		logger.Debug("column encoded", log.ColumnKey, col, log.CategoriesKey, enc.NCategories())
	}
	return df, encoders, nil
}

// categoryKeys は列の値をカテゴリのキーにする。
// Float 列の Records は小数6桁で丸められ別の値が同じキーになるので、最短表現を使う。
func categoryKeys(s series.Series) []string {
	if s.Type() != series.Float {
		return s.Records()
	}
	vals := s.Float()
	keys := make([]string, len(vals))
	for i, v := range vals {
		keys[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return keys
}

func hasMissing(s series.Series) bool {
	for _, na := range s.IsNaN() {
		if na {
			return true
		}
	}
	return false
}
