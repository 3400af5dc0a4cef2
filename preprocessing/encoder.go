package preprocessing

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/amesprice/core/model"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// TargetOrdinalEncoder replaces a category with the 1-based rank of its mean
// response. Categories are ranked ascending by mean; equal means keep
// ascending key order, compared as numbers when every key parses as one.
//
//	enc := preprocessing.NewTargetOrdinalEncoder("Neighborhood")
//	codes, err := enc.FitTransform(neighborhoods, salePrices)
type TargetOrdinalEncoder struct {
	model.BaseEstimator

	// Column は元の列名（エラーメッセージ用）
	Column string

	// Ranks はカテゴリ→順位 (1..K)
	Ranks map[string]int

	// Means はカテゴリごとの目的変数の平均
	Means map[string]float64

	// Order は順位順のカテゴリ
	Order []string
}

// NewTargetOrdinalEncoder creates an unfitted encoder for column.
func NewTargetOrdinalEncoder(column string) *TargetOrdinalEncoder {
	return &TargetOrdinalEncoder{Column: column}
}

// Fit learns the category ranks from paired categories and responses.
func (e *TargetOrdinalEncoder) Fit(categories []string, response []float64) error {
	if len(categories) == 0 {
		return errors.NewModelError("TargetOrdinalEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(categories) != len(response) {
		return errors.NewDimensionError("TargetOrdinalEncoder.Fit", len(categories), len(response), 0)
	}

	groups := make(map[string][]float64)
	for i, c := range categories {
		groups[c] = append(groups[c], response[i])
	}

	order := make([]string, 0, len(groups))
	means := make(map[string]float64, len(groups))
	for c, ys := range groups {
		order = append(order, c)
		means[c] = stat.Mean(ys, nil)
	}
	sortKeys(order)
	sort.SliceStable(order, func(i, j int) bool {
		return means[order[i]] < means[order[j]]
	})

	ranks := make(map[string]int, len(order))
	for i, c := range order {
		ranks[c] = i + 1
	}

	e.Order = order
	e.Means = means
	e.Ranks = ranks
	e.SetFitted()
	return nil
}

// Transform maps each category to its rank. A category not seen in Fit is
// an *errors.UnmappedCategoryError.
func (e *TargetOrdinalEncoder) Transform(categories []string) ([]float64, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("TargetOrdinalEncoder", "Transform")
	}

	out := make([]float64, len(categories))
	for i, c := range categories {
		r, ok := e.Ranks[c]
		if !ok {
			return nil, errors.NewUnmappedCategoryError(e.Column, c)
		}
		out[i] = float64(r)
	}
	return out, nil
}

// FitTransform fits on categories/response and encodes categories.
func (e *TargetOrdinalEncoder) FitTransform(categories []string, response []float64) ([]float64, error) {
	if err := e.Fit(categories, response); err != nil {
		return nil, err
	}
	return e.Transform(categories)
}

// Mapping returns a copy of the category → rank table.
func (e *TargetOrdinalEncoder) Mapping() map[string]int {
	m := make(map[string]int, len(e.Ranks))
	for k, v := range e.Ranks {
		m[k] = v
	}
	return m
}

// Categories returns the categories in rank order.
func (e *TargetOrdinalEncoder) Categories() []string {
	return append([]string(nil), e.Order...)
}

// NCategories is the number of distinct categories seen in Fit.
func (e *TargetOrdinalEncoder) NCategories() int {
	return len(e.Order)
}

func (e *TargetOrdinalEncoder) String() string {
	return fmt.Sprintf("TargetOrdinalEncoder(column=%q, n_categories=%d)", e.Column, len(e.Order))
}

// sortKeys は groupby と同じくキーを昇順に並べる。全て数値なら数値順 ("9" < "10")。
func sortKeys(keys []string) {
	nums := make(map[string]float64, len(keys))
	for _, k := range keys {
		v, err := strconv.ParseFloat(k, 64)
		if err != nil {
			sort.Strings(keys)
			return
		}
		nums[k] = v
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := nums[keys[i]], nums[keys[j]]
		if a == b {
			return keys[i] < keys[j]
		}
		return a < b
	})
}
