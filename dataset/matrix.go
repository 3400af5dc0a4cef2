package dataset

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// ToMatrix は columns の順に列を取り出して n×len(columns) の行列にする。
// 欠損値や数値にできない値があればエラー。
func ToMatrix(df dataframe.DataFrame, columns []string) (*mat.Dense, error) {
	n := df.Nrow()
	if n == 0 || len(columns) == 0 {
		return nil, errors.NewModelError("dataset.ToMatrix", "empty data", errors.ErrEmptyData)
	}
	X := mat.NewDense(n, len(columns), nil)
	for j, name := range columns {
		if !hasColumn(df, name) {
			return nil, errors.NewColumnNotFoundError("dataset.ToMatrix", name)
		}
		for i, v := range df.Col(name).Float() {
			if math.IsNaN(v) {
				return nil, errors.NewValueError("dataset.ToMatrix",
					fmt.Sprintf("column %q row %d is missing or not numeric", name, i))
			}
			X.Set(i, j, v)
		}
	}
	return X, nil
}

// Target は目的変数の列を n×1 の行列で返す
func Target(df dataframe.DataFrame, response string) (*mat.Dense, error) {
	return ToMatrix(df, []string{response})
}

// NumericColumns は Int と Float 型の列名をフレームの順で返す。exclude の列は除く。
func NumericColumns(df dataframe.DataFrame, exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var cols []string
	for i, t := range df.Types() {
		name := df.Names()[i]
		if skip[name] || (t != series.Int && t != series.Float) {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}
