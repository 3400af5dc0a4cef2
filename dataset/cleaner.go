package dataset

import (
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
	"github.com/YuminosukeSato/amesprice/pkg/log"
)

// NoneCategory は「存在しない」を表すカテゴリ値
const NoneCategory = "None"

// GroupRule は By 列のグループごとの中央値で Column の欠損を埋める規則
type GroupRule struct {
	Column string
	By     string
}

// Policy は列ごとの欠損値の埋め方
type Policy struct {
	// FillNone の列は "None" で埋める
	FillNone []string
	// FillZero の列は 0 で埋める（文字列列なら "0"）
	FillZero []string
	// GroupMedian はグループ内中央値で埋める規則。値が1つも無いグループは欠損のまま残る。
	GroupMedian []GroupRule
	// FillMode の列は最頻値で埋める。同数なら小さい値を選ぶ。
	FillMode []string
}

// AmesPolicy は Ames 住宅データの欠損値ポリシーを返す
func AmesPolicy() Policy {
	return Policy{
		FillNone: []string{
			"Pool.QC", "Misc.Feature", "Alley", "Fence", "Fireplace.Qu", "Garage.Type",
			"Garage.Finish", "Garage.Qual", "Garage.Cond", "Bsmt.Exposure", "Bsmt.Cond",
			"Bsmt.Qual", "Mas.Vnr.Type",
		},
		FillZero: []string{
			"Garage.Yr.Blt", "BsmtFin.Type.2", "BsmtFin.Type.1", "Bsmt.Half.Bath",
			"Bsmt.Full.Bath", "Total.Bsmt.SF", "Bsmt.Unf.SF", "BsmtFin.SF.1", "BsmtFin.SF.2",
			"Garage.Area", "Garage.Cars", "Mas.Vnr.Area",
		},
		GroupMedian: []GroupRule{{Column: "Lot.Frontage", By: "Neighborhood"}},
		FillMode:    []string{"Electrical"},
	}
}

// CleanReport は Clean の結果の集計
type CleanReport struct {
	RowsIn  int
	RowsOut int
	// Filled は列ごとに埋めた欠損の数
	Filled map[string]int
}

// RowsDropped returns the number of rows removed by DropMissing.
func (r CleanReport) RowsDropped() int {
	return r.RowsIn - r.RowsOut
}

// Cleaner は Policy に従って欠損値を埋め、残った欠損を含む行を落とす
type Cleaner struct {
	Policy Policy
	logger log.Logger
}

// NewCleaner は新しい Cleaner を作成する。logger が nil ならパッケージのロガーを使う。
func NewCleaner(policy Policy, logger log.Logger) *Cleaner {
	if logger == nil {
		logger = log.GetLoggerWithName("dataset.Cleaner")
	}
	return &Cleaner{Policy: policy, logger: logger}
}

// Clean は規則を順に適用したあと DropMissing する。
// 行が落ちてもエラーにはならない（件数は info で記録する）。
func (c *Cleaner) Clean(df dataframe.DataFrame) (dataframe.DataFrame, CleanReport, error) {
	report := CleanReport{RowsIn: df.Nrow(), Filled: make(map[string]int)}
	var err error

	for _, col := range c.Policy.FillNone {
		if df, err = c.fillColumn(df, col, &report, func(s series.Series) (series.Series, int) {
			return fillConstant(s, NoneCategory)
		}); err != nil {
			return df, report, err
		}
	}
	for _, col := range c.Policy.FillZero {
		if df, err = c.fillColumn(df, col, &report, func(s series.Series) (series.Series, int) {
			return fillConstant(s, "0")
		}); err != nil {
			return df, report, err
		}
	}
	for _, rule := range c.Policy.GroupMedian {
		if !hasColumn(df, rule.By) {
			c.logger.Debug("group column not in frame, skipped", log.ColumnKey, rule.By)
			continue
		}
		groups := df.Col(rule.By)
		if df, err = c.fillColumn(df, rule.Column, &report, func(s series.Series) (series.Series, int) {
			return fillGroupMedian(s, groups)
		}); err != nil {
			return df, report, err
		}
	}
	for _, col := range c.Policy.FillMode {
		if df, err = c.fillColumn(df, col, &report, fillMode); err != nil {
			return df, report, err
		}
	}

	df, err = DropMissing(df)
	if err != nil {
		return df, report, err
	}
	report.RowsOut = df.Nrow()

	c.logger.Info("dropped rows with missing values",
		log.RowsDroppedKey, report.RowsDropped(),
		log.SamplesKey, report.RowsOut,
	)
	return df, report, nil
}

func (c *Cleaner) fillColumn(df dataframe.DataFrame, col string, report *CleanReport,
	fill func(series.Series) (series.Series, int)) (dataframe.DataFrame, error) {
	if !hasColumn(df, col) {
		c.logger.Debug("column not in frame, skipped", log.ColumnKey, col)
		return df, nil
	}
	filled, n := fill(df.Col(col))
	if n == 0 {
		return df, nil
	}
	df = df.Mutate(filled)
	if df.Err != nil {
		return df, errors.Wrapf(df.Err, "fill column %s", col)
	}
	report.Filled[col] += n
	return df, nil
}

// DropMissing は欠損値を1つでも含む行を取り除く
func DropMissing(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	missing := make([]bool, df.Nrow())
	for _, name := range df.Names() {
		for i, na := range df.Col(name).IsNaN() {
			if na {
				missing[i] = true
			}
		}
	}
	keep := make([]int, 0, len(missing))
	for i, m := range missing {
		if !m {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(missing) {
		return df, nil
	}
	out := df.Subset(keep)
	if out.Err != nil {
		return out, errors.Wrap(out.Err, "drop missing rows")
	}
	return out, nil
}

func isNumeric(s series.Series) bool {
	t := s.Type()
	return t == series.Int || t == series.Float
}

// fillConstant は欠損を value で埋める。数値列では value を数値として解釈する。
func fillConstant(s series.Series, value string) (series.Series, int) {
	na := s.IsNaN()
	if isNumeric(s) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			// 数値列に文字列を入れる場合は文字列列として扱う
			filled, n := fillRecords(s, na, func(int) string { return value })
			if n > 0 {
				errors.Warn(errors.NewDataConversionWarning(s.Name, string(s.Type()), string(series.String),
					"fill value "+strconv.Quote(value)+" is not numeric"))
			}
			return filled, n
		}
		vals := s.Float()
		n := 0
		for i := range vals {
			if na[i] {
				vals[i] = v
				n++
			}
		}
		if n == 0 {
			return s, 0
		}
		return series.New(vals, series.Float, s.Name), n
	}
	return fillRecords(s, na, func(int) string { return value })
}

func fillRecords(s series.Series, na []bool, value func(i int) string) (series.Series, int) {
	records := s.Records()
	n := 0
	for i := range records {
		if na[i] {
			records[i] = value(i)
			n++
		}
	}
	if n == 0 {
		return s, 0
	}
	return series.New(records, series.String, s.Name), n
}

// fillGroupMedian は groups の値ごとに非欠損値の中央値を求めて欠損を埋める。
// グループの値が全て欠損ならそのまま残す。グループ値自体が欠損の行も埋めない。
func fillGroupMedian(s series.Series, groups series.Series) (series.Series, int) {
	vals := s.Float()
	na := s.IsNaN()
	keys := categoryKeys(groups)
	keyNA := groups.IsNaN()

	observed := make(map[string][]float64)
	for i, v := range vals {
		if !na[i] && !keyNA[i] {
			observed[keys[i]] = append(observed[keys[i]], v)
		}
	}
	medians := make(map[string]float64, len(observed))
	for k, obs := range observed {
		medians[k] = median(obs)
	}

	n := 0
	for i := range vals {
		if !na[i] || keyNA[i] {
			continue
		}
		if m, ok := medians[keys[i]]; ok {
			vals[i] = m
			n++
		} else {
			vals[i] = math.NaN()
		}
	}
	if n == 0 {
		return s, 0
	}
	// 中央値は整数とは限らない
	return series.New(vals, series.Float, s.Name), n
}

// median は偶数個なら中央2値の平均を返す。values は並べ替えられる。
func median(values []float64) float64 {
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

// fillMode は最頻値で欠損を埋める。最頻値が複数あれば小さい方（文字列なら辞書順）。
func fillMode(s series.Series) (series.Series, int) {
	na := s.IsNaN()
	numeric := isNumeric(s)

	var records []string
	var vals []float64
	if numeric {
		vals = s.Float()
	} else {
		records = s.Records()
	}

	counts := make(map[string]int)
	numbers := make(map[string]float64)
	for i := range na {
		if na[i] {
			continue
		}
		if numeric {
			k := strconv.FormatFloat(vals[i], 'g', -1, 64)
			counts[k]++
			numbers[k] = vals[i]
		} else {
			counts[records[i]]++
		}
	}
	if len(counts) == 0 {
		return s, 0
	}

	candidates := make([]string, 0, len(counts))
	for k := range counts {
		candidates = append(candidates, k)
	}
	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := counts[candidates[a]], counts[candidates[b]]
		if ca != cb {
			return ca > cb
		}
		if numeric {
			return numbers[candidates[a]] < numbers[candidates[b]]
		}
		return candidates[a] < candidates[b]
	})
	mode := candidates[0]

	if numeric {
		n := 0
		for i := range vals {
			if na[i] {
				vals[i] = numbers[mode]
				n++
			}
		}
		if n == 0 {
			return s, 0
		}
		return series.New(vals, series.Float, s.Name), n
	}
	return fillRecords(s, na, func(int) string { return mode })
}
