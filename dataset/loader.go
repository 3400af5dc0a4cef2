package dataset

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// missingTokens は欠損として読む文字列
var missingTokens = []string{"NA", "NaN", "", "<nil>"}

// Load は dataFolder/data/ames.csv を読み込み、識別子列を落とした DataFrame を返す
func Load(ctx context.Context, dataFolder string, schema Schema) (dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return dataframe.DataFrame{}, err
	}
	path := filepath.Join(dataFolder, DefaultRelativePath)
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	df, err := ReadCSV(f, schema)
	if err != nil {
		return dataframe.DataFrame{}, errors.Wrapf(err, "read dataset %s", path)
	}
	return df, nil
}

// ReadCSV は r から CSV を読み込む。型は自動判定し、NA・空文字などは欠損として扱う。
func ReadCSV(r io.Reader, schema Schema) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(missingTokens),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, errors.Wrap(df.Err, "parse csv")
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, errors.NewModelError("dataset.ReadCSV", "no rows", errors.ErrEmptyData)
	}

	var drop []string
	for _, id := range schema.Identifiers {
		if hasColumn(df, id) {
			drop = append(drop, id)
		}
	}
	if len(drop) > 0 {
		df = df.Drop(drop)
		if df.Err != nil {
			return dataframe.DataFrame{}, errors.Wrap(df.Err, "drop identifier columns")
		}
	}
	return df, nil
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}
