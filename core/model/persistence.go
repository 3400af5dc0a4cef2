package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// SaveModel はモデルをファイルに保存する。親ディレクトリが無ければ作成する。
//
// 使用例:
//
//	gbr := ensemble.NewGradientBoostingRegressor()
//	// ... モデルの学習 ...
//	err := model.SaveModel(gbr, "outputs/gbr_500_4_2_0.01.gob")
func SaveModel(model interface{}, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}

	if err := SaveModelToWriter(model, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "failed to close model file")
}

// LoadModel はファイルからモデルを読み込む
//
//	var gbr ensemble.GradientBoostingRegressor
//	err := model.LoadModel(&gbr, "outputs/gbr_500_4_2_0.01.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
