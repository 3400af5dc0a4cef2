// Package dataset は住宅価格データの読み込み・欠損値処理・カテゴリ変数の順序エンコーディングを提供します。
// 表データは gota の DataFrame で扱います。
package dataset

// DefaultRelativePath はデータフォルダからの CSV の相対パス
const DefaultRelativePath = "data/ames.csv"

// EncodedSuffix はエンコード済み列の接尾辞
const EncodedSuffix = "_E"

// Schema は応答変数・数値列・識別子列の定義
type Schema struct {
	// Response は目的変数の列名
	Response string

	// Numeric はそのまま特徴量に使う数値列。これ以外（Response を除く）はカテゴリ列として扱う。
	Numeric []string

	// Identifiers は読み込み時に捨てる列
	Identifiers []string
}

// AmesSchema は Ames 住宅データのスキーマを返す
func AmesSchema() Schema {
	return Schema{
		Response: "SalePrice",
		Numeric: []string{
			"Lot.Frontage", "Lot.Area", "Mas.Vnr.Area", "BsmtFin.SF.1", "BsmtFin.SF.2",
			"Bsmt.Unf.SF", "Total.Bsmt.SF", "X1st.Flr.SF", "X2nd.Flr.SF", "Low.Qual.Fin.SF",
			"Gr.Liv.Area", "Garage.Area", "Wood.Deck.SF", "Open.Porch.SF", "Enclosed.Porch",
			"X3Ssn.Porch", "Screen.Porch", "Pool.Area", "Misc.Val",
		},
		Identifiers: []string{"Order", "PID"},
	}
}

// FeatureNames は学習に使う列名（数値列、続いて各カテゴリ列の "<col>_E"）を返す
func (s Schema) FeatureNames(categorical []string) []string {
	names := make([]string, 0, len(s.Numeric)+len(categorical))
	names = append(names, s.Numeric...)
	for _, c := range categorical {
		names = append(names, c+EncodedSuffix)
	}
	return names
}

func (s Schema) isNumeric(name string) bool {
	for _, n := range s.Numeric {
		if n == name {
			return true
		}
	}
	return false
}
