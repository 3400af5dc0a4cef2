package training

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sidecar はモデルファイルと並べて保存するメタデータ
type Sidecar struct {
	RunID     string                    `json:"run_id"`
	Model     string                    `json:"model"`
	Params    map[string]interface{}    `json:"params"`
	Features  []string                  `json:"features"`
	Encoders  map[string]map[string]int `json:"encoders"`
	Metrics   map[string]float64        `json:"metrics"`
	RowsIn    int                       `json:"rows_in"`
	RowsOut   int                       `json:"rows_out"`
	TrainRows int                       `json:"train_rows"`
	TestRows  int                       `json:"test_rows"`
	CreatedAt time.Time                 `json:"created_at"`
}

// NewSidecar builds the sidecar of a finished job.
func NewSidecar(res *Result) Sidecar {
	enc := make(map[string]map[string]int, len(res.Encoders))
	for col, e := range res.Encoders {
		enc[col] = e.Mapping()
	}
	return Sidecar{
		RunID:     res.RunID,
		Model:     "GradientBoostingRegressor",
		Params:    res.Model.GetParams(),
		Features:  res.FeatureNames,
		Encoders:  enc,
		Metrics:   res.Metrics,
		RowsIn:    res.Clean.RowsIn,
		RowsOut:   res.Clean.RowsOut,
		TrainRows: res.TrainRows,
		TestRows:  res.TestRows,
		CreatedAt: time.Now().UTC(),
	}
}

// WriteSidecar writes s as indented JSON.
func WriteSidecar(path string, s Sidecar) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode sidecar")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write sidecar %s", path)
	}
	return nil
}

// ReadSidecar reads a sidecar written by WriteSidecar.
func ReadSidecar(path string) (Sidecar, error) {
	var s Sidecar
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "read sidecar %s", path)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "decode sidecar %s", path)
	}
	return s, nil
}
