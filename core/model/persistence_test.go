package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type meanModel struct {
	BaseEstimator
	Mean     float64
	Features []string
}

func TestSaveLoadModel(t *testing.T) {
	src := &meanModel{Mean: 180796.06, Features: []string{"Gr.Liv.Area", "Neighborhood_E"}}
	src.SetFitted()

	path := filepath.Join(t.TempDir(), "nested", "outputs", "gbr_500_4_2_0.01.gob")
	require.NoError(t, SaveModel(src, path))

	var dst meanModel
	require.NoError(t, LoadModel(&dst, path))
	assert.True(t, dst.IsFitted())
	assert.Equal(t, src.Mean, dst.Mean)
	assert.Equal(t, src.Features, dst.Features)
}

func TestLoadModel_MissingFile(t *testing.T) {
	var dst meanModel
	err := LoadModel(&dst, filepath.Join(t.TempDir(), "absent.gob"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestLoadModelFromReader_Garbage(t *testing.T) {
	var dst meanModel
	err := LoadModelFromReader(&dst, bytes.NewBufferString("not gob"))
	assert.Error(t, err)
}

func TestBaseEstimatorState(t *testing.T) {
	var e BaseEstimator
	assert.False(t, e.IsFitted())
	assert.Equal(t, "not_fitted", e.State.String())
	e.SetFitted()
	assert.True(t, e.IsFitted())
	e.Reset()
	assert.False(t, e.IsFitted())
}
