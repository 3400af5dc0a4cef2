package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRecover_WithPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "GradientBoostingRegressor.Fit")
		panic("boom")
	}

	err := fit()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "GradientBoostingRegressor.Fit", panicErr.Operation)
	assert.Equal(t, "boom", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in GradientBoostingRegressor.Fit: boom", panicErr.Error())
	assert.Contains(t, panicErr.String(), "Stack trace:")
}

func TestRecover_WithoutPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "Fit")
		return nil
	}
	assert.NoError(t, fit())
}

func TestRecover_KeepsExistingError(t *testing.T) {
	original := fmt.Errorf("original error")

	fit := func() (err error) {
		defer Recover(&err, "Fit")
		err = original
		panic("panic after error")
	}

	err := fit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in Fit")
	assert.True(t, errors.Is(err, original))
}

// gonum panics with mat.ErrShape on mismatched products; that is the panic
// estimators actually guard against.
func TestSafeExecute_GonumShapePanic(t *testing.T) {
	err := SafeExecute("matmul", func() error {
		var c mat.Dense
		c.Mul(mat.NewDense(2, 3, nil), mat.NewDense(2, 3, nil))
		return nil
	})
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "matmul", panicErr.Operation)
}

func TestSafeExecute_PassesThroughErrors(t *testing.T) {
	original := fmt.Errorf("function error")
	assert.Same(t, original, SafeExecute("op", func() error { return original }))
	assert.NoError(t, SafeExecute("op", func() error { return nil }))
}

func BenchmarkRecover_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		func() (err error) {
			defer Recover(&err, "BenchmarkOp")
			return nil
		}()
	}
}
