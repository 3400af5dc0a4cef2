package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkers(t *testing.T) {
	tests := []struct {
		name  string
		nJobs int
		items int
		want  int
	}{
		{"all cpus capped by items", -1, 1, 1},
		{"explicit", 2, 10, 2},
		{"more jobs than items", 8, 3, 3},
		{"zero items", 4, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Workers(tt.nJobs, tt.items))
		})
	}
	assert.Equal(t, min(runtime.NumCPU(), 1000), Workers(-1, 1000))
}

func TestParallelizeN_CoversAllItems(t *testing.T) {
	seen := make([]int32, 97)
	ParallelizeN(len(seen), 4, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})
	for i, v := range seen {
		assert.Equal(t, int32(1), v, "item %d", i)
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	tests := []struct {
		name      string
		items     int
		threshold int
		workers   int
		wantCalls int32
	}{
		{"below threshold", 10, 100, 4, 1},
		{"single worker", 10, 2, 1, 1},
		{"parallel", 12, 2, 4, 4},
		{"no items", 0, 0, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls, covered int32
			ParallelizeWithThreshold(tt.items, tt.threshold, tt.workers, func(start, end int) {
				atomic.AddInt32(&calls, 1)
				atomic.AddInt32(&covered, int32(end-start))
			})
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, int32(tt.items), covered)
		})
	}
}

func TestForEach(t *testing.T) {
	var sum int64
	err := ForEach(context.Background(), 10, 3, func(_ context.Context, i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(45), sum)
}

func TestForEach_ReturnsError(t *testing.T) {
	boom := errors.New("fold failed")
	err := ForEach(context.Background(), 5, 1, func(_ context.Context, i int) error {
		if i == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ForEach(ctx, 5, 2, func(_ context.Context, i int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
