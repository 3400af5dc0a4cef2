// Package parallel は範囲分割とジョブ単位の並列実行ヘルパーを提供します。
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Workers は n_jobs 形式の指定を実際のワーカー数に変換する。
// -1 以下や 0 は全CPUを意味し、items を超えない。
func Workers(nJobs, items int) int {
	n := nJobs
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ParallelizeN divides items into contiguous ranges, one per worker
// (n_jobs semantics, see Workers), and runs fn on each range concurrently.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	numWorkers := Workers(workers, items)

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) on the calling goroutine when
// items <= threshold or only one worker would run, and ParallelizeN otherwise.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if items <= threshold || Workers(workers, items) == 1 {
		fn(0, items)
		return
	}
	ParallelizeN(items, workers, fn)
}

// ForEach runs fn(ctx, i) for i in [0, n) with at most nJobs concurrent
// calls. It stops handing out indices once ctx is done or a call fails and
// returns the error of the lowest failing index, or ctx.Err().
func ForEach(ctx context.Context, n, nJobs int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	workers := Workers(nJobs, n)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, n)
	next := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if err := fn(ctx, i); err != nil {
					errs[i] = err
					cancel()
				}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}
