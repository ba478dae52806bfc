// Package pool runs a function over a slice of items with a bounded number of goroutines.
package pool

import (
	"context"
	"sync"
)

// WorkerFunc processes one item.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// MapFunc processes one item and produces a value.
type MapFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Result is the outcome for the item at Index.
type Result[R any] struct {
	Index int
	Value R
	Err   error
	// Skipped is set for items never handed to a worker because ctx was cancelled.
	Skipped bool
}

// Map applies fn to every item using numWorkers goroutines (at least one).
// The results are in item order. Once ctx is done no new items are started.
func Map[T, R any](ctx context.Context, items []T, numWorkers int, fn MapFunc[T, R]) []Result[R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	results := make([]Result[R], len(items))
	for i := range results {
		results[i] = Result[R]{Index: i, Skipped: true}
	}

	var wg sync.WaitGroup
	taskChan := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskChan {
				if ctx.Err() != nil {
					continue
				}
				v, err := fn(ctx, items[i])
				// Each index is written by exactly one worker.
				results[i] = Result[R]{Index: i, Value: v, Err: err}
			}
		}()
	}

OUT:
	for i := range items {
		select {
		case taskChan <- i:
		case <-ctx.Done():
			break OUT
		}
	}
	close(taskChan)
	wg.Wait()
	return results
}

// Run applies workerFunc to every item and returns the errors it produced.
func Run[T any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T]) []error {
	results := Map(ctx, items, numWorkers, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, workerFunc(ctx, item)
	})
	var allErrors []error
	for _, r := range results {
		if r.Err != nil {
			allErrors = append(allErrors, r.Err)
		}
	}
	return allErrors
}
