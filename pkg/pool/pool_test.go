package pool_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habedi/portal/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Run(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	var count atomic.Int64

	workerFunc := func(ctx context.Context, item int) error {
		count.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	}

	errs := pool.Run(context.Background(), items, 3, workerFunc)

	assert.Empty(t, errs)
	assert.Equal(t, int64(len(items)), count.Load())
}

func TestPool_CollectsErrors(t *testing.T) {
	items := []int{1, 2, 3, 4}
	expectedErr := errors.New("worker failed")

	workerFunc := func(ctx context.Context, item int) error {
		if item%2 == 0 {
			return expectedErr
		}
		return nil
	}

	errs := pool.Run(context.Background(), items, 2, workerFunc)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], expectedErr)
	assert.ErrorIs(t, errs[1], expectedErr)
}

func TestMap_KeepsItemOrder(t *testing.T) {
	items := []string{"/jobs", "/courses", "/users", "/municipalities", "/stats"}

	results := pool.Map(context.Background(), items, 3, func(ctx context.Context, item string) (int, error) {
		// Longer paths finish first.
		time.Sleep(time.Duration(20-len(item)) * time.Millisecond)
		return len(item), nil
	})

	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, len(items[i]), r.Value)
		assert.NoError(t, r.Err)
		assert.False(t, r.Skipped)
	}
}

func TestMap_PerItemErrors(t *testing.T) {
	boom := errors.New("boom")
	results := pool.Map(context.Background(), []int{1, 2, 3}, 2, func(ctx context.Context, item int) (int, error) {
		if item == 2 {
			return 0, boom
		}
		return item * 10, nil
	})

	assert.Equal(t, 10, results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, 30, results[2].Value)
}

func TestMap_EmptyItems(t *testing.T) {
	called := false
	results := pool.Map(context.Background(), []int{}, 5, func(ctx context.Context, item int) (int, error) {
		called = true
		return item, nil
	})

	assert.Empty(t, results)
	assert.False(t, called)
}

func TestMap_NonPositiveWorkersUsesOne(t *testing.T) {
	for _, workers := range []int{0, -3} {
		var calls atomic.Int32
		errs := pool.Run(context.Background(), []int{1, 2, 3}, workers, func(ctx context.Context, item int) error {
			calls.Add(1)
			return nil
		})
		assert.Empty(t, errs)
		assert.Equal(t, int32(3), calls.Load())
	}
}

func TestMap_MoreWorkersThanItems(t *testing.T) {
	var calls atomic.Int32
	errs := pool.Run(context.Background(), []int{1, 2, 3}, 10, func(ctx context.Context, item int) error {
		calls.Add(1)
		return nil
	})

	assert.Empty(t, errs)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPool_ContextCancellation(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	var processed atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := pool.Map(ctx, items, runtime.NumCPU(), func(ctx context.Context, item int) (int, error) {
		processed.Add(1)
		if item == 0 {
			cancel()
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
		return item, nil
	})

	assert.Less(t, processed.Load(), int64(len(items)), "pool should stop starting items after cancel")
	skipped := 0
	for _, r := range results {
		if r.Skipped {
			skipped++
		}
	}
	assert.Equal(t, len(items)-int(processed.Load()), skipped)
}
