// Package pool runs ordered task lists with bounded parallelism.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is a unit of work. Tasks own their error handling: a task that can
// fail must catch the failure and return a fallback value, so the pool never
// needs a partial-failure policy.
type Task[T any] func(ctx context.Context) T

// Run executes all tasks with at most limit in flight at any time and
// returns their results in input order, regardless of completion order.
// Empty input returns an empty slice immediately. A limit below 1 is treated
// as 1. If ctx is cancelled before every task has started, the unstarted
// tasks' slots keep their zero value.
func Run[T any](ctx context.Context, tasks []Task[T], limit int) []T {
	results := make([]T, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = task(ctx)
		}()
	}
	wg.Wait()
	return results
}
