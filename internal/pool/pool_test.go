package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPreservesInputOrder(t *testing.T) {
	// Later tasks finish first; results must still line up with input order.
	tasks := make([]Task[int], 10)
	for i := range tasks {
		n := i
		tasks[n] = func(ctx context.Context) int {
			time.Sleep(time.Duration(10-n) * 5 * time.Millisecond)
			return n * 100
		}
	}

	results := Run(context.Background(), tasks, 3)
	if len(results) != 10 {
		t.Fatalf("got %d results, want 10", len(results))
	}
	for i, r := range results {
		if r != i*100 {
			t.Errorf("results[%d] = %d, want %d", i, r, i*100)
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	results := Run[int](context.Background(), nil, 4)
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int32

	tasks := make([]Task[struct{}], 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) struct{} {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}
		}
	}

	Run(context.Background(), tasks, limit)
	if p := peak.Load(); p > limit {
		t.Fatalf("peak concurrency %d exceeded limit %d", p, limit)
	}
}

func TestRunLimitBelowOne(t *testing.T) {
	tasks := []Task[int]{
		func(ctx context.Context) int { return 1 },
		func(ctx context.Context) int { return 2 },
	}
	results := Run(context.Background(), tasks, 0)
	if results[0] != 1 || results[1] != 2 {
		t.Fatalf("got %v, want [1 2]", results)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task[int]{
		func(ctx context.Context) int { return 1 },
	}
	// Must not hang; unstarted slots keep their zero value.
	results := Run(ctx, tasks, 1)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}
