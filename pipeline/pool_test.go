package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestPoolPreservesOrder(t *testing.T) {
	var released atomic.Int32
	pool := NewPool[int, int](3, func() (WorkerFunc[int, int], func(), error) {
		return func(_ context.Context, n int) (int, error) {
			return n * n, nil
		}, func() { released.Add(1) }, nil
	})
	var done atomic.Int32
	pool.OnDone(func() { done.Add(1) })

	inputs := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tasks, err := pool.Execute(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for i, task := range tasks {
		if task.Input != inputs[i] || task.Result != inputs[i]*inputs[i] || task.Err != nil {
			t.Fatalf("tasks[%d] = %+v", i, task)
		}
	}
	if got := done.Load(); got != int32(len(inputs)) {
		t.Fatalf("OnDone called %d times, want %d", got, len(inputs))
	}
	if got := released.Load(); got != 3 {
		t.Fatalf("released %d workers, want 3", got)
	}
}

func TestPoolNoMoreWorkersThanInputs(t *testing.T) {
	var built atomic.Int32
	pool := NewPool[string, string](8, func() (WorkerFunc[string, string], func(), error) {
		built.Add(1)
		return func(_ context.Context, s string) (string, error) { return s, nil }, nil, nil
	})
	if _, err := pool.Execute(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := built.Load(); got != 2 {
		t.Fatalf("built %d workers, want 2", got)
	}

	tasks, err := pool.Execute(context.Background(), nil)
	if err != nil || len(tasks) != 0 {
		t.Fatalf("Execute(nil) = %v, %v", tasks, err)
	}
}

func TestPoolFactoryError(t *testing.T) {
	boom := errors.New("no parser")
	pool := NewPool[int, int](2, func() (WorkerFunc[int, int], func(), error) {
		return nil, nil, boom
	})
	if _, err := pool.Execute(context.Background(), []int{1}); !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want %v", err, boom)
	}
}

func TestPoolCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool[int, int](1, func() (WorkerFunc[int, int], func(), error) {
		return func(ctx context.Context, n int) (int, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if n == 2 {
				cancel()
			}
			return n, nil
		}, nil, nil
	})

	tasks, err := pool.Execute(ctx, []int{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if tasks[0].Err != nil || tasks[1].Err != nil {
		t.Fatalf("processed tasks carry errors: %+v", tasks[:2])
	}
	if !errors.Is(tasks[4].Err, context.Canceled) {
		t.Fatalf("tasks[4].Err = %v, want context.Canceled", tasks[4].Err)
	}
}

func TestPoolWorkerErrorsStayPerTask(t *testing.T) {
	bad := errors.New("bad input")
	pool := NewPool[int, int](2, func() (WorkerFunc[int, int], func(), error) {
		return func(_ context.Context, n int) (int, error) {
			if n%2 == 0 {
				return 0, bad
			}
			return n, nil
		}, nil, nil
	})
	tasks, err := pool.Execute(context.Background(), []int{1, 2, 3})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if tasks[0].Err != nil || !errors.Is(tasks[1].Err, bad) || tasks[2].Result != 3 {
		t.Fatalf("tasks = %+v", tasks)
	}
}
