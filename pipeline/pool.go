package pipeline

import (
	"context"
	"sync"
)

// Task is one input of a Pool run with its outcome.
type Task[T any, R any] struct {
	Input  T
	Result R
	Err    error
}

// WorkerFunc processes one input.
type WorkerFunc[T any, R any] func(ctx context.Context, input T) (R, error)

// WorkerFactory builds the function of one worker. Per-worker state (a
// parser, for instance) lives in its closure; release is called when the
// worker exits.
type WorkerFactory[T any, R any] func() (fn WorkerFunc[T, R], release func(), err error)

// Pool is a generic worker pool with a fixed number of workers.
type Pool[T any, R any] struct {
	workers int
	factory WorkerFactory[T, R]
	onDone  func()
}

// NewPool creates a new worker pool.
func NewPool[T any, R any](workers int, factory WorkerFactory[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers, factory: factory}
}

// OnDone registers a callback run after every finished input. It is called
// from worker goroutines.
func (p *Pool[T, R]) OnDone(fn func()) *Pool[T, R] {
	p.onDone = fn
	return p
}

// Execute runs all inputs and returns the results in input order. Inputs
// not processed because ctx was cancelled carry ctx's error. The error is
// only set when a worker could not be created.
func (p *Pool[T, R]) Execute(ctx context.Context, inputs []T) ([]Task[T, R], error) {
	results := make([]Task[T, R], len(inputs))
	for i, in := range inputs {
		results[i].Input = in
	}
	if len(inputs) == 0 {
		return results, nil
	}

	workers := p.workers
	if workers > len(inputs) {
		workers = len(inputs)
	}

	fns := make([]WorkerFunc[T, R], 0, workers)
	var releases []func()
	defer func() {
		for _, release := range releases {
			release()
		}
	}()
	for w := 0; w < workers; w++ {
		fn, release, err := p.factory()
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
		if release != nil {
			releases = append(releases, release)
		}
	}

	done := make([]bool, len(inputs))
	inputCh := make(chan int)
	var wg sync.WaitGroup
	for _, fn := range fns {
		wg.Add(1)
		go func(fn WorkerFunc[T, R]) {
			defer wg.Done()
			for idx := range inputCh {
				res, err := fn(ctx, inputs[idx])
				results[idx].Result = res
				results[idx].Err = err
				done[idx] = true
				if p.onDone != nil {
					p.onDone()
				}
			}
		}(fn)
	}

send:
	for i := range inputs {
		select {
		case <-ctx.Done():
			break send
		case inputCh <- i:
		}
	}
	close(inputCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range results {
			if !done[i] {
				results[i].Err = err
			}
		}
	}
	return results, nil
}
