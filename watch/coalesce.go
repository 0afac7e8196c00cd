package watch

import (
	"context"
	"sync"
)

// coalescer serializes reconciliation runs. A request that arrives while a
// run is in flight is merged into the pending set, and one more run picks
// up everything pending with the latest extraction state.
type coalescer struct {
	run func(ctx context.Context, only map[string]bool)

	mu      sync.Mutex
	running bool
	pending bool
	// all is set when some request asked for every namespace.
	all  bool
	only map[string]bool

	wg sync.WaitGroup
}

func newCoalescer(run func(ctx context.Context, only map[string]bool)) *coalescer {
	return &coalescer{run: run}
}

// trigger requests a run for the namespaces in only; nil means all.
func (c *coalescer) trigger(ctx context.Context, only map[string]bool) {
	c.mu.Lock()
	c.pending = true
	if only == nil {
		c.all = true
	} else if !c.all {
		if c.only == nil {
			c.only = make(map[string]bool)
		}
		for ns := range only {
			c.only[ns] = true
		}
	}
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			c.mu.Lock()
			if !c.pending || ctx.Err() != nil {
				c.running = false
				c.mu.Unlock()
				return
			}
			only := c.only
			if c.all {
				only = nil
			}
			c.pending, c.all, c.only = false, false, nil
			c.mu.Unlock()

			c.run(ctx, only)
		}
	}()
}

// wait blocks until no run is in flight.
func (c *coalescer) wait() {
	c.wg.Wait()
}
