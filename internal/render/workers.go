package render

import (
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// workers bounds the goroutines a pipeline runs across all of its frames.
// Each batch is a conc pool whose Wait is the batch barrier; the shared
// semaphore keeps concurrent frames under the same limit.
type workers struct {
	max int
	sem chan struct{}

	mu     sync.Mutex
	closed bool
}

func newWorkers(max int) *workers {
	if max < 1 {
		max = 1
	}
	return &workers{max: max, sem: make(chan struct{}, max)}
}

// run executes every task and returns once all of them have finished.
// It reports false without running anything once the workers are closed.
func (w *workers) run(tasks []func()) bool {
	if len(tasks) == 0 {
		return true
	}
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return false
	}

	p := pool.New().WithMaxGoroutines(min(w.max, len(tasks)))
	for _, task := range tasks {
		p.Go(func() {
			w.sem <- struct{}{}
			defer func() { <-w.sem }()
			task()
		})
	}
	p.Wait()
	return true
}

func (w *workers) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
