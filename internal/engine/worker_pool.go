package engine

import (
	"context"
	"sync"
)

// WorkerPool runs submitted tasks on a fixed set of goroutines. Batch
// evaluation shares one pool so a burst of large batches cannot multiply
// goroutines without bound.
type WorkerPool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
	stop    sync.Once
}

// NewWorkerPool starts a pool with the given number of workers. The queue
// holds a few tasks per worker so submitters rarely block.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = 16
	}

	p := &WorkerPool{
		workers: workers,
		tasks:   make(chan func(), workers*4),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit enqueues a task, blocking while the queue is full. It gives up
// when the context expires so a wedged pool cannot stall the caller.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue and waits for in-flight tasks to finish
func (p *WorkerPool) Stop() {
	p.stop.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

// Workers returns the number of workers
func (p *WorkerPool) Workers() int {
	return p.workers
}
