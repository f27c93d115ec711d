package indexqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

type task struct {
	ctx  context.Context
	proc backend.Processor
}

// Pool runs backend processors on a fixed set of goroutines. Submitted units
// are not awaited: their failures go to the pool's error handler.
type Pool struct {
	tasks   chan task
	onError func(error)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts workers goroutines reading from a queue of depth units.
func NewPool(workers, depth int, onError func(error)) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if depth < 0 {
		depth = 0
	}
	if onError == nil {
		onError = func(error) {}
	}

	p := &Pool{
		tasks:   make(chan task, depth),
		onError: onError,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				p.run(t)
			}
		}()
	}

	return p
}

// Submit queues proc for execution and returns without waiting for it. It
// blocks only while the queue is full, or until ctx is done. The unit runs
// with the values of ctx but is not canceled with it.
func (p *Pool) Submit(ctx context.Context, proc backend.Processor) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task{ctx: context.WithoutCancel(ctx), proc: proc}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting units, waits for queued units to finish and returns.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.onError(fmt.Errorf("backend processor panicked: %v", r))
		}
	}()

	if err := t.proc(t.ctx); err != nil {
		p.onError(err)
	}
}
