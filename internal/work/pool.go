package work

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.alexhamlin.co/memodispatch/internal/log"
)

// ErrPoolSize is returned when creating a [Pool] without any workers.
var ErrPoolSize = errors.New("pool size must be positive")

// ErrPoolClosed is returned when executing a job on a closed [Pool].
var ErrPoolClosed = errors.New("pool is closed")

// Job is a unit of work executed by a [Pool]. A job reports its own results
// through its side effects.
type Job func()

// Pool is a fixed-size set of worker goroutines pulling jobs from a shared,
// unbounded queue. A pool knows nothing about what its jobs do.
//
// A job that panics crashes the program; jobs that need to survive failures
// must recover them on their own.
type Pool struct {
	jobs *FIFO[Job]
	wg   sync.WaitGroup
	size int
}

// NewPool starts a pool with the provided number of workers.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrPoolSize, size)
	}
	p := &Pool{jobs: NewFIFO[Job](), size: size}
	for id := range size {
		p.wg.Go(func() { p.work(id) })
	}
	return p, nil
}

// Execute queues job for execution by the next available worker. It never
// blocks on the availability of a worker.
func (p *Pool) Execute(job Job) error {
	if err := p.jobs.Push(job); err != nil {
		return ErrPoolClosed
	}
	return nil
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return p.size
}

// Close stops accepting new jobs, and waits for the workers to finish all
// jobs queued before the call and exit.
func (p *Pool) Close() {
	p.jobs.Close()
	p.wg.Wait()
}

func (p *Pool) work(id int) {
	for {
		job, ok, _ := p.jobs.Pop(context.Background())
		if !ok {
			return
		}
		log.Verbosef("[pool] worker %d got a job; executing", id)
		job()
	}
}
