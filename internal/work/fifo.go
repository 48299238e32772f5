package work

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

// ErrFIFOClosed is returned when pushing to a closed [FIFO].
var ErrFIFOClosed = errors.New("push to closed fifo")

// FIFO is an unbounded first-in, first-out queue safe for use by multiple
// producers and consumers. Push never blocks beyond brief contention for the
// queue's lock.
//
// A FIFO must be created with [NewFIFO].
type FIFO[T any] struct {
	mu     sync.Mutex
	items  deque.Deque[T]
	closed bool

	// ready carries a single readiness token. Every push tries to deposit one
	// without blocking, and every consumer that leaves items behind passes the
	// token on, so that no waiting consumer misses a push.
	ready chan struct{}
	done  chan struct{}
}

// NewFIFO creates an empty FIFO.
func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends v to the back of the queue, or returns [ErrFIFOClosed] if the
// queue is closed.
func (f *FIFO[T]) Push(v T) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFIFOClosed
	}
	f.items.PushBack(v)
	f.mu.Unlock()
	f.signal()
	return nil
}

// PushAndClose appends v as the final item of the queue and closes it in a
// single step, so that no other push can land behind v.
func (f *FIFO[T]) PushAndClose(v T) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFIFOClosed
	}
	f.items.PushBack(v)
	f.closed = true
	f.mu.Unlock()
	close(f.done)
	f.signal()
	return nil
}

// Close prevents further pushes. Items already queued remain available to
// consumers. Close is idempotent.
func (f *FIFO[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
}

// TryPop removes and returns the item at the front of the queue without
// blocking. ok is false if the queue is empty.
func (f *FIFO[T]) TryPop() (v T, ok bool) {
	f.mu.Lock()
	if f.items.Len() == 0 {
		f.mu.Unlock()
		return
	}
	v, ok = f.items.PopFront(), true
	more := f.items.Len() > 0
	f.mu.Unlock()
	if more {
		f.signal()
	}
	return
}

// Pop removes and returns the item at the front of the queue, blocking until
// one is available. It returns ok == false once the queue is both closed and
// drained, and ctx.Err() if ctx is canceled first.
func (f *FIFO[T]) Pop(ctx context.Context) (v T, ok bool, err error) {
	for {
		if v, ok = f.TryPop(); ok {
			return v, true, nil
		}
		select {
		case <-f.ready:
		case <-f.done:
			if v, ok = f.TryPop(); ok {
				return v, true, nil
			}
			return v, false, nil
		case <-ctx.Done():
			return v, false, ctx.Err()
		}
	}
}

// Ready returns a channel that receives a value when the queue may have items
// available for [FIFO.TryPop]. Wakeups may be spurious.
func (f *FIFO[T]) Ready() <-chan struct{} {
	return f.ready
}

// Len returns the number of items currently queued.
func (f *FIFO[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Len()
}

func (f *FIFO[T]) signal() {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}
