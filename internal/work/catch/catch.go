// Package catch confines the effects of panics and [runtime.Goexit] calls made
// by a computation, turning abnormal exits into ordinary errors.
package catch

import (
	"errors"
	"fmt"
	"sync"
)

// ErrGoexit is the error reported for a computation that called
// [runtime.Goexit].
var ErrGoexit = errors.New("computation executed runtime.Goexit")

// PanicError is the error reported for a computation that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("computation panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Do runs fn in an independent goroutine and captures its exit behavior,
// isolating the caller from any panic or [runtime.Goexit].
func Do[T any](fn func() (T, error)) (r Result[T]) {
	r = Result[T]{exit: goexited}
	var wg sync.WaitGroup
	wg.Go(func() {
		var (
			complete bool
			value    T
			err      error
			panicval any
		)
		func() {
			defer func() {
				if !complete {
					panicval = recover()
				}
			}()
			value, err = fn()
			complete = true
		}()
		// A runtime.Goexit never gets this far.
		if complete {
			r = Result[T]{exit: returned, value: value, err: err}
		} else {
			r = Result[T]{exit: panicked, panicval: panicval}
		}
	})
	wg.Wait()
	return
}

type exit int

const (
	returned exit = iota
	panicked
	goexited
)

// Result captures the exit behavior of an isolated function. The zero Result
// captures the return of a zero T and nil error.
type Result[T any] struct {
	exit     exit
	value    T
	err      error
	panicval any
}

// Get returns the function's value and error. For a function that panicked or
// called [runtime.Goexit], Get returns a zero T with a [*PanicError] or
// [ErrGoexit] respectively.
func (r Result[T]) Get() (T, error) {
	switch r.exit {
	case panicked:
		var zero T
		return zero, &PanicError{Value: r.panicval}
	case goexited:
		var zero T
		return zero, ErrGoexit
	default:
		return r.value, r.err
	}
}

// Returned is true if this result captures a normal return.
func (r Result[T]) Returned() bool { return r.exit == returned }

// Panicked is true if this result captures a panic.
func (r Result[T]) Panicked() bool { return r.exit == panicked }

// Goexited is true if this result captures [runtime.Goexit].
func (r Result[T]) Goexited() bool { return r.exit == goexited }

// Recovered returns any panic value captured by this result.
func (r Result[T]) Recovered() any { return r.panicval }
