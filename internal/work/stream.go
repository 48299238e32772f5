package work

import (
	"context"
	"errors"
	"iter"
)

// ErrStreamClosed is returned when reading from a [Stream] after its terminal
// event.
var ErrStreamClosed = errors.New("result stream closed")

// Stream is the FIFO sequence of events produced by a [Dispatcher]. Events for
// different keys arrive in no particular order, but a FromCache event for a key
// always follows some New event for that key. The stream ends with exactly one
// event whose Exited field is true.
type Stream[K comparable, V any] struct {
	events *FIFO[Event[K, V]]
}

// Next blocks until the next event is available and returns it. After the
// terminal event, Next returns [ErrStreamClosed]. If ctx is canceled first,
// Next returns ctx.Err().
func (s *Stream[K, V]) Next(ctx context.Context) (Event[K, V], error) {
	ev, ok, err := s.events.Pop(ctx)
	if err != nil {
		return ev, err
	}
	if !ok {
		return ev, ErrStreamClosed
	}
	return ev, nil
}

// TryNext returns the next event if one is available without blocking.
func (s *Stream[K, V]) TryNext() (Event[K, V], bool) {
	return s.events.TryPop()
}

// All iterates over the remaining events up to and including the terminal
// event. If ctx is canceled or the stream has already ended, the final
// iteration yields the corresponding error.
func (s *Stream[K, V]) All(ctx context.Context) iter.Seq2[Event[K, V], error] {
	return func(yield func(Event[K, V], error) bool) {
		for {
			ev, err := s.Next(ctx)
			if !yield(ev, err) || err != nil || ev.Exited {
				return
			}
		}
	}
}

// Collect reads every remaining event up to the terminal event, which is not
// included in the result.
func (s *Stream[K, V]) Collect(ctx context.Context) ([]Event[K, V], error) {
	var events []Event[K, V]
	for ev, err := range s.All(ctx) {
		if err != nil {
			return events, err
		}
		if ev.Exited {
			break
		}
		events = append(events, ev)
	}
	return events, nil
}
