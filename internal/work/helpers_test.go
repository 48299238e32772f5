package work

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const timeout = 2 * time.Second

// async runs fn in a new goroutine. After the current test finishes, async
// waits a short time for that goroutine to exit, then panics if it remains
// blocked.
func async(t *testing.T, fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() { defer close(done); fn() }()
	assertEventuallyUnblocks(t, done)
	return done
}

// assertReceiveCount fails a test if it cannot receive a given number of values
// from a channel within a reasonable amount of time. This is often used to
// ensure that one or more goroutines have passed a specific point in their
// execution.
func assertReceiveCount[T any](t *testing.T, count int, ch <-chan T) {
	t.Helper()
	bail := time.After(timeout)
	for range count {
		select {
		case <-ch:
		case <-bail:
			t.Fatalf("did not finish receiving within %v", timeout)
		}
	}
}

// assertBlocked fails a test if done is closed after every other goroutine has
// had a chance to run. It is best-effort; see [forceRuntimeProgress].
func assertBlocked(t *testing.T, done <-chan struct{}) {
	t.Helper()
	forceRuntimeProgress()
	select {
	case <-done:
		t.Errorf("goroutine was not blocked")
	default:
	}
}

// assertUnblocks fails a test if done is not closed within a reasonable amount
// of time.
func assertUnblocks(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("goroutine still blocked after %v", timeout)
	}
}

// forceRuntimeProgress makes a best-effort attempt to force the Go runtime to
// make progress on all other goroutines in the system, ideally to the point at
// which they will next block if not preempted. It works best if no other
// goroutines are CPU-intensive or change GOMAXPROCS.
func forceRuntimeProgress() {
	gomaxprocs := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(gomaxprocs)
	for range runtime.NumGoroutine() {
		runtime.Gosched()
	}
}

// assertEventuallyUnblocks registers a test cleanup that panics if done remains
// blocked after a reasonable amount of time, to help assert that tests do not
// leak goroutines.
func assertEventuallyUnblocks(t *testing.T, done <-chan struct{}) {
	t.Cleanup(func() {
		select {
		case <-done:
		case <-time.After(timeout):
			panic("leaked a blocked goroutine from this test")
		}
	})
}

// collectEvents reads a dispatcher's result stream through its terminal event,
// and waits for the dispatcher to stop.
func collectEvents[K comparable, V any](t *testing.T, d *Dispatcher[K, V]) []Event[K, V] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	events, err := d.Results().Collect(ctx)
	require.NoError(t, err, "collecting results")
	assertUnblocks(t, d.Done())
	return events
}

func identity[K comparable](_ context.Context, key K) (K, error) {
	return key, nil
}

func makeIntKeys(n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = i
	}
	return keys
}
