package work

import (
	"fmt"
	"sync"
)

// State is the state of a single key's computation.
type State int

const (
	// Ready indicates that no computation is running for a key. Its result, if
	// any, is available from the cache.
	Ready State = iota
	// InProgress indicates that exactly one goroutine has claimed a key and is
	// computing its result.
	InProgress
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case InProgress:
		return "InProgress"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Gate couples a key's [State] with a notification mechanism, allowing
// goroutines to block until an in-progress computation for the key finishes.
// The zero value is a valid Gate in the Ready state.
//
// A Gate must not be copied after first use.
type Gate struct {
	mu    sync.Mutex
	state State

	// released is closed when the gate leaves InProgress, waking every
	// goroutine that observed that state. It is nil while the gate is Ready.
	released chan struct{}

	// onChange, if set, is called with the gate held after every transition.
	onChange func(State)
}

// WaitUntilReady blocks until the gate is Ready, and returns with the gate
// held. The caller must follow up with [Gate.Release] or
// [Gate.MarkInProgress].
//
// WaitUntilReady does not poll. It sleeps until the gate's next transition out
// of InProgress, then checks the state again.
func (g *Gate) WaitUntilReady() {
	for {
		g.mu.Lock()
		if g.state == Ready {
			return
		}
		released := g.released
		g.mu.Unlock()
		<-released
	}
}

// State returns the gate's current state. The result may be stale by the time
// the caller observes it.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Release unlocks a gate held by [Gate.WaitUntilReady] without changing its
// state.
func (g *Gate) Release() {
	g.mu.Unlock()
}

// MarkInProgress claims a held gate for the caller and releases it. It panics
// if the gate is not Ready, which can only result from a caller that does not
// hold the gate.
func (g *Gate) MarkInProgress() {
	defer g.mu.Unlock()
	if g.state != Ready {
		panic(fmt.Sprintf("work: claiming gate in state %v", g.state))
	}
	g.state = InProgress
	g.released = make(chan struct{})
	g.changed()
}

// MarkReadyAndNotify returns a claimed gate to Ready and wakes every goroutine
// waiting on it. It panics if the gate is not InProgress.
func (g *Gate) MarkReadyAndNotify() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != InProgress {
		panic(fmt.Sprintf("work: releasing claim on gate in state %v", g.state))
	}
	g.state = Ready
	close(g.released)
	g.released = nil
	g.changed()
}

func (g *Gate) changed() {
	if g.onChange != nil {
		g.onChange(g.state)
	}
}
