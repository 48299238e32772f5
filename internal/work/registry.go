package work

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Registry maps keys to their [Gate], creating each gate on first reference.
// Gates are never removed, so a goroutine holding a gate can keep using it no
// matter what happens to the registry afterward.
type Registry[K comparable] struct {
	gates   map[K]*Gate
	gatesMu sync.Mutex

	inProgress mapset.Set[K]
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{
		gates:      make(map[K]*Gate),
		inProgress: mapset.NewSet[K](),
	}
}

// Gate returns the gate for key, atomically creating a Ready gate if the key
// has never been seen.
func (r *Registry[K]) Gate(key K) *Gate {
	r.gatesMu.Lock()
	defer r.gatesMu.Unlock()

	if g, ok := r.gates[key]; ok {
		return g
	}
	g := &Gate{onChange: func(s State) {
		if s == InProgress {
			r.inProgress.Add(key)
		} else {
			r.inProgress.Remove(key)
		}
	}}
	r.gates[key] = g
	return g
}

// Len returns the number of keys that have ever been referenced.
func (r *Registry[K]) Len() int {
	r.gatesMu.Lock()
	defer r.gatesMu.Unlock()
	return len(r.gates)
}

// InProgress returns a snapshot of the keys currently claimed for computation,
// in no particular order.
func (r *Registry[K]) InProgress() []K {
	return r.inProgress.ToSlice()
}
