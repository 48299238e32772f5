package work

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"go.alexhamlin.co/memodispatch/internal/log"
	"go.alexhamlin.co/memodispatch/internal/work/catch"
)

// ErrExiting is returned when submitting work to a [Dispatcher] after
// [Dispatcher.RequestExit]. Late work is rejected rather than queued or
// silently dropped.
var ErrExiting = errors.New("dispatcher is exiting")

// Handler is the type for a dispatcher's compute function. The context passed
// to a handler is never canceled; once a key is claimed, its computation always
// runs to completion.
type Handler[K comparable, V any] func(context.Context, K) (V, error)

// Provenance distinguishes freshly computed results from cached ones.
type Provenance int

const (
	// New marks the one result computed by a handler call for its key.
	New Provenance = iota
	// FromCache marks a result served from the cache.
	FromCache
)

func (p Provenance) String() string {
	switch p {
	case New:
		return "New"
	case FromCache:
		return "FromCache"
	default:
		return fmt.Sprintf("Provenance(%d)", int(p))
	}
}

// Event is a single item in a dispatcher's result stream: either the result of
// one submitted request, or the terminal event that ends the stream.
type Event[K comparable, V any] struct {
	Key        K
	Value      V
	Err        error
	Provenance Provenance

	// Exited marks the terminal event. No other fields are set.
	Exited bool
}

func (e Event[K, V]) String() string {
	switch {
	case e.Exited:
		return "Exited"
	case e.Err != nil:
		return fmt.Sprintf("Result(%v, %v, error: %v)", e.Key, e.Provenance, e.Err)
	default:
		return fmt.Sprintf("Result(%v, %v)", e.Key, e.Provenance)
	}
}

// outcome is what the cache holds for a key. Failed computations are cached
// like any other and are never retried.
type outcome[V any] struct {
	value V
	err   error
}

type request[K comparable] struct {
	key  K
	exit bool
}

// Dispatcher is a memoizing work dispatcher. It computes the result for each
// submitted key at most once, using a fixed-size [Pool], and serves every
// duplicate request for a key from a shared cache. Requests for a key whose
// computation is in flight wait for it to finish rather than starting their
// own.
//
// Results are delivered in a [Stream], which ends with a single Exited event
// once [Dispatcher.RequestExit] has been called and every request submitted
// before it has produced a result.
type Dispatcher[K comparable, V any] struct {
	handle   Handler[K, V]
	ctx      context.Context
	pool     *Pool
	registry *Registry[K]
	cache    *Cache[K, outcome[V]]
	logger   *zap.SugaredLogger

	inbox       *FIFO[request[K]]
	completions chan struct{}
	results     *FIFO[Event[K, V]]
	stream      *Stream[K, V]
	done        chan struct{}

	// outstanding and exiting are owned by the run loop. Checking for
	// termination is part of the same step as every update to either of them.
	outstanding int
	exiting     bool

	outstandingGauge atomic.Int64
	submitted        atomic.Uint64
	computed         atomic.Uint64
	hits             atomic.Uint64
}

// NewDispatcher starts a dispatcher that computes results with handle, using a
// pool of the provided number of workers. It returns an error wrapping
// [ErrPoolSize] if workers <= 0.
func NewDispatcher[K comparable, V any](workers int, handle Handler[K, V]) (*Dispatcher[K, V], error) {
	pool, err := NewPool(workers)
	if err != nil {
		return nil, err
	}
	results := NewFIFO[Event[K, V]]()
	d := &Dispatcher[K, V]{
		handle:      handle,
		ctx:         context.Background(),
		pool:        pool,
		registry:    NewRegistry[K](),
		cache:       NewCache[K, outcome[V]](),
		logger:      log.Named("dispatch"),
		inbox:       NewFIFO[request[K]](),
		completions: make(chan struct{}),
		results:     results,
		stream:      &Stream[K, V]{events: results},
		done:        make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Submit requests the result for key without waiting for it. The result will
// appear in the dispatcher's [Stream]. Submit returns [ErrExiting] if
// [Dispatcher.RequestExit] has already been called.
func (d *Dispatcher[K, V]) Submit(key K) error {
	if err := d.inbox.Push(request[K]{key: key}); err != nil {
		return ErrExiting
	}
	d.submitted.Add(1)
	return nil
}

// RequestExit asks the dispatcher to shut down once all previously submitted
// work has produced results. Calls after the first have no effect.
func (d *Dispatcher[K, V]) RequestExit() {
	if err := d.inbox.PushAndClose(request[K]{exit: true}); err != nil {
		d.logger.Debug("ignoring repeated exit request")
	}
}

// Results returns the dispatcher's result stream.
func (d *Dispatcher[K, V]) Results() *Stream[K, V] {
	return d.stream
}

// Done returns a channel that is closed once the dispatcher has emitted its
// terminal event and its workers have stopped.
func (d *Dispatcher[K, V]) Done() <-chan struct{} {
	return d.done
}

// Stats describes the work handled by a [Dispatcher].
type Stats[K comparable] struct {
	// Outstanding is the number of jobs submitted to the pool that have not yet
	// reported completion.
	Outstanding int64
	// Submitted is the number of accepted calls to Submit.
	Submitted uint64
	// Computed is the number of handler calls that have finished.
	Computed uint64
	// CacheHits is the number of requests served from the cache.
	CacheHits uint64
	// Keys is the number of distinct keys ever requested by a job.
	Keys int
	// InProgress lists the keys whose handlers are currently running.
	InProgress []K
}

// Stats returns a snapshot of the dispatcher's counters. The fields are read
// independently and may not be mutually consistent while work is in flight.
func (d *Dispatcher[K, V]) Stats() Stats[K] {
	return Stats[K]{
		Outstanding: d.outstandingGauge.Load(),
		Submitted:   d.submitted.Load(),
		Computed:    d.computed.Load(),
		CacheHits:   d.hits.Load(),
		Keys:        d.registry.Len(),
		InProgress:  d.registry.InProgress(),
	}
}

func (d *Dispatcher[K, V]) run() {
	defer func() {
		d.pool.Close()
		close(d.done)
	}()

	for {
		select {
		case <-d.inbox.Ready():
			for {
				req, ok := d.inbox.TryPop()
				if !ok {
					break
				}
				if d.handleRequest(req) {
					return
				}
			}

		case <-d.completions:
			if d.handleCompletion() {
				return
			}
		}
	}
}

// handleRequest processes one inbox message, and reports whether the run loop
// should stop.
func (d *Dispatcher[K, V]) handleRequest(req request[K]) (stop bool) {
	if req.exit {
		d.exiting = true
		d.logger.Infof("exit requested with %d jobs outstanding", d.outstanding)
		return d.exitIfDrained()
	}

	d.outstanding++
	d.outstandingGauge.Store(int64(d.outstanding))
	key := req.key
	if err := d.pool.Execute(func() { d.serve(key) }); err != nil {
		panic(fmt.Sprintf("work: dispatching to pool: %v", err))
	}
	return false
}

// handleCompletion processes one job completion signal, and reports whether the
// run loop should stop.
func (d *Dispatcher[K, V]) handleCompletion() (stop bool) {
	if d.outstanding == 0 {
		panic("work: received job completion with no jobs outstanding")
	}
	d.outstanding--
	d.outstandingGauge.Store(int64(d.outstanding))
	return d.exitIfDrained()
}

func (d *Dispatcher[K, V]) exitIfDrained() bool {
	if !d.exiting || d.outstanding > 0 {
		return false
	}
	if err := d.results.PushAndClose(Event[K, V]{Exited: true}); err != nil {
		panic("work: emitting more than one terminal event")
	}
	d.logger.Info("all work drained; exited")
	return true
}

// serve runs in a pool worker to produce the result of a single request.
func (d *Dispatcher[K, V]) serve(key K) {
	defer func() { d.completions <- struct{}{} }()

	gate := d.registry.Gate(key)
	gate.WaitUntilReady()

	if out, ok := d.cache.Get(key); ok {
		gate.Release()
		d.hits.Add(1)
		d.report(Event[K, V]{Key: key, Value: out.value, Err: out.err, Provenance: FromCache})
		return
	}

	// Nobody has computed this key, and nobody else can claim it while we hold
	// the gate.
	gate.MarkInProgress()

	value, err := catch.Do(func() (V, error) { return d.handle(d.ctx, key) }).Get()
	if err != nil {
		d.logger.Warnf("computing %v: %v", key, err)
	}
	d.cache.Put(key, outcome[V]{value: value, err: err})
	d.computed.Add(1)

	// The New result must be in the stream before any waiter can wake up and
	// report a FromCache result for the same key.
	d.report(Event[K, V]{Key: key, Value: value, Err: err, Provenance: New})
	gate.MarkReadyAndNotify()
}

func (d *Dispatcher[K, V]) report(ev Event[K, V]) {
	if err := d.results.Push(ev); err != nil {
		panic(fmt.Sprintf("work: reporting %v after terminal event", ev))
	}
}
