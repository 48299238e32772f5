package work

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFIFOOrder(t *testing.T) {
	f := NewFIFO[int]()
	for i := range 5 {
		assert.NoError(t, f.Push(i))
	}
	assert.Equal(t, 5, f.Len())

	var got []int
	for {
		v, ok := f.TryPop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	if diff := cmp.Diff(makeIntKeys(5), got); diff != "" {
		t.Errorf("unexpected pop order (-want +got): %s", diff)
	}
}

func TestFIFOPopBlocksUntilPush(t *testing.T) {
	f := NewFIFO[string]()
	var got string
	done := async(t, func() { got, _, _ = f.Pop(context.Background()) })
	assertBlocked(t, done)

	f.Push("hello")
	assertUnblocks(t, done)
	assert.Equal(t, "hello", got)
}

func TestFIFOPopCanceled(t *testing.T) {
	f := NewFIFO[int]()
	ctx, cancel := context.WithCancel(context.Background())
	var err error
	done := async(t, func() { _, _, err = f.Pop(ctx) })
	assertBlocked(t, done)

	cancel()
	assertUnblocks(t, done)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFIFOClose(t *testing.T) {
	f := NewFIFO[int]()
	f.Push(1)
	f.Close()
	f.Close()

	assert.ErrorIs(t, f.Push(2), ErrFIFOClosed)
	assert.ErrorIs(t, f.PushAndClose(3), ErrFIFOClosed)

	v, ok, err := f.Pop(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok, err = f.Pop(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok, "popped from a closed and drained fifo")
}

func TestFIFOPushAndCloseWakesConsumers(t *testing.T) {
	f := NewFIFO[int]()
	results := make(chan bool, 2)
	for range 2 {
		async(t, func() {
			_, ok, _ := f.Pop(context.Background())
			results <- ok
		})
	}
	forceRuntimeProgress()

	f.PushAndClose(42)
	got := []bool{<-results, <-results}
	assert.ElementsMatch(t, []bool{true, false}, got)
}

func TestFIFOManyProducersAndConsumers(t *testing.T) {
	const (
		producers = 8
		perWorker = 500
	)
	f := NewFIFO[int]()

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for range producers {
		wg.Go(func() {
			for {
				v, ok, _ := f.Pop(context.Background())
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		})
	}

	var pushers sync.WaitGroup
	for p := range producers {
		pushers.Go(func() {
			for i := range perWorker {
				f.Push(p*perWorker + i)
			}
		})
	}
	pushers.Wait()
	f.Close()
	assertUnblocks(t, async(t, wg.Wait))

	assert.Len(t, seen, producers*perWorker)
	for v, count := range seen {
		if count != 1 {
			t.Errorf("value %d popped %d times", v, count)
		}
	}
}
