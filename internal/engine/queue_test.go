package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retroloop/internal/remote"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	q.Enqueue(remote.Event{CardID: "1"})
	q.Enqueue(remote.Event{CardID: "2"})
	q.Enqueue(remote.Event{CardID: "3"})

	for _, want := range []string{"1", "2", "3"} {
		ev, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, ev.CardID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_EnqueueAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()

	assert.False(t, q.Enqueue(remote.Event{CardID: "1"}))
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_CloseIsIdempotent(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close() // must not panic on double close
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()

	// Multiple enqueues while nobody is waiting must not block.
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(remote.Event{CardID: fmt.Sprintf("%d", i)}))
	}
	assert.Equal(t, 10, q.Len())

	<-q.Wait()
	ev, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "0", ev.CardID)
}

func TestEventQueue_ConcurrentFeeders(t *testing.T) {
	q := newEventQueue()
	const feeders = 8
	const perFeeder = 50

	var wg sync.WaitGroup
	for i := 0; i < feeders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perFeeder; j++ {
				q.Enqueue(remote.Event{})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, feeders*perFeeder, q.Len())
}
