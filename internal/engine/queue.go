package engine

import (
	"sync"

	"github.com/roach88/retroloop/internal/remote"
)

// eventQueue is a thread-safe FIFO inbox for push events.
//
// The queue is unbounded: a burst of reconnect-replayed events must never
// block the transport goroutine that feeds it. Thread-safety is provided for
// the feeding side (pub/sub pump goroutines) while the coordinator's Run
// loop dequeues.
//
// The queue uses a channel for signaling so Run can wait with select and
// honor context cancellation.
type eventQueue struct {
	mu     sync.Mutex
	events []remote.Event
	closed bool
	signal chan struct{} // buffered size 1; coalesces multiple signals
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]remote.Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe. Returns false if the queue is closed.
func (q *eventQueue) Enqueue(ev remote.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, ev)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (remote.Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (remote.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return remote.Event{}, false
	}

	ev := q.events[0]

	// Nil out the slot so the backing array does not retain the event's
	// card pointer until reallocation.
	q.events[0] = remote.Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return ev, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
