package recorder

import (
	"sync"

	"github.com/roach88/chronicle/internal/record"
)

// eventQueue is an unbounded, mutex-guarded FIFO.
//
// Producers append under the lock, so events from one producer keep their
// order. The single consumer takes everything at once with DrainAll.
type eventQueue struct {
	mu     sync.Mutex
	events []record.Event
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{events: make([]record.Event, 0, 256)}
}

// Enqueue appends e. It returns false once the queue is closed.
func (q *eventQueue) Enqueue(e record.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	return true
}

// DrainAll removes and returns every queued event.
func (q *eventQueue) DrainAll() []record.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	batch := q.events
	q.events = make([]record.Event, 0, cap(batch))
	return batch
}

func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further enqueues. Queued events stay drainable.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
