package recorder

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/record"
)

func TestEventQueue_DrainAllFIFO(t *testing.T) {
	q := newEventQueue()

	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(record.Event{ID: string(rune('A' + i))}))
	}

	batch := q.DrainAll()
	require.Len(t, batch, 3)
	assert.Equal(t, "A", batch[0].ID)
	assert.Equal(t, "B", batch[1].ID)
	assert.Equal(t, "C", batch[2].ID)

	assert.Nil(t, q.DrainAll(), "second drain should be empty")
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_DrainDoesNotAlias(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(record.Event{ID: "first"})
	batch := q.DrainAll()

	q.Enqueue(record.Event{ID: "second"})
	assert.Equal(t, "first", batch[0].ID)
}

func TestEventQueue_EnqueueAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(record.Event{ID: "kept"})
	q.Close()

	assert.False(t, q.Enqueue(record.Event{ID: "late"}), "enqueue after close should return false")
	batch := q.DrainAll()
	require.Len(t, batch, 1)
	assert.Equal(t, "kept", batch[0].ID)
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(record.Event{ID: fmt.Sprintf("%d-%d", producerID, i)})
			}
		}(p)
	}

	var received []record.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(received) < producers*eventsPerProducer {
			received = append(received, q.DrainAll()...)
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer timeout")
	}
	assert.Len(t, received, producers*eventsPerProducer)
}
