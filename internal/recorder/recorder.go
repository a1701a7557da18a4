// Package recorder captures world mutations and writes them to storage in
// batches.
//
// Capture calls return as soon as the event is queued. A worker goroutine
// drains the queue every flush interval and hands the whole batch to the
// store. Delivery is at most once: a batch the store rejects is logged and
// dropped, never retried.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/store"
	"github.com/roach88/chronicle/internal/world"
)

// DefaultFlushInterval is used when Options.FlushInterval is zero.
const DefaultFlushInterval = time.Second

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("recorder stopped")

// Writer persists batches. store.Adapter implements it.
type Writer interface {
	Write(ctx context.Context, batch []record.Event) (store.WriteResult, error)
}

// Stats are cumulative counters.
type Stats struct {
	Enqueued int64
	Written  int64
	Dropped  int64
	Batches  int64
}

// Options configures a Recorder.
type Options struct {
	FlushInterval time.Duration
	IDs           record.IDGenerator
	Clock         func() time.Time
}

// Recorder is the write-behind capture queue.
type Recorder struct {
	writer   Writer
	queue    *eventQueue
	ids      record.IDGenerator
	clock    func() time.Time
	interval time.Duration

	flushMu sync.Mutex // one batch in flight, in drain order

	enqueued atomic.Int64
	written  atomic.Int64
	dropped  atomic.Int64
	batches  atomic.Int64

	startOnce sync.Once
	started   atomic.Bool
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New returns a recorder writing to w. Call Start to run the flush worker.
func New(w Writer, opts Options) *Recorder {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.IDs == nil {
		opts.IDs = record.UUIDv7Generator{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Recorder{
		writer:   w,
		queue:    newEventQueue(),
		ids:      opts.IDs,
		clock:    opts.Clock,
		interval: opts.FlushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Notify records a block mutation. The target is the block that ended up at
// loc, or the block that was removed when the position is now empty.
func (r *Recorder) Notify(kind, actor string, loc record.Location, before, after world.Snapshot) error {
	target := after.Block
	if after.IsAir() {
		target = before.Block
	}
	return r.Enqueue(record.Event{
		EventName: kind,
		Location:  loc,
		Cause:     actor,
		Target:    target,
		Extra: record.Payload{
			record.KeyBefore: before.Payload(),
			record.KeyAfter:  after.Payload(),
		},
	})
}

// Enqueue queues e, assigning an id and timestamp when they are unset. It
// never blocks on storage.
func (r *Recorder) Enqueue(e record.Event) error {
	if e.ID == "" {
		e.ID = r.ids.Generate()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.clock()
	}
	if !r.queue.Enqueue(e) {
		return ErrStopped
	}
	r.enqueued.Add(1)
	return nil
}

// Pending returns the number of queued events.
func (r *Recorder) Pending() int {
	return r.queue.Len()
}

// Stats returns a snapshot of the counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Enqueued: r.enqueued.Load(),
		Written:  r.written.Load(),
		Dropped:  r.dropped.Load(),
		Batches:  r.batches.Load(),
	}
}

// Flush writes everything queued as one batch. A failed batch is dropped and
// its error returned.
func (r *Recorder) Flush(ctx context.Context) (int, error) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	batch := r.queue.DrainAll()
	if len(batch) == 0 {
		return 0, nil
	}
	r.batches.Add(1)

	res, err := r.writer.Write(ctx, batch)
	if err != nil {
		r.dropped.Add(int64(len(batch)))
		slog.Error("dropping event batch", "size", len(batch), "error", err)
		return 0, err
	}
	r.written.Add(int64(res.Written))
	slog.Debug("event batch written", "size", res.Written)
	return res.Written, nil
}

// Start runs the flush worker in a new goroutine until ctx is cancelled or
// Stop is called. Later calls are no-ops.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.run(ctx)
	})
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = r.Flush(ctx)
		case <-ctx.Done():
			r.shutdown(context.WithoutCancel(ctx))
			return
		case <-r.stop:
			r.shutdown(ctx)
			return
		}
	}
}

// shutdown closes the queue and writes what is left as a final batch.
func (r *Recorder) shutdown(ctx context.Context) {
	r.queue.Close()
	if n, err := r.Flush(ctx); err == nil && n > 0 {
		slog.Info("final event batch written", "size", n)
	}
}

// Stop ends the worker after a final drain and waits for it. A recorder that
// was never started drains synchronously and cannot be started afterwards.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.startOnce.Do(func() {})
		if !r.started.Load() {
			r.shutdown(context.Background())
			close(r.done)
			return
		}
		close(r.stop)
	})
	<-r.done
}
