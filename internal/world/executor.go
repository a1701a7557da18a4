package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrExecutorStopped is returned for work submitted to a stopped executor.
var ErrExecutorStopped = errors.New("world executor stopped")

// PanicError wraps a panic raised by a scheduled function.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic on mutation thread: %v", e.Value)
}

// Executor runs functions one at a time on a single owning goroutine.
type Executor struct {
	tasks    chan func()
	quit     chan struct{}
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
	finished sync.Once
}

// NewExecutor creates an executor whose queue holds up to buffer pending
// functions before Submit blocks.
func NewExecutor(buffer int) *Executor {
	return &Executor{
		tasks: make(chan func(), buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the owning goroutine. Calling Start more than once is a
// no-op.
func (e *Executor) Start() {
	e.start.Do(func() { go e.loop() })
}

// Stop runs whatever is already queued, then stops the owning goroutine and
// waits for it to exit. An executor that was never started is marked stopped
// immediately.
func (e *Executor) Stop() {
	e.stop.Do(func() { close(e.quit) })
	e.start.Do(func() { e.finished.Do(func() { close(e.done) }) })
	<-e.done
}

// Submit queues fn for the owning goroutine.
func (e *Executor) Submit(fn func()) error {
	select {
	case <-e.quit:
		return ErrExecutorStopped
	default:
	}
	select {
	case e.tasks <- fn:
		return nil
	case <-e.quit:
		return ErrExecutorStopped
	}
}

func (e *Executor) loop() {
	defer e.finished.Do(func() { close(e.done) })
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-e.quit:
			for {
				select {
				case fn := <-e.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Future is the pending result of a scheduled function.
type Future[T any] struct {
	exec *Executor
	done chan struct{}
	val  T
	err  error
}

// Await blocks until the function has run, the context ends, or the
// executor stops without running it.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-f.exec.done:
		select {
		case <-f.done:
			return f.val, f.err
		default:
			var zero T
			return zero, ErrExecutorStopped
		}
	}
}

// Schedule runs fn on the executor's goroutine. A panic inside fn is
// recovered and returned as a *PanicError.
func Schedule[T any](e *Executor, fn func() (T, error)) *Future[T] {
	f := &Future[T]{exec: e, done: make(chan struct{})}
	err := e.Submit(func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("mutation panicked", "panic", r)
				f.err = &PanicError{Value: r}
			}
		}()
		f.val, f.err = fn()
	})
	if err != nil {
		f.err = err
		close(f.done)
	}
	return f
}

// Call schedules fn and waits for its result.
func Call[T any](ctx context.Context, e *Executor, fn func() (T, error)) (T, error) {
	return Schedule(e, fn).Await(ctx)
}
