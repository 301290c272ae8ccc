// Package executor provides a single-worker task queue. Every task submitted
// to an Executor runs on the same goroutine in submission order, which gives
// the caller a total order over state mutations without further locking.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrClosed is returned when submitting to an executor that is shutting down.
	ErrClosed = errors.New("executor closed")

	// ErrShutdownTimeout is returned by Shutdown when queued work did not
	// drain within the grace period and was cancelled.
	ErrShutdownTimeout = errors.New("executor shutdown timed out")
)

// Task is a unit of work. ctx is cancelled when the executor is force-stopped.
type Task func(ctx context.Context)

// Executor runs tasks one at a time on a dedicated goroutine.
//
// The queue is unbounded so Submit never blocks producers.
type Executor struct {
	name string
	log  *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts an executor. name is used in log messages.
func New(name string, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		name:   name,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

// Submit enqueues t. It returns ErrClosed once Shutdown has been called.
func (e *Executor) Submit(t Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.queue = append(e.queue, t)
	e.cond.Signal()
	return nil
}

// Sync blocks until every task submitted before the call has run, or ctx is
// done. It must not be called from inside a task.
func (e *Executor) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if err := e.Submit(func(context.Context) { close(reached) }); err != nil {
		return err
	}
	select {
	case <-reached:
		return nil
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks not yet started.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Done is closed when the worker goroutine has exited.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// Shutdown stops accepting tasks and waits up to grace for the queue to
// drain. On timeout the task context is cancelled, queued tasks are
// discarded and ErrShutdownTimeout is returned. Safe to call more than once.
func (e *Executor) Shutdown(grace time.Duration) error {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-e.done:
		e.cancel()
		return nil
	case <-timer.C:
	}

	e.mu.Lock()
	dropped := len(e.queue)
	clear(e.queue)
	e.queue = nil
	e.mu.Unlock()
	e.cancel()

	e.log.Warn("executor: shutdown grace elapsed, cancelling",
		"executor", e.name, "grace", grace, "dropped", dropped)
	return ErrShutdownTimeout
}

func (e *Executor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		t := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.run(t)
	}
}

func (e *Executor) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("executor: task panicked",
				"executor", e.name, "panic", fmt.Sprint(r))
		}
	}()
	t(e.ctx)
}
