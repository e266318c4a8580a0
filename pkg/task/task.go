// Package task models an event handler's result and the background work it
// keeps alive, the way a host awaits a handler before treating the event as
// processed.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPanic wraps a panic recovered from a handler or extension.
var ErrPanic = errors.New("handler panicked")

// Extender lets a handler extend its event's lifetime with background work.
type Extender interface {
	// WaitUntil runs fn in the background; the task does not settle until fn
	// returns. fn receives a context that is not cancelled with the
	// handler's own context. WaitUntil must be called from the handler or
	// from another extension, never after the task settled.
	WaitUntil(fn func(ctx context.Context))
}

// Task is the pending result of one handler invocation.
type Task[T any] struct {
	ready   chan struct{}
	settled chan struct{}
	bg      context.Context
	wg      sync.WaitGroup

	mu       sync.Mutex
	value    T
	err      error
	extraErr error
}

// Run starts fn in its own goroutine and returns immediately.
func Run[T any](ctx context.Context, fn func(ctx context.Context, ext Extender) (T, error)) *Task[T] {
	t := &Task[T]{
		ready:   make(chan struct{}),
		settled: make(chan struct{}),
		bg:      context.WithoutCancel(ctx),
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(t.ready)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		t.value, t.err = fn(ctx, t)
	}()

	go func() {
		t.wg.Wait()
		close(t.settled)
	}()

	return t
}

// Resolved returns an already settled task.
func Resolved[T any](value T, err error) *Task[T] {
	t := &Task[T]{
		ready:   make(chan struct{}),
		settled: make(chan struct{}),
		value:   value,
		err:     err,
	}
	close(t.ready)
	close(t.settled)
	return t
}

// WaitUntil implements Extender.
func (t *Task[T]) WaitUntil(fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.mu.Lock()
				t.extraErr = fmt.Errorf("%w: %v", ErrPanic, r)
				t.mu.Unlock()
			}
		}()
		fn(t.bg)
	}()
}

// Await blocks until the handler produced its result.
// Background extensions may still be running.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.ready:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the handler and every extension returned.
func (t *Task[T]) Done() <-chan struct{} {
	return t.settled
}

// Wait blocks until the task settled and returns the handler error, or the
// first panic raised by an extension.
func (t *Task[T]) Wait(ctx context.Context) error {
	select {
	case <-t.settled:
	case <-ctx.Done():
		return ctx.Err()
	}
	if t.err != nil {
		return t.err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.extraErr
}
