// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"sync"
)

type result[T any] struct {
	val T
	err error
}

// Promise is the handoff primitive between a worker goroutine and the loop
// that owns the waiting consumer. Complete may be called from any execution
// context; continuations registered with Then always run on the owning loop.
type Promise[T any] struct {
	loop *Loop

	mu        sync.Mutex
	completed bool
	res       result[T]
	pending   []func(T, error)
	done      chan struct{}
}

// NewPromise creates an unresolved promise owned by loop.
func NewPromise[T any](loop *Loop) *Promise[T] {
	return &Promise[T]{
		loop: loop,
		done: make(chan struct{}),
	}
}

// Go runs fn on a fresh worker goroutine and resolves the returned promise
// with its result. The classic use is a loop-affine consumer delegating
// blocking I/O (serial reads, audio capture) without stalling the loop.
func Go[T any](loop *Loop, fn func() (T, error)) *Promise[T] {
	p := NewPromise[T](loop)
	go func() {
		v, err := fn()
		p.Complete(v, err)
	}()
	return p
}

// Complete resolves the promise. The first call wins; later calls are no-ops.
// Continuations are dispatched onto the owning loop, never invoked on the
// caller's goroutine.
func (p *Promise[T]) Complete(v T, err error) {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return
	}
	p.completed = true
	p.res = result[T]{val: v, err: err}
	pending := p.pending
	p.pending = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range pending {
		p.dispatch(fn)
	}
}

// Then registers a continuation that runs on the owning loop once the promise
// resolves. Registration after resolution dispatches immediately.
func (p *Promise[T]) Then(fn func(T, error)) {
	p.mu.Lock()
	if !p.completed {
		p.pending = append(p.pending, fn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.dispatch(fn)
}

func (p *Promise[T]) dispatch(fn func(T, error)) {
	res := p.res
	if err := p.loop.Submit(func() { fn(res.val, res.err) }); err != nil {
		p.loop.logger.Warn().Err(err).Msg("promise continuation dropped, loop stopped")
	}
}

// Await blocks the calling goroutine until the promise resolves or ctx is
// cancelled. This is the thread-style consumption form; loop code must use
// Then instead to avoid deadlocking the scheduler.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.res.val, p.res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
