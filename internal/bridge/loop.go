// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/log"
)

// ErrLoopStopped is returned by Submit once the loop has exited.
var ErrLoopStopped = errors.New("bridge: loop stopped")

const defaultLoopQueue = 256

// Loop is a single-goroutine cooperative scheduler. Every func passed to
// Submit executes serially on the goroutine running Run, in submission order.
type Loop struct {
	tasks   chan func()
	stopped chan struct{}
	logger  zerolog.Logger
}

// NewLoop constructs a Loop with the default task queue size.
func NewLoop() *Loop {
	return &Loop{
		tasks:   make(chan func(), defaultLoopQueue),
		stopped: make(chan struct{}),
		logger:  log.WithComponent("loop"),
	}
}

// Run executes submitted tasks until ctx is cancelled. It must be called
// exactly once; the calling goroutine becomes the loop.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			// Drain what was already accepted so submitters never observe a
			// silently discarded task after a successful Submit.
			for {
				select {
				case fn := <-l.tasks:
					l.exec(fn)
				default:
					return nil
				}
			}
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("task panicked on loop")
		}
	}()
	fn()
}

// Submit schedules fn for execution on the loop goroutine. It blocks while
// the task queue is full and fails with ErrLoopStopped once the loop exits.
// Safe to call from any goroutine.
func (l *Loop) Submit(fn func()) error {
	select {
	case <-l.stopped:
		return ErrLoopStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	}
}
