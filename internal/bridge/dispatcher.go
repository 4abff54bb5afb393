// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/log"
)

// Handler processes one delivered message on the loop. A returned error is a
// handler failure: it is logged and isolated, other handlers keep running.
type Handler func(ctx context.Context, msg bus.Message) error

// Dispatcher is the explicit (topic, handler) registration table. Each
// registered handler gets its own subscription whose messages are pumped onto
// the loop in per-topic publish order.
type Dispatcher struct {
	bus    *bus.Bus
	loop   *Loop
	logger zerolog.Logger

	mu      sync.Mutex
	entries []dispatchEntry
	started bool
}

type dispatchEntry struct {
	topic   string
	handler Handler
	opts    []bus.SubscribeOption
}

// NewDispatcher creates a dispatcher routing b's messages onto loop.
func NewDispatcher(b *bus.Bus, loop *Loop) *Dispatcher {
	return &Dispatcher{
		bus:    b,
		loop:   loop,
		logger: log.WithComponent("dispatcher"),
	}
}

// Handle registers handler for topic. Must be called before Run.
func (d *Dispatcher) Handle(topic string, handler Handler, opts ...bus.SubscribeOption) error {
	if handler == nil {
		return fmt.Errorf("dispatcher: nil handler for topic %q", topic)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("dispatcher: Handle(%q) after Run", topic)
	}
	d.entries = append(d.entries, dispatchEntry{topic: topic, handler: handler, opts: opts})
	return nil
}

// Run subscribes every registered handler and pumps deliveries until ctx is
// cancelled or the bus shuts down. Per-topic order is preserved: one pump per
// registration, and the loop executes submissions serially.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("dispatcher: already running")
	}
	d.started = true
	entries := d.entries
	d.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		sub, err := d.bus.Subscribe(e.topic, e.opts...)
		if err != nil {
			return fmt.Errorf("dispatcher: subscribe %q: %w", e.topic, err)
		}
		g.Go(func() error {
			defer func() { _ = sub.Close() }()
			return d.pump(ctx, sub, e.handler)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) pump(ctx context.Context, sub *bus.Subscription, handler Handler) error {
	for {
		msg, err := sub.Receive(ctx)
		switch {
		case errors.Is(err, bus.ErrClosed):
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			return fmt.Errorf("dispatcher: receive on %q: %w", sub.Topic, err)
		}
		if submitErr := d.loop.Submit(func() {
			d.invoke(ctx, msg, handler)
		}); submitErr != nil {
			// Loop gone; nothing left to deliver to.
			return nil
		}
	}
}

// invoke runs a handler on the loop, isolating failures so one subscriber's
// error or panic never stops delivery to others.
func (d *Dispatcher) invoke(ctx context.Context, msg bus.Message, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str(log.FieldTopic, msg.Topic).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()
	if err := handler(ctx, msg); err != nil {
		d.logger.Error().
			Err(err).
			Str(log.FieldTopic, msg.Topic).
			Msg("handler failure")
	}
}
