// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package assistant

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/log"
)

// DebugSink logs every delivery on the topics it watches. It is the
// observability consumer: purely passive, one subscription per topic.
type DebugSink struct {
	bus    *bus.Bus
	topics []string
	logger zerolog.Logger
}

// NewDebugSink constructs a sink watching the given topics.
func NewDebugSink(b *bus.Bus, topics ...string) *DebugSink {
	return &DebugSink{
		bus:    b,
		topics: topics,
		logger: log.WithComponent("debug"),
	}
}

// Run consumes until ctx is cancelled or the bus shuts down.
func (d *DebugSink) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range d.topics {
		sub, err := d.bus.Subscribe(topic)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer func() { _ = sub.Close() }()
			return d.watch(ctx, sub)
		})
	}
	return g.Wait()
}

func (d *DebugSink) watch(ctx context.Context, sub *bus.Subscription) error {
	for {
		msg, err := sub.Receive(ctx)
		switch {
		case errors.Is(err, bus.ErrClosed):
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			return err
		}
		d.logger.Debug().
			Str(log.FieldTopic, msg.Topic).
			Bool(log.FieldRetained, msg.Retain).
			Interface("payload", msg.Payload).
			Msg("delivered")
	}
}
