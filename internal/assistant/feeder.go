// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package assistant

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/log"
)

// Feeder closes the hunger loop: it answers every food request with one
// portion, lowering the level back below the threshold so the monitor can
// warn again on the next climb.
type Feeder struct {
	bus     *bus.Bus
	monitor *HungerMonitor
	portion int
	logger  zerolog.Logger
}

// NewFeeder constructs a feeder serving portion units per request.
func NewFeeder(b *bus.Bus, monitor *HungerMonitor, portion int) *Feeder {
	return &Feeder{
		bus:     b,
		monitor: monitor,
		portion: portion,
		logger:  log.WithComponent("feeder"),
	}
}

// Run consumes food requests until ctx is cancelled or the bus shuts down.
func (f *Feeder) Run(ctx context.Context) error {
	sub, err := f.bus.Subscribe(TopicFoodNeed)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

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

		req, ok := msg.Payload.(FoodRequest)
		if !ok {
			f.logger.Warn().Interface("payload", msg.Payload).Msg("malformed food request")
			continue
		}
		f.monitor.Feed(f.portion)
		f.logger.Info().
			Int("level", req.Level).
			Int("portion", f.portion).
			Int("after", f.monitor.Level()).
			Msg("fed")
	}
}
