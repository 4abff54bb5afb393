// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ManuGH/treebus/internal/bus"
)

// Newsletter periodically publishes a retained status Report, so any consumer
// subscribing late receives the most recent snapshots via replay.
type Newsletter struct {
	bus    *bus.Bus
	period time.Duration
	clk    clock.Clock
	hunger *HungerMonitor // optional
	start  time.Time
}

// NewNewsletter constructs the publisher. hunger may be nil.
func NewNewsletter(b *bus.Bus, period time.Duration, clk clock.Clock, hunger *HungerMonitor) *Newsletter {
	if clk == nil {
		clk = clock.New()
	}
	return &Newsletter{bus: b, period: period, clk: clk, hunger: hunger, start: clk.Now()}
}

// Run publishes reports until ctx is cancelled or the bus shuts down.
func (n *Newsletter) Run(ctx context.Context) error {
	ticker := n.clk.Ticker(n.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := n.bus.PublishRetained(TopicNewsletter, n.report()); errors.Is(err, bus.ErrShuttingDown) {
				return nil
			}
		}
	}
}

func (n *Newsletter) report() Report {
	stats := n.bus.Stats()
	r := Report{
		Published: stats.Published,
		Dropped:   stats.Dropped,
		Topics:    len(stats.Topics),
		Uptime:    n.clk.Now().Sub(n.start).Round(time.Second).String(),
		At:        n.clk.Now(),
	}
	if n.hunger != nil {
		r.Hunger = n.hunger.Level()
	}
	return r
}
