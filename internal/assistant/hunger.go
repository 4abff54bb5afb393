// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package assistant

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/log"
	"github.com/ManuGH/treebus/internal/supervisor"
)

// HungerClock publishes a nil payload on TopicHungerTick every period. It is
// the demo scenario's heartbeat.
type HungerClock struct {
	bus    *bus.Bus
	period time.Duration
	clk    clock.Clock
}

// NewHungerClock constructs the tick producer.
func NewHungerClock(b *bus.Bus, period time.Duration, clk clock.Clock) *HungerClock {
	if clk == nil {
		clk = clock.New()
	}
	return &HungerClock{bus: b, period: period, clk: clk}
}

// Run ticks until ctx is cancelled or the bus shuts down.
func (c *HungerClock) Run(ctx context.Context) error {
	ticker := c.clk.Ticker(c.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.bus.Publish(TopicHungerTick, nil); errors.Is(err, bus.ErrShuttingDown) {
				return nil
			}
		}
	}
}

// HungerMonitor consumes hunger ticks and escalates: past the hungry
// threshold it raises a warning alarm once (the degraded "hungry" state), at
// starvation it raises a fatal alarm and stops.
type HungerMonitor struct {
	bus             *bus.Bus
	hungryThreshold int
	starvation      int
	logger          zerolog.Logger

	level  atomic.Int64
	warned atomic.Bool
}

// NewHungerMonitor constructs the monitor. Thresholds must satisfy
// 0 < hungryThreshold < starvation; config validation enforces this upstream.
func NewHungerMonitor(b *bus.Bus, hungryThreshold, starvation int) *HungerMonitor {
	return &HungerMonitor{
		bus:             b,
		hungryThreshold: hungryThreshold,
		starvation:      starvation,
		logger:          log.WithComponent("hunger"),
	}
}

// Level returns the current hunger level.
func (m *HungerMonitor) Level() int {
	return int(m.level.Load())
}

// Run consumes ticks until starvation, cancellation, or bus shutdown.
func (m *HungerMonitor) Run(ctx context.Context) error {
	sub, err := m.bus.Subscribe(TopicHungerTick)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	for {
		_, err := sub.Receive(ctx)
		switch {
		case errors.Is(err, bus.ErrClosed):
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			return err
		}

		level := int(m.level.Add(1))
		if level >= m.hungryThreshold && m.warned.CompareAndSwap(false, true) {
			m.logger.Warn().Int("level", level).Msg("hungry")
			_ = m.bus.Publish(supervisor.DefaultAlarmTopic, supervisor.Alarm{
				Kind:   supervisor.KindWarning,
				Reason: "hungry",
			})
			_ = m.bus.Publish(TopicFoodNeed, FoodRequest{Level: level})
		}
		if level >= m.starvation {
			m.logger.Error().Int("level", level).Msg("starvation")
			_ = m.bus.Publish(supervisor.DefaultAlarmTopic, supervisor.Alarm{
				Kind:   supervisor.KindFatal,
				Reason: "starvation",
			})
			return nil
		}
	}
}

// Feed lowers the hunger level, clamped at zero. A fed monitor warns again on
// the next climb past the threshold.
func (m *HungerMonitor) Feed(amount int) {
	for {
		cur := m.level.Load()
		next := cur - int64(amount)
		if next < 0 {
			next = 0
		}
		if m.level.CompareAndSwap(cur, next) {
			if int(next) < m.hungryThreshold {
				m.warned.Store(false)
			}
			return
		}
	}
}
