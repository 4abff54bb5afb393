// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package assistant

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/log"
)

// SensorReader is a thread-style blocking producer: it reads the environment
// sensors on a fixed interval and publishes retained readings, so a consumer
// subscribing late immediately sees the current state.
type SensorReader struct {
	bus      *bus.Bus
	interval time.Duration
	clk      clock.Clock
	read     func() Reading
	logger   zerolog.Logger
}

// SensorOption customises a SensorReader.
type SensorOption func(*SensorReader)

// WithClock substitutes the wall clock, for tests.
func WithClock(clk clock.Clock) SensorOption {
	return func(r *SensorReader) { r.clk = clk }
}

// WithReadFunc substitutes the hardware read. The default is a simulated
// reading; real deployments plug the I2C/serial read in here.
func WithReadFunc(read func() Reading) SensorOption {
	return func(r *SensorReader) { r.read = read }
}

// NewSensorReader constructs a reader publishing to b every interval.
func NewSensorReader(b *bus.Bus, interval time.Duration, opts ...SensorOption) *SensorReader {
	r := &SensorReader{
		bus:      b,
		interval: interval,
		clk:      clock.New(),
		logger:   log.WithComponent("sensors"),
	}
	r.read = r.simulate
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run publishes readings until ctx is cancelled or the bus shuts down.
func (r *SensorReader) Run(ctx context.Context) error {
	ticker := r.clk.Ticker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("sensor reader started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("sensor reader stopping")
			return nil
		case <-ticker.C:
			reading := r.read()
			err := r.bus.PublishRetained(TopicSensorReading, reading)
			if errors.Is(err, bus.ErrShuttingDown) {
				return nil
			}
			if err != nil {
				r.logger.Error().Err(err).Msg("failed to publish reading")
			}
		}
	}
}

func (r *SensorReader) simulate() Reading {
	return Reading{
		Temperature: 20 + rand.Float64()*10,
		Humidity:    40 + rand.Float64()*20,
		Pressure:    990 + rand.Float64()*40,
		Connected:   true,
		ReadAt:      r.clk.Now(),
	}
}
