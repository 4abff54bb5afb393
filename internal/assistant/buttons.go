// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package assistant

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/log"
	"github.com/ManuGH/treebus/internal/supervisor"
)

// ButtonMonitor turns hardware button presses into bus events. The GPIO edge
// callback (or a test) hands presses to Press; Run publishes them. The
// reserved shutdown button additionally raises a fatal alarm.
type ButtonMonitor struct {
	bus     *bus.Bus
	presses chan string
	logger  zerolog.Logger
}

// NewButtonMonitor constructs a monitor publishing to b.
func NewButtonMonitor(b *bus.Bus) *ButtonMonitor {
	return &ButtonMonitor{
		bus:     b,
		presses: make(chan string, 8),
		logger:  log.WithComponent("buttons"),
	}
}

// Press records a button press. Never blocks: a press during a full queue is
// dropped, matching physical debounce behavior.
func (m *ButtonMonitor) Press(name string) {
	select {
	case m.presses <- name:
	default:
		m.logger.Warn().Str("button", name).Msg("press dropped, queue full")
	}
}

// Run publishes queued presses until ctx is cancelled or the bus shuts down.
func (m *ButtonMonitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case name := <-m.presses:
			err := m.bus.Publish(TopicButtonPress, ButtonPress{Name: name})
			if errors.Is(err, bus.ErrShuttingDown) {
				return nil
			}
			if err != nil {
				m.logger.Error().Err(err).Str("button", name).Msg("failed to publish press")
				continue
			}
			if name == ButtonShutdown {
				m.logger.Info().Msg("shutdown button pressed")
				_ = m.bus.Publish(supervisor.DefaultAlarmTopic, supervisor.Alarm{
					Kind:   supervisor.KindFatal,
					Reason: "shutdown button",
				})
			}
		}
	}
}
