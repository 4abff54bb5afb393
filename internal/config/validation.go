// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
)

// Validate checks the assembled configuration for values the daemon cannot
// run with.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Bus.RetentionLimit <= 0 {
		errs = append(errs, fmt.Errorf("bus.retention_limit must be positive, got %d", c.Bus.RetentionLimit))
	}
	if c.Bus.InboxSize <= 0 {
		errs = append(errs, fmt.Errorf("bus.inbox_size must be positive, got %d", c.Bus.InboxSize))
	}
	if c.Supervisor.AlarmTopic == "" {
		errs = append(errs, errors.New("supervisor.alarm_topic must not be empty"))
	}
	if c.Supervisor.Grace <= 0 {
		errs = append(errs, fmt.Errorf("supervisor.grace must be positive, got %s", c.Supervisor.Grace))
	}
	if c.Sensors.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sensors.interval must be positive, got %s", c.Sensors.Interval))
	}
	if c.Hunger.Enabled {
		if c.Hunger.TickPeriod <= 0 {
			errs = append(errs, fmt.Errorf("hunger.tick_period must be positive, got %s", c.Hunger.TickPeriod))
		}
		if c.Hunger.HungryThreshold <= 0 || c.Hunger.Starvation <= c.Hunger.HungryThreshold {
			errs = append(errs, fmt.Errorf("hunger thresholds must satisfy 0 < hungry_threshold (%d) < starvation (%d)",
				c.Hunger.HungryThreshold, c.Hunger.Starvation))
		}
		if c.Hunger.Portion <= 0 {
			errs = append(errs, fmt.Errorf("hunger.portion must be positive, got %d", c.Hunger.Portion))
		}
	}

	return errors.Join(errs...)
}
