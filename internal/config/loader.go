// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty configPath skips the
// file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load assembles the configuration: defaults, then the YAML file (strict
// decoding, unknown keys are errors), then environment overrides, then
// validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.mergeFile(&cfg); err != nil {
			return AppConfig{}, fmt.Errorf("config file %s: %w", l.configPath, err)
		}
	}
	l.mergeEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (l *Loader) mergeFile(cfg *AppConfig) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("not found: %w", err)
		}
		return err
	}
	// Strict decoding: a typoed key should fail loudly, not silently fall
	// back to a default.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.Log.Level = ParseString("TREEBUS_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = ParseString("TREEBUS_LOG_SERVICE", cfg.Log.Service)

	cfg.Bus.RetentionLimit = ParseInt("TREEBUS_BUS_RETENTION_LIMIT", cfg.Bus.RetentionLimit)
	cfg.Bus.InboxSize = ParseInt("TREEBUS_BUS_INBOX_SIZE", cfg.Bus.InboxSize)

	cfg.Supervisor.AlarmTopic = ParseString("TREEBUS_ALARM_TOPIC", cfg.Supervisor.AlarmTopic)
	cfg.Supervisor.Grace = ParseDuration("TREEBUS_SHUTDOWN_GRACE", cfg.Supervisor.Grace)

	cfg.Server.ListenAddr = ParseString("TREEBUS_LISTEN", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = ParseDuration("TREEBUS_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = ParseDuration("TREEBUS_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = ParseDuration("TREEBUS_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Sensors.Interval = ParseDuration("TREEBUS_SENSOR_INTERVAL", cfg.Sensors.Interval)
	cfg.Sensors.Simulate = ParseBool("TREEBUS_SENSOR_SIMULATE", cfg.Sensors.Simulate)

	cfg.Hunger.Enabled = ParseBool("TREEBUS_HUNGER_ENABLED", cfg.Hunger.Enabled)
	cfg.Hunger.TickPeriod = ParseDuration("TREEBUS_HUNGER_TICK", cfg.Hunger.TickPeriod)
	cfg.Hunger.HungryThreshold = ParseInt("TREEBUS_HUNGER_THRESHOLD", cfg.Hunger.HungryThreshold)
	cfg.Hunger.Starvation = ParseInt("TREEBUS_HUNGER_STARVATION", cfg.Hunger.Starvation)
	cfg.Hunger.Portion = ParseInt("TREEBUS_HUNGER_PORTION", cfg.Hunger.Portion)
}
