// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the daemon configuration with precedence
// ENV > File > Defaults. The core packages never read configuration
// themselves; every tunable is passed to them as an explicit constructor
// parameter by the daemon wiring.
package config

import "time"

// AppConfig is the full daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Log        LogConfig        `yaml:"log"`
	Bus        BusConfig        `yaml:"bus"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Server     ServerConfig     `yaml:"server"`
	Sensors    SensorsConfig    `yaml:"sensors"`
	Hunger     HungerConfig     `yaml:"hunger"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// BusConfig configures the pub/sub core.
type BusConfig struct {
	RetentionLimit int `yaml:"retention_limit"`
	InboxSize      int `yaml:"inbox_size"`
}

// SupervisorConfig configures alarm handling and shutdown.
type SupervisorConfig struct {
	AlarmTopic string        `yaml:"alarm_topic"`
	Grace      time.Duration `yaml:"grace"`
}

// ServerConfig configures the diagnostics HTTP server.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SensorsConfig configures the sensor reader collaborator.
type SensorsConfig struct {
	Interval time.Duration `yaml:"interval"`
	Simulate bool          `yaml:"simulate"`
}

// HungerConfig configures the hunger demo scenario.
type HungerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TickPeriod      time.Duration `yaml:"tick_period"`
	HungryThreshold int           `yaml:"hungry_threshold"`
	Starvation      int           `yaml:"starvation"`
	Portion         int           `yaml:"portion"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:   "info",
			Service: "treebus",
		},
		Bus: BusConfig{
			RetentionLimit: 10,
			InboxSize:      64,
		},
		Supervisor: SupervisorConfig{
			AlarmTopic: "system.alarm",
			Grace:      5 * time.Second,
		},
		Server: ServerConfig{
			ListenAddr:      ":9090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Sensors: SensorsConfig{
			Interval: 2 * time.Second,
			Simulate: true,
		},
		Hunger: HungerConfig{
			Enabled:         false,
			TickPeriod:      time.Second,
			HungryThreshold: 20,
			Starvation:      100,
			Portion:         10,
		},
	}
}
