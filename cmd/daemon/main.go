// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/treebus/internal/assistant"
	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/config"
	"github.com/ManuGH/treebus/internal/daemon"
	"github.com/ManuGH/treebus/internal/health"
	tblog "github.com/ManuGH/treebus/internal/log"
	"github.com/ManuGH/treebus/internal/supervisor"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	tblog.Configure(tblog.Config{
		Level:   "info",
		Service: "treebus",
		Version: version,
	})
	logger := tblog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := strings.TrimSpace(*configPath)
	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Re-configure logger with loaded configuration
	tblog.Configure(tblog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Server.ListenAddr).
		Msg("starting treebus")

	busLogger := tblog.WithComponent("bus")
	b := bus.New(bus.Options{
		RetentionLimit: cfg.Bus.RetentionLimit,
		InboxSize:      cfg.Bus.InboxSize,
		Logger:         &busLogger,
	})

	supLogger := tblog.WithComponent("supervisor")
	sup, err := supervisor.New(supervisor.Options{
		Bus:        b,
		AlarmTopic: cfg.Supervisor.AlarmTopic,
		Grace:      cfg.Supervisor.Grace,
		Logger:     &supLogger,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "supervisor.creation.failed").
			Msg("failed to create supervisor")
	}

	hm := health.NewManager(version)
	hm.RegisterChecker(&health.BusChecker{Bus: b})
	hm.RegisterChecker(&health.SupervisorChecker{Supervisor: sup})

	sensors := assistant.NewSensorReader(b, cfg.Sensors.Interval)
	buttons := assistant.NewButtonMonitor(b)

	components := []daemon.Component{
		{Name: "sensors", Run: sensors.Run},
		{Name: "buttons", Run: buttons.Run},
	}

	if cfg.Hunger.Enabled {
		hungerClock := assistant.NewHungerClock(b, cfg.Hunger.TickPeriod, nil)
		hungerMon := assistant.NewHungerMonitor(b, cfg.Hunger.HungryThreshold, cfg.Hunger.Starvation)
		feeder := assistant.NewFeeder(b, hungerMon, cfg.Hunger.Portion)
		newsletter := assistant.NewNewsletter(b, cfg.Hunger.TickPeriod*10, nil, hungerMon)
		components = append(components,
			daemon.Component{Name: "hunger-clock", Run: hungerClock.Run},
			daemon.Component{Name: "hunger-monitor", Run: hungerMon.Run},
			daemon.Component{Name: "feeder", Run: feeder.Run},
			daemon.Component{Name: "newsletter", Run: newsletter.Run},
		)
		logger.Info().
			Int("hungry_threshold", cfg.Hunger.HungryThreshold).
			Int("starvation", cfg.Hunger.Starvation).
			Int("portion", cfg.Hunger.Portion).
			Msg("hunger scenario enabled")
	}

	debug := assistant.NewDebugSink(b,
		assistant.TopicSensorReading,
		assistant.TopicButtonPress,
		assistant.TopicNewsletter,
		cfg.Supervisor.AlarmTopic,
	)
	components = append(components, daemon.Component{Name: "debug-sink", Run: debug.Run})

	deps := daemon.Deps{
		Logger:         logger,
		Config:         cfg,
		Bus:            b,
		Supervisor:     sup,
		Health:         hm,
		MetricsHandler: promhttp.Handler(),
		Components:     components,
	}

	mgr, err := daemon.NewManager(cfg.Server, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("daemon exiting")
}
