// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	loader := NewLoader("", "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "test"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("unexpected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bus:
  retention_limit: 25
  inbox_size: 128
supervisor:
  grace: 2s
hunger:
  enabled: true
  hungry_threshold: 10
  starvation: 50
`), 0o600))

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	require.Equal(t, 25, cfg.Bus.RetentionLimit)
	require.Equal(t, 128, cfg.Bus.InboxSize)
	require.Equal(t, 2*time.Second, cfg.Supervisor.Grace)
	require.True(t, cfg.Hunger.Enabled)
	// Untouched sections keep their defaults.
	require.Equal(t, ":9090", cfg.Server.ListenAddr)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("busses:\n  oops: 1\n"), 0o600))

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := NewLoader("/nonexistent/config.yaml", "test").Load()
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  retention_limit: 25\n"), 0o600))
	t.Setenv("TREEBUS_BUS_RETENTION_LIMIT", "7")
	t.Setenv("TREEBUS_SENSOR_INTERVAL", "500ms")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Bus.RetentionLimit)
	require.Equal(t, 500*time.Millisecond, cfg.Sensors.Interval)
}

func TestEnvMalformedValuesFallBack(t *testing.T) {
	t.Setenv("TREEBUS_BUS_INBOX_SIZE", "lots")
	t.Setenv("TREEBUS_SENSOR_SIMULATE", "maybe")

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	require.Equal(t, Defaults().Bus.InboxSize, cfg.Bus.InboxSize)
	require.Equal(t, Defaults().Sensors.Simulate, cfg.Sensors.Simulate)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Bus.RetentionLimit = 0
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Supervisor.Grace = 0
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Hunger.Enabled = true
	cfg.Hunger.HungryThreshold = 50
	cfg.Hunger.Starvation = 20
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Hunger.Enabled = true
	cfg.Hunger.Portion = 0
	require.Error(t, cfg.Validate())
}
