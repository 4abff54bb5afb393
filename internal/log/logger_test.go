package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestConfigureLastWriteWins(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Service: "boot-defaults", Output: &buf})
	Configure(Config{Service: "loaded", Version: "v9", Output: &buf})

	base := Base()
	base.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "loaded", entry["service"])
	require.Equal(t, "v9", entry["version"])
}

func TestWithComponentAnnotatesLogger(t *testing.T) {
	l := WithComponent("bus")
	require.NotEqual(t, zerolog.Disabled, l.GetLevel())
}

func TestFromContextFallsBackToBase(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)

	var nilCtx context.Context
	l = FromContext(nilCtx)
	require.NotNil(t, l)
}

func TestFromContextPrefersContextLogger(t *testing.T) {
	child := Base().With().Str("component", "test").Logger()
	ctx := child.WithContext(context.Background())
	got := FromContext(ctx)
	require.NotNil(t, got)
	require.Equal(t, child.GetLevel(), got.GetLevel())
}
