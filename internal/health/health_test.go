// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/supervisor"
)

func TestHealthAlwaysAlive(t *testing.T) {
	m := NewManager("test")
	resp := m.Health(context.Background(), false)
	require.Equal(t, StatusHealthy, resp.Status)
	require.Equal(t, "test", resp.Version)
}

func TestReadyReflectsBusState(t *testing.T) {
	b := bus.New(bus.Options{})
	m := NewManager("test")
	m.RegisterChecker(&BusChecker{Bus: b})

	resp := m.Ready(context.Background())
	require.True(t, resp.Ready)

	require.NoError(t, b.Shutdown(context.Background()))
	resp = m.Ready(context.Background())
	require.False(t, resp.Ready)
	require.Equal(t, StatusUnhealthy, resp.Status)
}

func TestSupervisorCheckerDegradedKeepsReady(t *testing.T) {
	b := bus.New(bus.Options{})
	s, err := supervisor.New(supervisor.Options{Bus: b})
	require.NoError(t, err)

	m := NewManager("test")
	m.RegisterChecker(&SupervisorChecker{Supervisor: s})

	resp := m.Ready(context.Background())
	require.True(t, resp.Ready)
	require.Equal(t, StatusHealthy, resp.Status)
}

func TestServeReadyStatusCodes(t *testing.T) {
	b := bus.New(bus.Options{})
	m := NewManager("test")
	m.RegisterChecker(&BusChecker{Bus: b})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, b.Shutdown(context.Background()))
	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Ready)
}

func TestServeHealthVerboseIncludesChecks(t *testing.T) {
	b := bus.New(bus.Options{})
	m := NewManager("test")
	m.RegisterChecker(&BusChecker{Bus: b})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Checks, "bus")
}
