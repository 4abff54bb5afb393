// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestIncBusPublish(t *testing.T) {
	before := getCounterValue(t, BusPublishesTotal.WithLabelValues("sensor.reading"))
	IncBusPublish("sensor.reading")
	IncBusPublish("sensor.reading")
	after := getCounterValue(t, BusPublishesTotal.WithLabelValues("sensor.reading"))
	require.Equal(t, before+2, after)
}

func TestIncBusPublishEmptyTopicFallsBack(t *testing.T) {
	before := getCounterValue(t, BusPublishesTotal.WithLabelValues("unknown"))
	IncBusPublish("")
	after := getCounterValue(t, BusPublishesTotal.WithLabelValues("unknown"))
	require.Equal(t, before+1, after)
}

func TestAddBusDropReasonCountsEveryDrop(t *testing.T) {
	before := getCounterValue(t, BusDroppedTotal.WithLabelValues("hunger.tick", "inbox_full"))
	AddBusDropReason("hunger.tick", "inbox_full", 3)
	after := getCounterValue(t, BusDroppedTotal.WithLabelValues("hunger.tick", "inbox_full"))
	require.Equal(t, before+3, after)

	AddBusDropReason("hunger.tick", "inbox_full", 0)
	require.Equal(t, after, getCounterValue(t, BusDroppedTotal.WithLabelValues("hunger.tick", "inbox_full")))
}

func TestSetSubscriptionsAndRetained(t *testing.T) {
	SetSubscriptions("button.press", 3)
	require.Equal(t, 3.0, getGaugeValue(t, BusSubscriptionsActive.WithLabelValues("button.press")))

	SetRetained("system.newsletter", 10)
	require.Equal(t, 10.0, getGaugeValue(t, BusRetainedMessages.WithLabelValues("system.newsletter")))

	SetRetained("system.newsletter", 0)
	require.Equal(t, 0.0, getGaugeValue(t, BusRetainedMessages.WithLabelValues("system.newsletter")))
}

func TestSetSupervisorModeClearsOthers(t *testing.T) {
	known := []string{"normal", "degraded", "shutting_down"}

	SetSupervisorMode("normal", known)
	require.Equal(t, 1.0, getGaugeValue(t, SupervisorMode.WithLabelValues("normal")))

	SetSupervisorMode("degraded", known)
	require.Equal(t, 0.0, getGaugeValue(t, SupervisorMode.WithLabelValues("normal")))
	require.Equal(t, 1.0, getGaugeValue(t, SupervisorMode.WithLabelValues("degraded")))
	require.Equal(t, 0.0, getGaugeValue(t, SupervisorMode.WithLabelValues("shutting_down")))
}

func TestIncAlarm(t *testing.T) {
	before := getCounterValue(t, SupervisorAlarmsTotal.WithLabelValues("warning"))
	IncAlarm("warning")
	after := getCounterValue(t, SupervisorAlarmsTotal.WithLabelValues("warning"))
	require.Equal(t, before+1, after)

	unknownBefore := getCounterValue(t, SupervisorAlarmsTotal.WithLabelValues("unknown"))
	IncAlarm("")
	require.Equal(t, unknownBefore+1, getCounterValue(t, SupervisorAlarmsTotal.WithLabelValues("unknown")))
}

func TestIncStraggler(t *testing.T) {
	before := getCounterValue(t, SupervisorStragglersTotal)
	IncStraggler()
	require.Equal(t, before+1, getCounterValue(t, SupervisorStragglersTotal))
}
