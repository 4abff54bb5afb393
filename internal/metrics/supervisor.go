// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SupervisorMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "treebus_supervisor_mode",
		Help: "Current supervisor mode (the gauge set to 1 carries the active mode label)",
	}, []string{"mode"})

	SupervisorAlarmsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treebus_supervisor_alarms_total",
		Help: "Total number of alarms observed by the supervisor, by kind",
	}, []string{"kind"})

	SupervisorStragglersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treebus_supervisor_stragglers_total",
		Help: "Total number of supervised workers that missed the shutdown grace period",
	})
)

// SetSupervisorMode marks the given mode as active and clears the others.
func SetSupervisorMode(mode string, known []string) {
	for _, m := range known {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		SupervisorMode.WithLabelValues(m).Set(v)
	}
}

// IncAlarm records an observed alarm by kind.
func IncAlarm(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	SupervisorAlarmsTotal.WithLabelValues(kind).Inc()
}

// IncStraggler records a supervised worker that failed to stop in time.
func IncStraggler() {
	SupervisorStragglersTotal.Inc()
}
