// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treebus_publish_total",
		Help: "Total number of messages published per topic",
	}, []string{"topic"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treebus_dropped_total",
		Help: "Total number of bus message drops by topic and reason",
	}, []string{"topic", "reason"})

	BusSubscriptionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "treebus_subscriptions_active",
		Help: "Number of live subscriptions per topic",
	}, []string{"topic"})

	BusRetainedMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "treebus_retained_messages",
		Help: "Number of retained messages held per topic",
	}, []string{"topic"})
)

// IncBusPublish records a published bus message for the given topic.
func IncBusPublish(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	BusPublishesTotal.WithLabelValues(topic).Inc()
}

// AddBusDropReason records n dropped bus messages with a concrete reason.
// One fan-out can drop from several slow subscribers at once.
func AddBusDropReason(topic, reason string, n int) {
	if n <= 0 {
		return
	}
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Add(float64(n))
}

// SetSubscriptions records the current subscriber count for a topic.
func SetSubscriptions(topic string, n int) {
	BusSubscriptionsActive.WithLabelValues(topic).Set(float64(n))
}

// SetRetained records the current retained window size for a topic.
func SetRetained(topic string, n int) {
	BusRetainedMessages.WithLabelValues(topic).Set(float64(n))
}
