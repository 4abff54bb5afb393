// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package assistant contains the bus collaborators: producers feeding events
// into the bus (sensors, buttons, clocks) and consumers draining it (debug
// sink, hunger monitor). Every component takes the bus as an explicit
// constructor parameter and unsubscribes on its own termination path.
package assistant

import "time"

// Documented topic names. Topics are flat strings, created implicitly on
// first publish or subscribe.
const (
	// TopicSensorReading carries Reading payloads, retained so late
	// subscribers see the latest environment state immediately.
	TopicSensorReading = "sensor.reading"

	// TopicButtonPress carries ButtonPress payloads.
	TopicButtonPress = "button.press"

	// TopicHungerTick carries nil payloads on a fixed period.
	TopicHungerTick = "hunger.tick"

	// TopicFoodNeed carries FoodRequest payloads once the hunger level
	// crosses the hungry threshold.
	TopicFoodNeed = "food.need"

	// TopicNewsletter carries Report payloads, retained for replay.
	TopicNewsletter = "system.newsletter"
)

// ButtonShutdown is the reserved button name that raises a fatal alarm.
const ButtonShutdown = "shutdown"

// Reading is the payload on TopicSensorReading.
type Reading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	Connected   bool      `json:"connected"`
	ReadAt      time.Time `json:"read_at"`
}

// ButtonPress is the payload on TopicButtonPress.
type ButtonPress struct {
	Name string `json:"name"`
}

// FoodRequest is the payload on TopicFoodNeed.
type FoodRequest struct {
	Level int `json:"level"`
}

// Report is the payload on TopicNewsletter: a periodic snapshot of system
// activity for anyone subscribing late.
type Report struct {
	Published uint64    `json:"published"`
	Dropped   uint64    `json:"dropped"`
	Topics    int       `json:"topics"`
	Hunger    int       `json:"hunger"`
	Uptime    string    `json:"uptime"`
	At        time.Time `json:"at"`
}
