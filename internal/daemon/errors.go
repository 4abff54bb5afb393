// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingLogger is returned when logger is not provided
	ErrMissingLogger = errors.New("logger is required")

	// ErrMissingBus is returned when the bus is not provided
	ErrMissingBus = errors.New("bus is required")

	// ErrMissingSupervisor is returned when the supervisor is not provided
	ErrMissingSupervisor = errors.New("supervisor is required")

	// ErrManagerNotStarted is returned when trying to shutdown a manager that hasn't started
	ErrManagerNotStarted = errors.New("manager not started")
)
