// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import "errors"

var (
	// ErrShuttingDown is returned by Subscribe and Publish once the bus has
	// entered terminal shutdown. Callers must stop producing.
	ErrShuttingDown = errors.New("bus: shutting down")

	// ErrClosed is returned by Receive when the subscription or the bus has
	// been torn down. It is a normal end-of-stream signal, not a failure.
	ErrClosed = errors.New("bus: subscription closed")

	// ErrTimeout is returned by ReceiveTimeout when the deadline elapses with
	// no message. Distinct from ErrClosed so callers can tell "nothing
	// happened" from "shut down".
	ErrTimeout = errors.New("bus: receive timeout")
)
