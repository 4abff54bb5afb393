// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bridge moves data and control between blocking workers and a
// cooperative single-goroutine scheduler.
//
// A Loop executes submitted funcs serially on one goroutine, which gives
// loop-affine code the single-threaded semantics the conversation and routing
// logic expects. A Promise lets loop code delegate a blocking operation to a
// worker goroutine and resume on the loop when the worker resolves it:
// continuations registered with Then always run on the owning loop, never on
// the worker. The Dispatcher is the explicit (topic, handler) registration
// table that pumps bus subscriptions onto the loop in per-topic order.
package bridge
