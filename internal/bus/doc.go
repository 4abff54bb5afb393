// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus implements the in-process topic pub/sub core.
//
// A Bus fans published messages out to every live subscription of a topic and
// keeps a bounded per-topic window of retained messages that is replayed to
// late subscribers before any live traffic. Publish never blocks the caller:
// a full subscriber inbox drops its oldest queued message (drop-oldest
// overflow policy), so a slow consumer can only lose its own messages, never
// delay another subscriber or the publisher.
//
// All registry and retention state is guarded by a single bus mutex; only
// in-memory queue manipulation happens under it. Receive is the sole
// suspension point exposed to consumers.
package bus
