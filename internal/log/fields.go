// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSubscriptionID = "subscription_id"
	FieldWorker         = "worker"

	// Bus fields
	FieldTopic    = "topic"
	FieldReason   = "reason"
	FieldRetained = "retained"
	FieldDropped  = "dropped"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldMode = "old_mode"
	FieldNewMode = "new_mode"
	FieldKind    = "kind"
)
