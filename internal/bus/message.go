// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import "time"

// Message is an immutable published record. The bus never inspects Payload.
type Message struct {
	Topic     string
	Payload   any
	Timestamp time.Time
	Retain    bool
}
