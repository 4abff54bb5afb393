// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

// retentionStore keeps the per-topic bounded FIFO of retained messages.
// It is not self-locking: every method must be called with the bus mutex held,
// which is what makes retained replay atomic with respect to concurrent
// publishes.
type retentionStore struct {
	limit   int
	windows map[string][]Message
}

func newRetentionStore(limit int) *retentionStore {
	return &retentionStore{
		limit:   limit,
		windows: make(map[string][]Message),
	}
}

// record appends msg to the topic window, evicting the oldest entry beyond
// the limit. Amortized O(1).
func (s *retentionStore) record(topic string, msg Message) {
	w := s.windows[topic]
	if len(w) >= s.limit {
		copy(w, w[1:])
		w = w[:len(w)-1]
	}
	s.windows[topic] = append(w, msg)
}

// snapshot returns a copy of the topic window, oldest first. The copy keeps
// replay independent from later eviction.
func (s *retentionStore) snapshot(topic string) []Message {
	w := s.windows[topic]
	if len(w) == 0 {
		return nil
	}
	out := make([]Message, len(w))
	copy(out, w)
	return out
}

func (s *retentionStore) count(topic string) int {
	return len(s.windows[topic])
}

// counts returns the window size of every topic holding retained messages,
// including topics with no live subscribers and therefore no registry entry.
func (s *retentionStore) counts() map[string]int {
	out := make(map[string]int, len(s.windows))
	for topic, w := range s.windows {
		out[topic] = len(w)
	}
	return out
}
