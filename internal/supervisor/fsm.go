// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package supervisor

import (
	"context"
	"fmt"
	"sync"
)

// transition describes a single edge in the mode machine.
// Action performs side-effects once the edge is taken.
type transition[S ~string, E ~string] struct {
	From   S
	Event  E
	To     S
	Action func(ctx context.Context, from S, to S, event E) error
}

// machine is a small, strict FSM runner: unknown transitions are errors.
type machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	index map[string]transition[S, E]
}

func newMachine[S ~string, E ~string](initial S, transitions []transition[S, E]) (*machine[S, E], error) {
	idx := make(map[string]transition[S, E], len(transitions))
	for _, t := range transitions {
		k := key(t.From, t.Event)
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t
	}
	return &machine[S, E]{state: initial, index: idx}, nil
}

func (m *machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire attempts to apply an event atomically.
func (m *machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	from := m.state
	t, ok := m.index[key(from, event)]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("invalid transition: state=%s event=%s", from, event)
	}

	// The action runs outside the critical section to avoid blocking the world.
	to := t.To
	m.mu.Unlock()

	if t.Action != nil {
		if err := t.Action(ctx, from, to, event); err != nil {
			return from, err
		}
	}

	m.mu.Lock()
	// Defensive: ensure no one else moved state in between.
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return cur, fmt.Errorf("concurrent transition detected: from=%s cur=%s event=%s", from, cur, event)
	}
	m.state = to
	m.mu.Unlock()

	return to, nil
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}
