// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscription is one subscriber's inbox on a topic. It is owned exclusively
// by the subscriber that created it; the bus only keeps a registry reference
// so it can deliver and drop the subscription on Close.
type Subscription struct {
	ID    uuid.UUID
	Topic string

	bus    *Bus
	inbox  chan Message
	closed chan struct{}
	once   sync.Once
}

// enqueue places msg into the inbox without ever blocking. On a full inbox the
// oldest queued message is evicted first (drop-oldest). Must be called with
// the bus mutex held: the bus is the only sender, so the evict-then-send retry
// cannot race with another producer.
func (s *Subscription) enqueue(msg Message) (dropped int) {
	for {
		select {
		case s.inbox <- msg:
			return dropped
		default:
		}
		select {
		case <-s.inbox:
			dropped++
		default:
		}
	}
}

// Receive blocks until a message is available, the subscription is torn down,
// or ctx is cancelled. It is the single suspension point for consumers.
// Messages already buffered when the subscription closes are still delivered
// before ErrClosed.
func (s *Subscription) Receive(ctx context.Context) (Message, error) {
	select {
	case m := <-s.inbox:
		return m, nil
	default:
	}
	select {
	case m := <-s.inbox:
		return m, nil
	case <-s.closed:
		return s.drainOrClosed()
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// ReceiveTimeout behaves like Receive but returns ErrTimeout once d elapses
// with no message.
func (s *Subscription) ReceiveTimeout(ctx context.Context, d time.Duration) (Message, error) {
	select {
	case m := <-s.inbox:
		return m, nil
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case m := <-s.inbox:
		return m, nil
	case <-s.closed:
		return s.drainOrClosed()
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-timer.C:
		return Message{}, ErrTimeout
	}
}

func (s *Subscription) drainOrClosed() (Message, error) {
	select {
	case m := <-s.inbox:
		return m, nil
	default:
		return Message{}, ErrClosed
	}
}

// Close removes the subscription from the bus and unblocks any pending
// Receive with ErrClosed. Idempotent; never blocks concurrent publishers.
func (s *Subscription) Close() error {
	s.bus.remove(s)
	s.shut()
	return nil
}

// shut signals closure without touching the registry. Used by bus shutdown,
// which has already cleared the registry.
func (s *Subscription) shut() {
	s.once.Do(func() {
		close(s.closed)
	})
}
