// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/log"
	"github.com/ManuGH/treebus/internal/metrics"
)

const (
	// DefaultRetentionLimit bounds the per-topic retained window.
	DefaultRetentionLimit = 10
	// DefaultInboxSize bounds each subscriber inbox.
	DefaultInboxSize = 64

	dropLogEvery = 100
)

// Options configures a Bus instance.
type Options struct {
	RetentionLimit int
	InboxSize      int
	Logger         *zerolog.Logger
}

// Bus is the explicit process-wide pub/sub instance. Construct it once with
// New and pass it to every component; there is no package-level singleton.
type Bus struct {
	mu           sync.Mutex
	topics       map[string]*topicEntry
	retained     *retentionStore
	shuttingDown bool

	inboxSize int
	published atomic.Uint64
	dropped   atomic.Uint64
	logger    zerolog.Logger
}

type topicEntry struct {
	subs map[uuid.UUID]*Subscription
}

// New constructs a Bus with the given options; zero values fall back to the
// defaults.
func New(opts Options) *Bus {
	if opts.RetentionLimit <= 0 {
		opts.RetentionLimit = DefaultRetentionLimit
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	logger := log.WithComponent("bus")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Bus{
		topics:    make(map[string]*topicEntry),
		retained:  newRetentionStore(opts.RetentionLimit),
		inboxSize: opts.InboxSize,
		logger:    logger,
	}
}

// Publish fans payload out to every current subscriber of topic. A topic with
// zero subscribers is a valid no-op target. Publish never blocks: a full
// subscriber inbox evicts its oldest queued message instead of delaying the
// caller or any other subscriber.
func (b *Bus) Publish(topic string, payload any) error {
	return b.publish(topic, payload, false)
}

// PublishRetained publishes like Publish and additionally appends the message
// to the topic's retained window for replay to future subscribers.
func (b *Bus) PublishRetained(topic string, payload any) error {
	return b.publish(topic, payload, true)
}

func (b *Bus) publish(topic string, payload any, retain bool) error {
	msg := Message{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
		Retain:    retain,
	}

	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return ErrShuttingDown
	}
	if b.topics == nil {
		b.mu.Unlock()
		panic("bus: registry is nil")
	}
	if retain {
		b.retained.record(topic, msg)
		metrics.SetRetained(topic, b.retained.count(topic))
	}
	var droppedNow int
	if entry, ok := b.topics[topic]; ok {
		for _, sub := range entry.subs {
			droppedNow += sub.enqueue(msg)
		}
	}
	b.mu.Unlock()

	b.published.Add(1)
	metrics.IncBusPublish(topic)
	if droppedNow > 0 {
		metrics.AddBusDropReason(topic, "inbox_full", droppedNow)
		count := b.dropped.Add(uint64(droppedNow))
		if count%dropLogEvery < uint64(droppedNow) {
			b.logger.Warn().
				Str(log.FieldTopic, topic).
				Uint64(log.FieldDropped, count).
				Msg("slow subscriber, evicting oldest inbox messages")
		}
	}
	return nil
}

// SubscribeOption customises a single Subscribe call.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	replay    bool
	inboxSize int
}

// WithoutReplay skips delivery of the retained window to the new subscriber.
func WithoutReplay() SubscribeOption {
	return func(c *subscribeConfig) { c.replay = false }
}

// WithInboxSize overrides the bus-wide inbox capacity for this subscription.
func WithInboxSize(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		if n > 0 {
			c.inboxSize = n
		}
	}
}

// Subscribe registers a new inbox under topic. Retained messages are replayed
// oldest-first before any concurrently published message: registration and
// replay happen under the bus lock, so live traffic cannot interleave out of
// order. Fails with ErrShuttingDown once the bus is shutting down.
func (b *Bus) Subscribe(topic string, opts ...SubscribeOption) (*Subscription, error) {
	cfg := subscribeConfig{replay: true, inboxSize: b.inboxSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shuttingDown {
		return nil, ErrShuttingDown
	}

	size := cfg.inboxSize
	if replay := b.retained.count(topic); cfg.replay && size < replay {
		// The whole window must fit before live delivery starts.
		size = replay
	}
	sub := &Subscription{
		ID:     uuid.New(),
		Topic:  topic,
		bus:    b,
		inbox:  make(chan Message, size),
		closed: make(chan struct{}),
	}
	if cfg.replay {
		for _, m := range b.retained.snapshot(topic) {
			sub.enqueue(m)
		}
	}

	entry, ok := b.topics[topic]
	if !ok {
		entry = &topicEntry{subs: make(map[uuid.UUID]*Subscription)}
		b.topics[topic] = entry
	}
	entry.subs[sub.ID] = sub
	metrics.SetSubscriptions(topic, len(entry.subs))
	return sub, nil
}

// remove drops the subscription from the registry. Idempotent: removing an
// already-removed subscription is a no-op.
func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.topics[sub.Topic]
	if !ok {
		return
	}
	if _, ok := entry.subs[sub.ID]; !ok {
		return
	}
	delete(entry.subs, sub.ID)
	metrics.SetSubscriptions(sub.Topic, len(entry.subs))
	if len(entry.subs) == 0 && b.retained.count(sub.Topic) == 0 {
		delete(b.topics, sub.Topic)
	}
}

// Shutdown moves the bus into terminal shutdown: new Subscribe and Publish
// calls fail with ErrShuttingDown and every live subscription observes
// ErrClosed from Receive. One-way and idempotent. The context bounds nothing
// today; it keeps the call site uniform with the rest of the daemon's
// shutdown hooks.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return nil
	}
	b.shuttingDown = true
	var subs []*Subscription
	for topic, entry := range b.topics {
		for _, sub := range entry.subs {
			subs = append(subs, sub)
		}
		metrics.SetSubscriptions(topic, 0)
	}
	b.topics = make(map[string]*topicEntry)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.shut()
	}
	b.logger.Info().Int("subscriptions", len(subs)).Msg("bus shut down")
	return nil
}

// ShuttingDown reports whether terminal shutdown has begun.
func (b *Bus) ShuttingDown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shuttingDown
}

// TopicStats is a per-topic diagnostics snapshot.
type TopicStats struct {
	Subscribers int `json:"subscribers"`
	Retained    int `json:"retained"`
}

// Stats is a point-in-time diagnostics snapshot of the bus.
type Stats struct {
	Published    uint64                `json:"published"`
	Dropped      uint64                `json:"dropped"`
	ShuttingDown bool                  `json:"shutting_down"`
	Topics       map[string]TopicStats `json:"topics"`
}

// Stats returns a snapshot of publish, drop and subscriber counts. Concurrent
// publishes may advance the counters after the call returns.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := Stats{
		Published:    b.published.Load(),
		Dropped:      b.dropped.Load(),
		ShuttingDown: b.shuttingDown,
		Topics:       make(map[string]TopicStats, len(b.topics)),
	}
	for topic, entry := range b.topics {
		out.Topics[topic] = TopicStats{
			Subscribers: len(entry.subs),
			Retained:    b.retained.count(topic),
		}
	}
	// Retained content keeps a topic alive even when nobody has subscribed
	// yet, so the registry alone under-reports.
	for topic, n := range b.retained.counts() {
		if _, ok := out.Topics[topic]; !ok {
			out.Topics[topic] = TopicStats{Retained: n}
		}
	}
	return out
}
