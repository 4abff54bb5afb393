package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/supervisor"
)

type seqMsg struct {
	Publisher int
	Seq       int64
}

// runOrdering drives several concurrent publishers against one topic and
// checks that every subscriber sees each publisher's sequence in order.
// Drop-oldest may open gaps, so the check is monotonicity, not density.
func runOrdering(cfg Config, rng *rand.Rand) ScenarioResult {
	result := ScenarioResult{
		Name:         "ordering",
		Observations: map[string]int64{},
	}

	b := bus.New(bus.Options{InboxSize: 1024})
	const topic = "soak.ordering"

	type subState struct {
		sub      *bus.Subscription
		lastSeen []int64
		received int64
		failures []Failure
	}

	subs := make([]*subState, cfg.Subscribers)
	for i := range subs {
		sub, err := b.Subscribe(topic)
		if err != nil {
			result.Reason = fmt.Sprintf("subscribe: %v", err)
			return result
		}
		subs[i] = &subState{sub: sub, lastSeen: make([]int64, cfg.Publishers)}
		for p := range subs[i].lastSeen {
			subs[i].lastSeen[p] = -1
		}
	}

	var wg sync.WaitGroup
	for _, st := range subs {
		wg.Add(1)
		go func(st *subState) {
			defer wg.Done()
			for {
				msg, err := st.sub.Receive(context.Background())
				if errors.Is(err, bus.ErrClosed) {
					return
				}
				if err != nil {
					st.failures = append(st.failures, Failure{
						Time: time.Now(), Rule: "receive",
						Message: err.Error(),
					})
					return
				}
				m, ok := msg.Payload.(seqMsg)
				if !ok {
					st.failures = append(st.failures, Failure{
						Time: time.Now(), Rule: "payload",
						Message: fmt.Sprintf("unexpected payload %T", msg.Payload),
					})
					continue
				}
				st.received++
				if m.Seq <= st.lastSeen[m.Publisher] {
					st.failures = append(st.failures, Failure{
						Time: time.Now(), Rule: "order",
						Message: fmt.Sprintf("publisher %d: seq %d after %d", m.Publisher, m.Seq, st.lastSeen[m.Publisher]),
					})
				}
				st.lastSeen[m.Publisher] = m.Seq
			}
		}(st)
	}

	deadline := time.Now().Add(cfg.Duration)
	var pubWG sync.WaitGroup
	for p := 0; p < cfg.Publishers; p++ {
		pubWG.Add(1)
		delay := time.Duration(rng.Intn(200)+50) * time.Microsecond
		go func(p int, delay time.Duration) {
			defer pubWG.Done()
			var seq int64
			for time.Now().Before(deadline) {
				if err := b.Publish(topic, seqMsg{Publisher: p, Seq: seq}); err != nil {
					return
				}
				seq++
				time.Sleep(delay)
			}
		}(p, delay)
	}
	pubWG.Wait()

	stats := b.Stats()
	_ = b.Shutdown(context.Background())
	wg.Wait()

	result.Observations["published"] = int64(stats.Published) // #nosec G115
	result.Observations["dropped"] = int64(stats.Dropped)     // #nosec G115
	for _, st := range subs {
		result.Observations["received"] += st.received
		result.Failures = append(result.Failures, st.failures...)
	}
	result.Pass = len(result.Failures) == 0
	if !result.Pass {
		result.Reason = "ordering violations observed"
	}
	return result
}

// runReplay publishes more retained messages than the window holds, then
// subscribes late and checks the replay is exactly the newest window, oldest
// first, ahead of live traffic.
func runReplay(cfg Config) ScenarioResult {
	result := ScenarioResult{
		Name:         "replay",
		Observations: map[string]int64{},
	}
	fail := func(rule, msg string) {
		result.Failures = append(result.Failures, Failure{Time: time.Now(), Rule: rule, Message: msg})
	}

	const window = 10
	b := bus.New(bus.Options{RetentionLimit: window})
	defer func() { _ = b.Shutdown(context.Background()) }()
	const topic = "soak.replay"

	const total = 25
	for i := 0; i < total; i++ {
		if err := b.PublishRetained(topic, int64(i)); err != nil {
			result.Reason = fmt.Sprintf("publish: %v", err)
			return result
		}
	}

	sub, err := b.Subscribe(topic)
	if err != nil {
		result.Reason = fmt.Sprintf("subscribe: %v", err)
		return result
	}
	defer func() { _ = sub.Close() }()

	// Live message published after subscription must come after the replay.
	if err := b.Publish(topic, int64(total)); err != nil {
		result.Reason = fmt.Sprintf("publish live: %v", err)
		return result
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	want := int64(total - window)
	for i := 0; i <= window; i++ {
		msg, err := sub.Receive(ctx)
		if err != nil {
			fail("replay", fmt.Sprintf("receive %d: %v", i, err))
			break
		}
		got, ok := msg.Payload.(int64)
		if !ok || got != want {
			fail("replay", fmt.Sprintf("position %d: got %v, want %d", i, msg.Payload, want))
		}
		result.Observations["replayed"]++
		want++
	}

	result.Pass = len(result.Failures) == 0
	if !result.Pass {
		result.Reason = "replay window mismatch"
	}
	return result
}

// runOverflow pins one subscriber while another keeps reading, and checks the
// slow inbox dropped its oldest entries without stalling the publisher or the
// fast subscriber.
func runOverflow(cfg Config) ScenarioResult {
	result := ScenarioResult{
		Name:         "overflow",
		Observations: map[string]int64{},
	}
	fail := func(rule, msg string) {
		result.Failures = append(result.Failures, Failure{Time: time.Now(), Rule: rule, Message: msg})
	}

	b := bus.New(bus.Options{})
	const topic = "soak.overflow"
	const total = 200
	const slowInbox = 8

	slow, err := b.Subscribe(topic, bus.WithInboxSize(slowInbox))
	if err != nil {
		result.Reason = fmt.Sprintf("subscribe slow: %v", err)
		return result
	}
	fast, err := b.Subscribe(topic, bus.WithInboxSize(total))
	if err != nil {
		result.Reason = fmt.Sprintf("subscribe fast: %v", err)
		return result
	}

	start := time.Now()
	for i := 0; i < total; i++ {
		if err := b.Publish(topic, int64(i)); err != nil {
			result.Reason = fmt.Sprintf("publish: %v", err)
			return result
		}
	}
	publishTime := time.Since(start)
	if publishTime > time.Second {
		fail("nonblocking", fmt.Sprintf("publishing %d messages took %s", total, publishTime))
	}

	_ = b.Shutdown(context.Background())

	drain := func(sub *bus.Subscription) (count int64, last int64) {
		last = -1
		for {
			msg, err := sub.Receive(context.Background())
			if err != nil {
				return count, last
			}
			v := msg.Payload.(int64)
			if v <= last {
				fail("order", fmt.Sprintf("got %d after %d", v, last))
			}
			last = v
			count++
		}
	}

	fastCount, _ := drain(fast)
	slowCount, slowLast := drain(slow)

	result.Observations["fast_received"] = fastCount
	result.Observations["slow_received"] = slowCount
	result.Observations["dropped"] = int64(b.Stats().Dropped) // #nosec G115

	if fastCount != total {
		fail("isolation", fmt.Sprintf("fast subscriber got %d of %d", fastCount, total))
	}
	if slowCount != slowInbox {
		fail("overflow", fmt.Sprintf("slow subscriber got %d, want %d", slowCount, slowInbox))
	}
	if slowLast != total-1 {
		fail("drop-oldest", fmt.Sprintf("slow subscriber's last message was %d, want %d", slowLast, total-1))
	}

	result.Pass = len(result.Failures) == 0
	if !result.Pass {
		result.Reason = "overflow invariants violated"
	}
	return result
}

// runStarvation runs the full supervised shutdown path: a fatal alarm must
// close every subscription, refuse new work, and complete within the grace
// period.
func runStarvation(cfg Config) ScenarioResult {
	result := ScenarioResult{
		Name:         "starvation",
		Observations: map[string]int64{},
	}
	fail := func(rule, msg string) {
		result.Failures = append(result.Failures, Failure{Time: time.Now(), Rule: rule, Message: msg})
	}

	b := bus.New(bus.Options{})
	sup, err := supervisor.New(supervisor.Options{Bus: b, Grace: 2 * time.Second})
	if err != nil {
		result.Reason = fmt.Sprintf("supervisor: %v", err)
		return result
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sup.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	sub, err := b.Subscribe("soak.worker")
	if err != nil {
		result.Reason = fmt.Sprintf("subscribe: %v", err)
		return result
	}
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for {
			if _, err := sub.Receive(context.Background()); err != nil {
				return
			}
		}
	}()

	if err := b.Publish(supervisor.DefaultAlarmTopic, supervisor.Alarm{
		Kind: supervisor.KindWarning, Reason: "soak warning",
	}); err != nil {
		result.Reason = fmt.Sprintf("publish warning: %v", err)
		return result
	}
	time.Sleep(50 * time.Millisecond)
	if sup.Mode() != supervisor.ModeDegraded {
		fail("degrade", fmt.Sprintf("mode after warning: %s", sup.Mode()))
	}

	start := time.Now()
	if err := b.Publish(supervisor.DefaultAlarmTopic, supervisor.Alarm{
		Kind: supervisor.KindFatal, Reason: "soak starvation",
	}); err != nil {
		result.Reason = fmt.Sprintf("publish fatal: %v", err)
		return result
	}

	select {
	case <-sup.Done():
		result.Observations["shutdown_ms"] = time.Since(start).Milliseconds()
	case <-time.After(5 * time.Second):
		fail("shutdown", "supervisor did not complete shutdown")
	}

	select {
	case <-workerDone:
	case <-time.After(time.Second):
		fail("close", "subscriber was not released by shutdown")
	}

	if _, err := b.Subscribe("soak.late"); !errors.Is(err, bus.ErrShuttingDown) {
		fail("refuse", fmt.Sprintf("late subscribe error: %v", err))
	}
	if err := b.Publish("soak.late", nil); !errors.Is(err, bus.ErrShuttingDown) {
		fail("refuse", fmt.Sprintf("late publish error: %v", err))
	}

	result.Pass = len(result.Failures) == 0
	if !result.Pass {
		result.Reason = "shutdown invariants violated"
	}
	return result
}
