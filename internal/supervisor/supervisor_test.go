// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/treebus/internal/bus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSupervisor(t *testing.T, b *bus.Bus, opts Options) *Supervisor {
	t.Helper()
	opts.Bus = b
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func runSupervisor(t *testing.T, s *Supervisor) (stop func(), done <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond) // let the alarm subscription register
	return cancel, errCh
}

func TestWarningAlarmDegradesWithoutDestruction(t *testing.T) {
	b := bus.New(bus.Options{})
	s := newSupervisor(t, b, Options{})

	cancelled := false
	workerDone := make(chan struct{})
	require.NoError(t, s.Track("worker", func() { cancelled = true }, workerDone))

	stop, done := runSupervisor(t, s)
	defer func() {
		stop()
		require.NoError(t, <-done)
		close(workerDone)
	}()

	require.NoError(t, b.Publish(DefaultAlarmTopic, Alarm{Kind: KindWarning, Reason: "hungry"}))
	require.Eventually(t, func() bool {
		return s.Mode() == ModeDegraded
	}, time.Second, 10*time.Millisecond)

	require.False(t, cancelled, "warning must not cancel workers")
	require.False(t, b.ShuttingDown(), "warning must not shut the bus down")

	// Repeated warnings while degraded are harmless.
	require.NoError(t, b.Publish(DefaultAlarmTopic, Alarm{Kind: KindWarning}))
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, ModeDegraded, s.Mode())
}

func TestFatalAlarmShutsEverythingDown(t *testing.T) {
	b := bus.New(bus.Options{})
	s := newSupervisor(t, b, Options{})

	// A well-behaved worker: closes done when cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(workerDone)
	}()
	require.NoError(t, s.Track("worker", cancel, workerDone))

	other, err := b.Subscribe("some.topic")
	require.NoError(t, err)

	_, done := runSupervisor(t, s)

	require.NoError(t, b.Publish(DefaultAlarmTopic, Alarm{Kind: KindFatal, Reason: "starvation"}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not finish shutdown")
	}
	require.Equal(t, ModeShuttingDown, s.Mode())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed after fatal shutdown")
	}

	// New subscriptions are refused and old ones observe end-of-stream.
	_, err = b.Subscribe("another.topic")
	require.ErrorIs(t, err, bus.ErrShuttingDown)
	_, err = other.Receive(context.Background())
	require.ErrorIs(t, err, bus.ErrClosed)

	require.ErrorIs(t, s.Track("late", func() {}, nil), ErrShuttingDown)
}

func TestNormalGoesStraightToShutdownOnFatal(t *testing.T) {
	b := bus.New(bus.Options{})
	s := newSupervisor(t, b, Options{})
	_, done := runSupervisor(t, s)

	require.NoError(t, b.Publish(DefaultAlarmTopic, Alarm{Kind: KindFatal}))
	require.NoError(t, <-done)
	require.Equal(t, ModeShuttingDown, s.Mode())
}

func TestStragglerIsLoggedAndShutdownProceeds(t *testing.T) {
	mock := clock.NewMock()
	b := bus.New(bus.Options{})
	s := newSupervisor(t, b, Options{Grace: 5 * time.Second, Clock: mock})

	// This worker never acknowledges cancellation.
	straggler := make(chan struct{})
	require.NoError(t, s.Track("straggler", func() {}, straggler))

	_, done := runSupervisor(t, s)
	require.NoError(t, b.Publish(DefaultAlarmTopic, Alarm{Kind: KindFatal}))

	// Let the supervisor arm its grace timer, then let it expire.
	time.Sleep(50 * time.Millisecond)
	mock.Add(6 * time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor hung on a straggling worker")
	}
	close(straggler)
}

func TestMalformedAlarmPayloadIsIgnored(t *testing.T) {
	b := bus.New(bus.Options{})
	s := newSupervisor(t, b, Options{})
	stop, done := runSupervisor(t, s)
	defer func() {
		stop()
		require.NoError(t, <-done)
	}()

	require.NoError(t, b.Publish(DefaultAlarmTopic, "not an alarm"))
	require.NoError(t, b.Publish(DefaultAlarmTopic, Alarm{Kind: "sparrow"}))
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, ModeNormal, s.Mode())
}

func TestRetainedFatalIsNotReplayed(t *testing.T) {
	b := bus.New(bus.Options{})
	// A fatal alarm retained before the supervisor starts must not kill it.
	require.NoError(t, b.PublishRetained(DefaultAlarmTopic, Alarm{Kind: KindFatal}))

	s := newSupervisor(t, b, Options{})
	stop, done := runSupervisor(t, s)
	defer func() {
		stop()
		require.NoError(t, <-done)
	}()

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, ModeNormal, s.Mode())
}

func TestMachineRejectsUnknownTransition(t *testing.T) {
	m, err := newMachine(ModeShuttingDown, []transition[Mode, kindEvent]{
		{From: ModeNormal, Event: kindEvent(KindWarning), To: ModeDegraded},
	})
	require.NoError(t, err)

	_, err = m.Fire(context.Background(), kindEvent(KindWarning))
	require.Error(t, err, "shutting_down is terminal")
}

func TestMachineRejectsDuplicateTransitions(t *testing.T) {
	_, err := newMachine(ModeNormal, []transition[Mode, kindEvent]{
		{From: ModeNormal, Event: kindEvent(KindWarning), To: ModeDegraded},
		{From: ModeNormal, Event: kindEvent(KindWarning), To: ModeShuttingDown},
	})
	require.Error(t, err)
}
