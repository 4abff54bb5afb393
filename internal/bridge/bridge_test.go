// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/treebus/internal/bus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop, cancel
}

func TestLoopExecutesTasksInOrder(t *testing.T) {
	loop, _ := startLoop(t)

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, loop.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestLoopSubmitAfterStop(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	cancel()
	<-done

	err := loop.Submit(func() {})
	require.ErrorIs(t, err, ErrLoopStopped)
}

func TestLoopRecoversFromPanickingTask(t *testing.T) {
	loop, _ := startLoop(t)

	require.NoError(t, loop.Submit(func() { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, loop.Submit(func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("loop died after a panicking task")
	}
}

func TestPromiseAwaitBlockingConsumer(t *testing.T) {
	loop, _ := startLoop(t)

	p := Go(loop, func() (int, error) {
		time.Sleep(10 * time.Millisecond)
		return 42, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := p.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestPromiseAwaitContextCancel(t *testing.T) {
	loop, _ := startLoop(t)

	p := NewPromise[int](loop)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	p.Complete(1, nil) // release the promise so nothing lingers
}

func TestThenRunsOnLoopNotOnWorker(t *testing.T) {
	loop, _ := startLoop(t)

	// Occupy the loop. If Complete invoked the continuation directly on the
	// worker, it would fire while the loop is still busy.
	release := make(chan struct{})
	busy := make(chan struct{})
	require.NoError(t, loop.Submit(func() {
		close(busy)
		<-release
	}))
	<-busy

	p := NewPromise[string](loop)
	var fired atomic.Bool
	done := make(chan struct{})
	p.Then(func(v string, err error) {
		fired.Store(true)
		close(done)
	})

	p.Complete("done", nil)
	time.Sleep(30 * time.Millisecond)
	require.False(t, fired.Load(), "continuation ran off-loop while the loop was busy")

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("continuation never ran on the loop")
	}
	require.True(t, fired.Load())
}

func TestThenAfterCompletionDispatchesImmediately(t *testing.T) {
	loop, _ := startLoop(t)

	p := NewPromise[int](loop)
	p.Complete(7, nil)

	done := make(chan int, 1)
	p.Then(func(v int, err error) { done <- v })
	select {
	case v := <-done:
		require.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("late continuation never dispatched")
	}
}

func TestCompleteFirstCallWins(t *testing.T) {
	loop, _ := startLoop(t)

	p := NewPromise[int](loop)
	p.Complete(1, nil)
	p.Complete(2, errors.New("ignored"))

	v, err := p.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	b := bus.New(bus.Options{})
	loop, _ := startLoop(t)
	d := NewDispatcher(b, loop)

	var mu sync.Mutex
	var got []any
	recvd := make(chan struct{}, 16)
	require.NoError(t, d.Handle("tick", func(ctx context.Context, msg bus.Message) error {
		mu.Lock()
		got = append(got, msg.Payload)
		mu.Unlock()
		recvd <- struct{}{}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish("tick", i))
	}
	for i := 0; i < 5; i++ {
		select {
		case <-recvd:
		case <-time.After(time.Second):
			t.Fatal("handler starved")
		}
	}
	mu.Lock()
	require.Equal(t, []any{0, 1, 2, 3, 4}, got)
	mu.Unlock()

	cancel()
	require.NoError(t, <-runDone)
}

func TestDispatcherIsolatesHandlerFailures(t *testing.T) {
	b := bus.New(bus.Options{})
	loop, _ := startLoop(t)
	d := NewDispatcher(b, loop)

	healthyGot := make(chan any, 8)
	require.NoError(t, d.Handle("feed", func(ctx context.Context, msg bus.Message) error {
		return errors.New("handler failure")
	}))
	require.NoError(t, d.Handle("feed", func(ctx context.Context, msg bus.Message) error {
		if msg.Payload == "explode" {
			panic("handler panic")
		}
		healthyGot <- msg.Payload
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Publish("feed", "one"))
	require.NoError(t, b.Publish("feed", "explode"))
	require.NoError(t, b.Publish("feed", "two"))

	// The failing and panicking deliveries must not stop later ones.
	require.Equal(t, "one", <-healthyGot)
	require.Equal(t, "two", <-healthyGot)

	cancel()
	require.NoError(t, <-runDone)
}

func TestDispatcherStopsOnBusShutdown(t *testing.T) {
	b := bus.New(bus.Options{})
	loop, _ := startLoop(t)
	d := NewDispatcher(b, loop)

	require.NoError(t, d.Handle("any", func(ctx context.Context, msg bus.Message) error { return nil }))

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Shutdown(context.Background()))
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on bus shutdown")
	}
}

func TestHandleAfterRunFails(t *testing.T) {
	b := bus.New(bus.Options{})
	loop, _ := startLoop(t)
	d := NewDispatcher(b, loop)
	require.NoError(t, d.Handle("a", func(ctx context.Context, msg bus.Message) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	err := d.Handle("b", func(ctx context.Context, msg bus.Message) error { return nil })
	require.Error(t, err)

	cancel()
	require.NoError(t, <-runDone)
}
