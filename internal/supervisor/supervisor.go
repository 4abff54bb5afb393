// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package supervisor reacts to alarms on the system alarm topic and drives
// coordinated shutdown of the bus and every tracked worker.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/log"
	"github.com/ManuGH/treebus/internal/metrics"
)

// Mode is the supervisor lifecycle state. The only transitions are
// normal -> degraded -> shutting_down; shutting_down is terminal.
type Mode string

const (
	ModeNormal       Mode = "normal"
	ModeDegraded     Mode = "degraded"
	ModeShuttingDown Mode = "shutting_down"
)

var knownModes = []string{string(ModeNormal), string(ModeDegraded), string(ModeShuttingDown)}

// Alarm kinds understood on the alarm topic.
const (
	KindWarning = "warning"
	KindFatal   = "fatal"
)

// DefaultAlarmTopic is the reserved control topic. Any component may publish
// to it; only the supervisor subscribes.
const DefaultAlarmTopic = "system.alarm"

// DefaultGracePeriod bounds how long shutdown waits for tracked workers.
const DefaultGracePeriod = 5 * time.Second

// Alarm is the payload shape on the alarm topic.
type Alarm struct {
	Kind   string
	Reason string
}

// ErrShuttingDown is returned by Track once terminal shutdown has begun.
var ErrShuttingDown = errors.New("supervisor: shutting down")

type kindEvent string

type worker struct {
	name   string
	cancel context.CancelFunc
	done   <-chan struct{}
}

// Options configures a Supervisor.
type Options struct {
	Bus        *bus.Bus
	AlarmTopic string
	Grace      time.Duration
	Clock      clock.Clock
	Logger     *zerolog.Logger
}

// Supervisor consumes the alarm topic and owns the shutdown sequence. A
// warning alarm moves it to degraded (observability only); a fatal alarm
// shuts the bus down, cancels every tracked worker and waits a bounded grace
// period for their acknowledged termination.
type Supervisor struct {
	bus    *bus.Bus
	topic  string
	grace  time.Duration
	clk    clock.Clock
	logger zerolog.Logger
	fsm    *machine[Mode, kindEvent]

	mu       sync.Mutex
	workers  []worker
	stopping bool

	shutdownDone chan struct{}
}

// New constructs a Supervisor; zero option values fall back to defaults.
func New(opts Options) (*Supervisor, error) {
	if opts.Bus == nil {
		return nil, errors.New("supervisor: bus is required")
	}
	if opts.AlarmTopic == "" {
		opts.AlarmTopic = DefaultAlarmTopic
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGracePeriod
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	logger := log.WithComponent("supervisor")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Supervisor{
		bus:          opts.Bus,
		topic:        opts.AlarmTopic,
		grace:        opts.Grace,
		clk:          opts.Clock,
		logger:       logger,
		shutdownDone: make(chan struct{}),
	}

	logMode := func(ctx context.Context, from, to Mode, ev kindEvent) error {
		metrics.SetSupervisorMode(string(to), knownModes)
		s.logger.Info().
			Str(log.FieldOldMode, string(from)).
			Str(log.FieldNewMode, string(to)).
			Str(log.FieldKind, string(ev)).
			Msg("supervisor mode change")
		return nil
	}
	fsm, err := newMachine(ModeNormal, []transition[Mode, kindEvent]{
		{From: ModeNormal, Event: KindWarning, To: ModeDegraded, Action: logMode},
		{From: ModeNormal, Event: KindFatal, To: ModeShuttingDown, Action: logMode},
		// Repeated warnings while degraded are expected, not errors.
		{From: ModeDegraded, Event: KindWarning, To: ModeDegraded},
		{From: ModeDegraded, Event: KindFatal, To: ModeShuttingDown, Action: logMode},
	})
	if err != nil {
		return nil, err
	}
	s.fsm = fsm
	metrics.SetSupervisorMode(string(ModeNormal), knownModes)
	return s, nil
}

// Mode returns the current lifecycle mode.
func (s *Supervisor) Mode() Mode {
	return s.fsm.State()
}

// Done is closed once a fatal shutdown sequence has completed.
func (s *Supervisor) Done() <-chan struct{} {
	return s.shutdownDone
}

// Track registers a supervised worker. cancel is invoked on fatal shutdown;
// done must be closed by the worker when it has terminated. Workers are
// expected to honor cancellation promptly; the grace period is the only
// safety net. Refused once shutdown has begun.
func (s *Supervisor) Track(name string, cancel context.CancelFunc, done <-chan struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return ErrShuttingDown
	}
	s.workers = append(s.workers, worker{name: name, cancel: cancel, done: done})
	return nil
}

// Run subscribes to the alarm topic and reacts to alarms until ctx is
// cancelled, the bus shuts down, or a fatal alarm completes the shutdown
// sequence. Retained alarms are not replayed: a stale fatal must not kill a
// fresh process.
func (s *Supervisor) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(s.topic, bus.WithoutReplay())
	if err != nil {
		return fmt.Errorf("supervisor: subscribe %q: %w", s.topic, err)
	}
	defer func() { _ = sub.Close() }()

	for {
		msg, err := sub.Receive(ctx)
		switch {
		case errors.Is(err, bus.ErrClosed):
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			return fmt.Errorf("supervisor: receive: %w", err)
		}

		alarm, ok := msg.Payload.(Alarm)
		if !ok {
			s.logger.Warn().
				Str(log.FieldTopic, msg.Topic).
				Interface("payload", msg.Payload).
				Msg("malformed alarm payload")
			continue
		}
		metrics.IncAlarm(alarm.Kind)

		switch alarm.Kind {
		case KindWarning:
			if _, err := s.fsm.Fire(ctx, kindEvent(KindWarning)); err != nil {
				s.logger.Debug().Err(err).Msg("warning alarm ignored")
			}
		case KindFatal:
			if _, err := s.fsm.Fire(ctx, kindEvent(KindFatal)); err != nil {
				s.logger.Debug().Err(err).Msg("fatal alarm ignored")
				continue
			}
			s.logger.Error().Str("reason", alarm.Reason).Msg("fatal alarm, shutting down")
			s.shutdown(ctx)
			return nil
		default:
			s.logger.Warn().Str(log.FieldKind, alarm.Kind).Msg("unknown alarm kind")
		}
	}
}

// shutdown tears the system down: the bus first, so every subscription
// observes ErrClosed, then every tracked worker, with one bounded grace
// period across all of them.
func (s *Supervisor) shutdown(ctx context.Context) {
	defer close(s.shutdownDone)

	if err := s.bus.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("bus shutdown failed")
	}

	s.mu.Lock()
	s.stopping = true
	workers := make([]worker, len(s.workers))
	copy(workers, s.workers)
	s.mu.Unlock()

	for _, w := range workers {
		if w.cancel != nil {
			w.cancel()
		}
	}

	timer := s.clk.Timer(s.grace)
	defer timer.Stop()
	for _, w := range workers {
		select {
		case <-w.done:
		case <-timer.C:
			s.logStragglers(workers)
			return
		}
	}
	s.logger.Info().Int("workers", len(workers)).Msg("shutdown complete")
}

// logStragglers reports every worker still running when the grace period
// elapsed. Shutdown proceeds regardless: prompt cancellation is a documented
// worker obligation, not something the supervisor can force.
func (s *Supervisor) logStragglers(workers []worker) {
	for _, w := range workers {
		select {
		case <-w.done:
		default:
			metrics.IncStraggler()
			s.logger.Warn().
				Str(log.FieldWorker, w.name).
				Dur("grace", s.grace).
				Msg("worker missed shutdown grace period")
		}
	}
}
