// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/config"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: starting the diagnostics server and
// the supervised components, handling shutdown.
type Manager interface {
	// Start starts everything and blocks until shutdown
	Start(ctx context.Context) error

	// Shutdown gracefully shuts down the daemon
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)
}

// manager implements the Manager interface.
type manager struct {
	serverCfg config.ServerConfig
	deps      Deps

	diagServer *http.Server

	// Shutdown hooks (LIFO order)
	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

// namedHook represents a shutdown hook with a name for logging
type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager with the given configuration and dependencies.
func NewManager(serverCfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		serverCfg:     serverCfg,
		deps:          deps,
		logger:        deps.Logger.With().Str("component", "manager").Logger(),
		shutdownHooks: make([]namedHook, 0),
	}, nil
}

// Start starts the diagnostics server, the supervisor and every component,
// then blocks until the context is cancelled, a server error occurs, or a
// fatal alarm completes the supervised shutdown.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.serverCfg.ListenAddr).
		Dur("shutdown_timeout", m.serverCfg.ShutdownTimeout).
		Int("components", len(m.deps.Components)).
		Msg("starting daemon manager")

	errChan := make(chan error, 2+len(m.deps.Components))

	if m.serverCfg.ListenAddr != "" {
		if err := m.startDiagServer(errChan); err != nil {
			return fmt.Errorf("failed to start diagnostics server: %w", err)
		}
	}

	// The supervisor and the components share a cancel rooted in ctx, so OS
	// signals and fatal alarms converge on the same teardown path.
	runCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	go func() {
		if err := m.deps.Supervisor.Run(runCtx); err != nil {
			errChan <- fmt.Errorf("supervisor: %w", err)
		}
	}()

	for _, c := range m.deps.Components {
		compCtx, compCancel := context.WithCancel(runCtx)
		done := make(chan struct{})
		if err := m.deps.Supervisor.Track(c.Name, compCancel, done); err != nil {
			compCancel()
			close(done)
			return fmt.Errorf("failed to track component %s: %w", c.Name, err)
		}
		go func(c Component) {
			defer close(done)
			defer compCancel()
			if err := c.Run(compCtx); err != nil {
				errChan <- fmt.Errorf("component %s: %w", c.Name, err)
			}
		}(c)
		m.logger.Info().Str("component", c.Name).Msg("component started")
	}

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Msg("runtime error, initiating shutdown")
		shutdownCtx, cancel := m.shutdownContext(ctx)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("runtime error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-m.deps.Supervisor.Done():
		m.logger.Info().Msg("supervised shutdown complete")
		shutdownCtx, cancel := m.shutdownContext(ctx)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := m.shutdownContext(ctx)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

// shutdownContext is detached from the parent but bounded, so shutdown can
// complete even when the parent is already cancelled.
func (m *manager) shutdownContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := m.serverCfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (m *manager) startDiagServer(errChan chan<- error) error {
	r := chi.NewRouter()
	if m.deps.Health != nil {
		r.Get("/healthz", m.deps.Health.ServeHealth)
		r.Get("/readyz", m.deps.Health.ServeReady)
	}
	if m.deps.MetricsHandler != nil {
		r.Handle("/metrics", m.deps.MetricsHandler)
	}
	r.Get("/debug/bus", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.deps.Bus.Stats()); err != nil {
			m.logger.Error().Err(err).Msg("failed to encode bus stats")
		}
	})

	m.diagServer = &http.Server{
		Addr:         m.serverCfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  m.serverCfg.ReadTimeout,
		WriteTimeout: m.serverCfg.WriteTimeout,
	}
	go func() {
		m.logger.Info().Str("listen", m.serverCfg.ListenAddr).Msg("diagnostics server listening")
		if err := m.diagServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("diagnostics server: %w", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the daemon: the diagnostics server first,
// then the registered hooks in LIFO order, then the bus.
func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	hooks := make([]namedHook, len(m.shutdownHooks))
	copy(hooks, m.shutdownHooks)
	m.mu.Unlock()

	var errs []error

	if m.diagServer != nil {
		if err := m.diagServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("diagnostics server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		m.logger.Info().Str("hook", h.name).Msg("running shutdown hook")
		if err := h.hook(ctx); err != nil {
			m.logger.Error().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
	}

	if err := m.deps.Bus.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bus shutdown: %w", err))
	}

	m.logger.Info().Msg("daemon stopped")
	return errors.Join(errs...)
}

// RegisterShutdownHook registers a function to be called during shutdown.
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
}
