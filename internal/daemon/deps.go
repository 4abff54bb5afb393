// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/config"
	"github.com/ManuGH/treebus/internal/health"
	"github.com/ManuGH/treebus/internal/supervisor"
)

// Component is a supervised unit of work: the manager runs it on its own
// goroutine with its own cancel and registers it with the supervisor, so a
// fatal alarm cancels it and waits for it within the grace period.
type Component struct {
	// Name identifies the component in logs and straggler reports.
	Name string

	// Run does the work. It must return promptly once ctx is cancelled or
	// the bus shuts down; a clean stop returns nil.
	Run func(ctx context.Context) error
}

// Deps contains dependencies required by the daemon Manager.
// This allows for clean dependency injection and easier testing.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Config is the loaded daemon configuration
	Config config.AppConfig

	// Bus is the pub/sub core shared by every component
	Bus *bus.Bus

	// Supervisor owns alarm handling and coordinated shutdown
	Supervisor *supervisor.Supervisor

	// Health serves the liveness/readiness probes (optional)
	Health *health.Manager

	// MetricsHandler is the HTTP handler for Prometheus metrics (optional)
	MetricsHandler http.Handler

	// Components are the supervised producers and consumers to run
	Components []Component
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.Bus == nil {
		return ErrMissingBus
	}
	if d.Supervisor == nil {
		return ErrMissingSupervisor
	}
	return nil
}
