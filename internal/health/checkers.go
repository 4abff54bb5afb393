// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"

	"github.com/ManuGH/treebus/internal/bus"
	"github.com/ManuGH/treebus/internal/supervisor"
)

// BusChecker reports the pub/sub core's state.
type BusChecker struct {
	Bus *bus.Bus
}

func (c *BusChecker) Name() string { return "bus" }

func (c *BusChecker) Check(ctx context.Context) CheckResult {
	stats := c.Bus.Stats()
	if stats.ShuttingDown {
		return CheckResult{Status: StatusUnhealthy, Message: "bus is shutting down"}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d topics, %d published", len(stats.Topics), stats.Published),
	}
}

// SupervisorChecker maps the supervisor mode onto probe status: degraded mode
// keeps the daemon ready but flags it for observability.
type SupervisorChecker struct {
	Supervisor *supervisor.Supervisor
}

func (c *SupervisorChecker) Name() string { return "supervisor" }

func (c *SupervisorChecker) Check(ctx context.Context) CheckResult {
	switch mode := c.Supervisor.Mode(); mode {
	case supervisor.ModeNormal:
		return CheckResult{Status: StatusHealthy}
	case supervisor.ModeDegraded:
		return CheckResult{Status: StatusDegraded, Message: "degraded mode"}
	default:
		return CheckResult{Status: StatusUnhealthy, Message: string(mode)}
	}
}
