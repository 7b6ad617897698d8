package ack

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Monitors runs the two background sweeps over the gate state: the
// pending monitor escalates overdue waiting records into the blocked
// set, and the staleness monitor forces strict mode when no
// acknowledgment has landed for too long. Detection latency is bounded
// by the monitor periods, not instantaneous.
type Monitors struct {
	state *State
	log   *zap.Logger

	pendingPeriod time.Duration
	stalePeriod   time.Duration
}

// NewMonitors creates the monitors for a gate state.
func NewMonitors(state *State, pendingPeriod, stalePeriod time.Duration, log *zap.Logger) *Monitors {
	return &Monitors{
		state:         state,
		log:           log,
		pendingPeriod: pendingPeriod,
		stalePeriod:   stalePeriod,
	}
}

// Start launches both monitor goroutines. They run until ctx is
// cancelled; Start returns immediately.
func (m *Monitors) Start(ctx context.Context) {
	go m.run(ctx, "pending", m.pendingPeriod, m.state.escalateOverdue)
	go m.run(ctx, "staleness", m.stalePeriod, m.state.enforceStaleness)
}

func (m *Monitors) run(ctx context.Context, name string, period time.Duration, sweep func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	m.log.Debug("monitor started",
		zap.String("monitor", name),
		zap.Duration("period", period))

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("monitor stopped", zap.String("monitor", name))
			return
		case <-ticker.C:
			sweep()
		}
	}
}
