// Package audit implements the Audit engine: it measures per-exchange
// throughput and latency across every MarketData engine's fan-out and,
// when enabled, persists periodic snapshots to disk (spec §2's Audit row;
// snapshot persistence is a [EXPANSION] grounded on the teacher's
// internal/store/store.go atomic-rename pattern).
package audit

import (
	"context"
	"log/slog"
	"time"

	"botnode/internal/engine"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

const pollTimeout = 50 * time.Microsecond

// Counters holds one exchange's running throughput stats.
type Counters struct {
	EventsTotal  int64
	LastEventAt  time.Time
	LatencySumNS int64
}

// Engine is the Audit engine.
type Engine struct {
	marketData *transport.ConsumersMap[string, types.MarketEvent]
	configRx   transport.Consumer[types.BotConfiguration]

	status   *engine.StatusPublisher
	statusRx transport.Consumer[types.EngineStatus]

	counters map[string]*Counters
	snapshot *SnapshotWriter // nil when persistence is disabled

	backoff *engine.PollBackoff
	logger  *slog.Logger
}

// New constructs the Audit engine. snapshot may be nil to disable
// persistence (the default).
func New(
	marketData *transport.ConsumersMap[string, types.MarketEvent],
	configRx transport.Consumer[types.BotConfiguration],
	snapshot *SnapshotWriter,
	logger *slog.Logger,
) *Engine {
	statusTx, statusRx := transport.Make[types.EngineStatus](1)
	return &Engine{
		marketData: marketData,
		configRx:   configRx,
		status:     engine.NewStatusPublisher(statusTx),
		statusRx:   statusRx,
		counters:   make(map[string]*Counters),
		snapshot:   snapshot,
		backoff:    engine.NewPollBackoff(engine.DefaultSpinBudget, pollTimeout),
		logger:     logger.With("component", "audit"),
	}
}

func (e *Engine) Name() string { return "audit" }

func (e *Engine) StatusRx() transport.Consumer[types.EngineStatus] { return e.statusRx }

// Start runs the Audit main loop: poll market data round-robin, tally
// throughput, and (if enabled) write a periodic snapshot.
func (e *Engine) Start(ctx context.Context, sd *engine.Shutdown) error {
	e.status.Publish(types.StatusBooting)
	e.awaitConfig(ctx, sd)
	e.status.Publish(types.StatusRunning)

	var nextSnapshot time.Time
	if e.snapshot != nil {
		nextSnapshot = time.Now().Add(e.snapshot.every)
	}

	for {
		if sd.ShutdownStarted() {
			e.status.Publish(types.StatusShuttingDown)
			return nil
		}

		key, evt, ok := e.marketData.PollValues()
		if ok {
			e.record(key, evt)
			e.backoff.Hit()
		}

		if e.snapshot != nil && time.Now().After(nextSnapshot) {
			if err := e.snapshot.Write(e.counters); err != nil {
				e.logger.Warn("snapshot write failed", "error", err)
			}
			nextSnapshot = time.Now().Add(e.snapshot.every)
		}

		if !ok {
			if park := e.backoff.Miss(); park > 0 {
				select {
				case <-sd.WaitShutdownTriggered():
					e.status.Publish(types.StatusShuttingDown)
					return nil
				case <-time.After(park):
				}
			}
		}
	}
}

func (e *Engine) awaitConfig(ctx context.Context, sd *engine.Shutdown) {
	for {
		if _, ok := e.configRx.TryPop(); ok {
			return
		}
		select {
		case <-sd.WaitShutdownTriggered():
			return
		case <-time.After(pollTimeout):
		}
	}
}

func (e *Engine) record(exchange string, evt types.MarketEvent) {
	c, ok := e.counters[exchange]
	if !ok {
		c = &Counters{}
		e.counters[exchange] = c
	}
	c.EventsTotal++
	c.LastEventAt = time.Now()
	c.LatencySumNS += time.Since(evt.Timestamp).Nanoseconds()
}
