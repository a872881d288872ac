// Package engine defines the uniform contract every cooperating engine
// implements, plus the per-core spawner that runs one engine per CPU-pinned
// OS thread. This is the generalization of the teacher's goroutine/wg/ctx
// orchestration in its own engine package to N independently-scheduled
// engines that share no memory (spec §4.2, §5).
package engine

import (
	"context"

	"botnode/internal/transport"
	"botnode/pkg/types"
)

// Engine is implemented by every cooperating engine (Control, MarketData,
// Indicator, Trading, Exchange, Audit).
type Engine interface {
	// Name returns a stable identifier used in logs and metrics.
	Name() string

	// StatusRx returns the one-slot consumer endpoint for this engine's
	// health. The engine keeps the producer side internally.
	StatusRx() transport.Consumer[types.EngineStatus]

	// Start consumes the engine and runs its main loop until sd signals
	// shutdown, returning nil on a clean exit or a source-tagged error.
	// Start may suspend at I/O points (WS reads, timers, TCP writes).
	Start(ctx context.Context, sd *Shutdown) error
}

// DataProducer is implemented by engines that emit a single typed stream
// of data to one or more consumers (MarketData, Indicator, Exchange).
type DataProducer[T any] interface {
	// DataRx allocates a fresh SPSC channel, registers the producer side
	// internally, and returns the consumer side to the caller. Called once
	// per downstream consumer during the spawn plan.
	DataRx() transport.Consumer[T]

	// DataTxs exposes every producer registered via DataRx so the default
	// push_value fan-out helper (transport.ProducersArray) can be driven
	// from the engine's own main loop.
	DataTxs() []transport.Producer[T]
}

// StatusPublisher is the producer-side counterpart engines embed to
// publish their own EngineStatus, enforcing the monotonicity invariant
// (spec §8) by refusing invalid transitions.
type StatusPublisher struct {
	tx      transport.Producer[types.EngineStatus]
	current types.EngineStatus
}

// NewStatusPublisher wraps the producer side of a freshly created status
// queue. current starts at StatusBooting.
func NewStatusPublisher(tx transport.Producer[types.EngineStatus]) *StatusPublisher {
	return &StatusPublisher{tx: tx, current: types.StatusBooting}
}

// Publish pushes next if it is a valid transition from the last published
// status; invalid transitions are silently dropped rather than corrupting
// the monotonic sequence Control relies on.
func (s *StatusPublisher) Publish(next types.EngineStatus) {
	if !s.current.ValidTransition(next) {
		return
	}
	s.current = next
	// Status is a one-slot queue: drop and retry once so the latest value
	// always wins over a stale unread one.
	if _, ok := s.tx.TryPush(next); !ok {
		s.tx.TryPush(next)
	}
}
