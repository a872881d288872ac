// Package trading implements the Trading engine: event-freshness
// filtering, bid/ask change detection, and a strategy hook that is
// intentionally a stub (spec §4.6, §9 — the teacher's Avellaneda-Stoikov
// maker strategy is domain logic this rewrite does not invent). Only the
// teacher's input/output *shape* from strategy/maker.go is carried over.
package trading

import (
	"context"
	"log/slog"
	"time"

	"botnode/internal/engine"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

const (
	pollTimeout   = 50 * time.Microsecond
	staleEventAge = 10 * time.Millisecond
)

// quote is the last observed (bid, ask) for one symbol. lastQuote is keyed
// by symbol alone: events for the same symbol from different exchanges
// update the same entry.
type quote struct {
	bid, ask float64
}

// Engine is the Trading engine.
type Engine struct {
	marketData      *transport.ConsumersMap[string, types.MarketEvent]
	indicatorEvents transport.Consumer[types.IndicatorEvent]
	exchangeEvents  transport.Consumer[types.ExchangeEvent]
	configRx        transport.Consumer[types.BotConfiguration]

	requestTx transport.Producer[types.ExchangeRequest]

	status   *engine.StatusPublisher
	statusRx transport.Consumer[types.EngineStatus]

	lastQuote map[string]quote
	backoff   *engine.PollBackoff
	logger    *slog.Logger
}

// New constructs the Trading engine.
func New(
	marketData *transport.ConsumersMap[string, types.MarketEvent],
	indicatorEvents transport.Consumer[types.IndicatorEvent],
	exchangeEvents transport.Consumer[types.ExchangeEvent],
	configRx transport.Consumer[types.BotConfiguration],
	requestTx transport.Producer[types.ExchangeRequest],
	logger *slog.Logger,
) *Engine {
	statusTx, statusRx := transport.Make[types.EngineStatus](1)
	return &Engine{
		marketData:      marketData,
		indicatorEvents: indicatorEvents,
		exchangeEvents:  exchangeEvents,
		configRx:        configRx,
		requestTx:       requestTx,
		status:          engine.NewStatusPublisher(statusTx),
		statusRx:        statusRx,
		lastQuote:       make(map[string]quote),
		backoff:         engine.NewPollBackoff(engine.DefaultSpinBudget, pollTimeout),
		logger:          logger.With("component", "trading"),
	}
}

func (e *Engine) Name() string { return "trading" }

func (e *Engine) StatusRx() transport.Consumer[types.EngineStatus] { return e.statusRx }

// Start runs the Trading main loop. Publishes Running at entry (spec §4.6)
// and returns nil once shutdown is observed.
func (e *Engine) Start(ctx context.Context, sd *engine.Shutdown) error {
	e.status.Publish(types.StatusRunning)

	for {
		if sd.ShutdownStarted() {
			return nil
		}

		acted := false

		if _, evt, ok := e.marketData.PollValues(); ok {
			e.handleMarketEvent(evt)
			acted = true
		}
		if _, ok := e.indicatorEvents.TryPop(); ok {
			acted = true
		}
		if evt, ok := e.exchangeEvents.TryPop(); ok {
			e.logger.Debug("exchange event", "kind", evt.Kind, "symbol", evt.Symbol)
			acted = true
		}

		if acted {
			e.backoff.Hit()
			continue
		}

		if park := e.backoff.Miss(); park > 0 {
			select {
			case <-sd.WaitShutdownTriggered():
				return nil
			case <-time.After(park):
			}
		}
	}
}

func (e *Engine) handleMarketEvent(evt types.MarketEvent) {
	if evt.Kind != types.MarketEventOrderbookUpdate {
		return
	}

	if age := time.Since(evt.Timestamp); age > staleEventAge {
		e.logger.Debug("stale orderbook event dropped", "symbol", evt.Symbol, "age", age)
		return
	}

	bid, _, hasBid := evt.Orderbook.BestBid()
	ask, _, hasAsk := evt.Orderbook.BestAsk()
	if !hasBid || !hasAsk {
		return
	}

	prev, seen := e.lastQuote[evt.Symbol]
	if !seen || prev.bid != bid || prev.ask != ask {
		e.lastQuote[evt.Symbol] = quote{bid: bid, ask: ask}
		e.logger.Debug("quote changed", "symbol", evt.Symbol, "bid", bid, "ask", ask)
	}

	// Strategy hook: a real implementation would decide here whether to
	// place/cancel orders via e.requestTx. Left unimplemented by design.
}
