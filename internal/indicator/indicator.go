// Package indicator implements the Indicator engine: it maintains per-symbol
// top-of-book state from every MarketData engine's fan-out and, in the
// current design, emits IndicatorEvent only as a reserved extension point
// (spec §4.5, §9). Grounded on the teacher's market/book.go best-bid/ask
// bookkeeping, generalized from a single-exchange book to a
// ConsumersMap-driven multi-exchange one.
package indicator

import (
	"context"
	"log/slog"
	"time"

	"botnode/internal/engine"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

const pollTimeout = 50 * time.Microsecond

// topOfBook is one symbol's best bid/ask, held as parallel slices matching
// the source's "parallel vectors" layout rather than a map-of-structs.
type topOfBook struct {
	symbols   []string
	bid       []float64
	ask       []float64
	updatedAt []time.Time
}

func (t *topOfBook) upsert(symbol string, bid, ask float64, at time.Time) {
	for i, s := range t.symbols {
		if s == symbol {
			t.bid[i] = bid
			t.ask[i] = ask
			t.updatedAt[i] = at
			return
		}
	}
	t.symbols = append(t.symbols, symbol)
	t.bid = append(t.bid, bid)
	t.ask = append(t.ask, ask)
	t.updatedAt = append(t.updatedAt, at)
}

// Engine is the Indicator engine.
type Engine struct {
	marketData *transport.ConsumersMap[string, types.MarketEvent]
	configRx   transport.Consumer[types.BotConfiguration]

	eventTxs *transport.ProducersArray[types.IndicatorEvent]

	status   *engine.StatusPublisher
	statusRx transport.Consumer[types.EngineStatus]

	book    topOfBook
	backoff *engine.PollBackoff
	logger  *slog.Logger
}

// New constructs the Indicator engine. marketData is built by Control,
// registering one consumer per MarketData engine under its exchange name.
func New(marketData *transport.ConsumersMap[string, types.MarketEvent], configRx transport.Consumer[types.BotConfiguration], logger *slog.Logger) *Engine {
	statusTx, statusRx := transport.Make[types.EngineStatus](1)
	return &Engine{
		marketData: marketData,
		configRx:   configRx,
		eventTxs:   transport.NewProducersArray[types.IndicatorEvent](nil),
		status:     engine.NewStatusPublisher(statusTx),
		statusRx:   statusRx,
		backoff:    engine.NewPollBackoff(engine.DefaultSpinBudget, pollTimeout),
		logger:     logger.With("component", "indicator"),
	}
}

func (e *Engine) Name() string { return "indicator" }

func (e *Engine) StatusRx() transport.Consumer[types.EngineStatus] { return e.statusRx }

// DataRx allocates a fresh consumer for this engine's IndicatorEvent fan-out.
func (e *Engine) DataRx() transport.Consumer[types.IndicatorEvent] {
	tx, rx := transport.Make[types.IndicatorEvent](64)
	e.eventTxs.Add(tx)
	return rx
}

func (e *Engine) DataTxs() []transport.Producer[types.IndicatorEvent] {
	return e.eventTxs.Producers()
}

// Start runs the Indicator main loop (spec §4.5).
func (e *Engine) Start(ctx context.Context, sd *engine.Shutdown) error {
	e.status.Publish(types.StatusBooting)

	if _, ok := e.configRx.TryPop(); !ok {
		e.waitForConfig(ctx, sd)
	}

	e.status.Publish(types.StatusRunning)

	for {
		if sd.ShutdownStarted() {
			e.status.Publish(types.StatusShuttingDown)
			return nil
		}

		_, evt, ok := e.marketData.PollValues()
		if !ok {
			if park := e.backoff.Miss(); park > 0 {
				select {
				case <-sd.WaitShutdownTriggered():
					e.status.Publish(types.StatusShuttingDown)
					return nil
				case <-time.After(park):
				}
			}
			continue
		}

		e.backoff.Hit()
		e.handleEvent(evt)
	}
}

func (e *Engine) waitForConfig(ctx context.Context, sd *engine.Shutdown) {
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

func (e *Engine) handleEvent(evt types.MarketEvent) {
	switch evt.Kind {
	case types.MarketEventOrderbookUpdate:
		bid, _, hasBid := evt.Orderbook.BestBid()
		ask, _, hasAsk := evt.Orderbook.BestAsk()
		if !hasBid || !hasAsk {
			return
		}
		e.book.upsert(evt.Symbol, bid, ask, evt.Timestamp)
		e.logger.Debug("top of book updated", "symbol", evt.Symbol, "bid", bid, "ask", ask)

	case types.MarketEventTrades:
		latency := time.Since(evt.Timestamp)
		e.logger.Debug("trade latency", "symbol", evt.Symbol, "latency", latency, "count", len(evt.Trades))
	}
}
