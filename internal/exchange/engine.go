package exchange

import (
	"context"
	"log/slog"
	"time"

	"botnode/internal/engine"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

const pollTimeout = 50 * time.Microsecond

// Engine is the Exchange engine: consumes ExchangeRequests, drives a
// RequestAdapter, emits ExchangeEvents, and maintains a Ledger of realized
// positions (spec §4.7).
type Engine struct {
	requestRx transport.Consumer[types.ExchangeRequest]
	configRx  transport.Consumer[types.BotConfiguration]
	eventTxs  *transport.ProducersArray[types.ExchangeEvent]

	adapter RequestAdapter
	limiter *RateLimiter
	ledger  *Ledger

	status   *engine.StatusPublisher
	statusRx transport.Consumer[types.EngineStatus]

	backoff *engine.PollBackoff
	logger  *slog.Logger
}

// New constructs the Exchange engine around adapter.
func New(
	requestRx transport.Consumer[types.ExchangeRequest],
	configRx transport.Consumer[types.BotConfiguration],
	adapter RequestAdapter,
	logger *slog.Logger,
) *Engine {
	statusTx, statusRx := transport.Make[types.EngineStatus](1)
	return &Engine{
		requestRx: requestRx,
		configRx:  configRx,
		eventTxs:  transport.NewProducersArray[types.ExchangeEvent](nil),
		adapter:   adapter,
		limiter:   NewRateLimiter(),
		ledger:    NewLedger(),
		status:    engine.NewStatusPublisher(statusTx),
		statusRx:  statusRx,
		backoff:   engine.NewPollBackoff(engine.DefaultSpinBudget, pollTimeout),
		logger:    logger.With("component", "exchange", "adapter", adapter.Name()),
	}
}

func (e *Engine) Name() string { return "exchange" }

func (e *Engine) StatusRx() transport.Consumer[types.EngineStatus] { return e.statusRx }

// DataRx allocates a fresh consumer for this engine's ExchangeEvent fan-out.
func (e *Engine) DataRx() transport.Consumer[types.ExchangeEvent] {
	tx, rx := transport.Make[types.ExchangeEvent](64)
	e.eventTxs.Add(tx)
	return rx
}

func (e *Engine) DataTxs() []transport.Producer[types.ExchangeEvent] {
	return e.eventTxs.Producers()
}

// Start runs the Exchange main loop (spec §4.7): await config, publish
// Running, then poll requests until shutdown.
func (e *Engine) Start(ctx context.Context, sd *engine.Shutdown) error {
	e.status.Publish(types.StatusBooting)
	e.awaitConfig(ctx, sd)
	e.status.Publish(types.StatusRunning)

	for {
		if sd.ShutdownStarted() {
			e.status.Publish(types.StatusShuttingDown)
			return nil
		}

		req, ok := e.requestRx.TryPop()
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
		e.handleRequest(ctx, req)
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

func (e *Engine) handleRequest(ctx context.Context, req types.ExchangeRequest) {
	switch req.Kind {
	case types.ExchangeRequestPlaceOrder:
		if err := e.limiter.WaitOrder(ctx); err != nil {
			return
		}
		if err := e.adapter.SubmitOrder(ctx, OrderRequest{
			ClientID: req.ClientID,
			Symbol:   req.Symbol,
			Side:     req.Side,
			Price:    req.Price,
			Size:     req.Size,
		}); err != nil {
			e.logger.Warn("submit order failed", "error", err, "client_id", req.ClientID)
			return
		}
		e.ledger.ApplyFill(req.Symbol, req.Side, req.Price, req.Size)
		if err := e.eventTxs.PushValue(types.ExchangeEvent{
			Kind:      types.ExchangeEventFill,
			Symbol:    req.Symbol,
			Price:     req.Price,
			Size:      req.Size,
			Timestamp: time.Now(),
		}); err != nil {
			e.logger.Warn("exchange event fan-out incomplete", "error", err)
		}

	case types.ExchangeRequestCancelOrder:
		if err := e.limiter.WaitCancel(ctx); err != nil {
			return
		}
		if err := e.adapter.CancelOrder(ctx, req.CancelOrder); err != nil {
			e.logger.Warn("cancel order failed", "error", err, "client_id", req.CancelOrder)
		}
	}
}
