package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"botnode/internal/engine"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

const (
	reconnectSleep   = 5 * time.Second
	throughputWindow = 5 * time.Second
	pollTimeout      = 50 * time.Microsecond
)

// Engine is the generic MarketData engine, specialized at construction time
// over one exchange Adapter (compile-time dispatch — see adapter.go's
// package doc).
type Engine[A MarketDataAdapter] struct {
	adapter A
	symbols []string

	status   *engine.StatusPublisher
	statusRx transport.Consumer[types.EngineStatus]
	configRx transport.Consumer[types.BotConfiguration]
	dataTxs  *transport.ProducersArray[types.MarketEvent]
	dataRxs  []transport.Consumer[types.MarketEvent]

	framesTotal prometheus.Counter
	logger      *slog.Logger
}

// New constructs a MarketData engine for adapter, wired to symbols it will
// subscribe to once a BotConfiguration arrives.
func New[A MarketDataAdapter](adapter A, configRx transport.Consumer[types.BotConfiguration], logger *slog.Logger) *Engine[A] {
	statusTx, statusRx := transport.Make[types.EngineStatus](1)
	return &Engine[A]{
		adapter:     adapter,
		status:      engine.NewStatusPublisher(statusTx),
		statusRx:    statusRx,
		configRx:    configRx,
		dataTxs:     transport.NewProducersArray[types.MarketEvent](nil),
		framesTotal: newFramesCounter(adapter.Name()),
		logger:      logger.With("component", "marketdata", "exchange", adapter.Name()),
	}
}

// newFramesCounter registers botnode_marketdata_frames_total{exchange=...}
// with the default registerer, tolerating a reconnect re-spawning the same
// exchange's engine (Control's handshake can, in principle, run more than
// once per process) by reusing the already-registered collector instead of
// panicking on a duplicate registration.
func newFramesCounter(exchange string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "botnode_marketdata_frames_total",
		Help:        "WebSocket frames processed by a MarketData engine.",
		ConstLabels: prometheus.Labels{"exchange": exchange},
	})
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
	}
	return c
}

func (e *Engine[A]) Name() string { return "marketdata-" + e.adapter.Name() }

func (e *Engine[A]) StatusRx() transport.Consumer[types.EngineStatus] { return e.statusRx }

// DataRx allocates a fresh consumer for this engine's MarketEvent fan-out.
func (e *Engine[A]) DataRx() transport.Consumer[types.MarketEvent] {
	tx, rx := transport.Make[types.MarketEvent](256)
	e.dataTxs.Add(tx)
	e.dataRxs = append(e.dataRxs, rx)
	return rx
}

func (e *Engine[A]) DataTxs() []transport.Producer[types.MarketEvent] {
	return e.dataTxs.Producers()
}

// Start runs the startup sequence then the reconnection loop (spec §4.4).
func (e *Engine[A]) Start(ctx context.Context, sd *engine.Shutdown) error {
	e.status.Publish(types.StatusBooting)

	markets, err := e.adapter.FetchMarkets(ctx)
	if err != nil {
		e.status.Publish(types.StatusError)
		return fmt.Errorf("marketdata(%s): fetch markets: %w", e.adapter.Name(), err)
	}
	if err := e.dataTxs.PushValue(types.NewMarketsEvent(markets)); err != nil {
		e.logger.Warn("markets event fan-out incomplete", "error", err)
	}

	cfg, err := e.awaitConfig(ctx, sd)
	if err != nil {
		return err
	}
	e.symbols = cfg.Markets

	e.status.Publish(types.StatusRunning)

	for {
		if sd.ShutdownStarted() {
			e.status.Publish(types.StatusShuttingDown)
			return nil
		}

		err := e.runExchangeConnectionLoop(ctx, sd)
		if sd.ShutdownStarted() {
			e.status.Publish(types.StatusShuttingDown)
			return nil
		}
		if err != nil {
			e.logger.Warn("exchange connection loop ended, reconnecting", "error", err, "backoff", reconnectSleep)
		}

		select {
		case <-sd.WaitShutdownTriggered():
			e.status.Publish(types.StatusShuttingDown)
			return nil
		case <-time.After(reconnectSleep):
		}
	}
}

// seedSnapshots fetches a REST snapshot for every symbol and marks it
// Synced, for adapters whose WS feed has no partial/snapshot frame of its
// own (Binance). A failed fetch is logged and left PhaseEmpty; the adapter
// drops updates for that symbol until the next reconnect retries the seed.
func (e *Engine[A]) seedSnapshots(ctx context.Context, books *OrderbookState) {
	for _, symbol := range e.symbols {
		book, err := e.adapter.FetchSnapshot(ctx, symbol)
		if err != nil {
			e.logger.Warn("snapshot seed failed", "symbol", symbol, "error", err)
			continue
		}
		books.Books[symbol].Book = book
		books.Books[symbol].Phase = PhaseSynced
	}
}

func (e *Engine[A]) awaitConfig(ctx context.Context, sd *engine.Shutdown) (types.BotConfiguration, error) {
	for {
		if v, ok := e.configRx.TryPop(); ok {
			return v, nil
		}
		select {
		case <-sd.WaitShutdownTriggered():
			return types.BotConfiguration{}, fmt.Errorf("marketdata(%s): shutdown before configuration arrived", e.adapter.Name())
		case <-ctx.Done():
			return types.BotConfiguration{}, ctx.Err()
		case <-time.After(pollTimeout):
		}
	}
}

// runExchangeConnectionLoop owns one WebSocket session end-to-end: dial,
// subscribe, read-dispatch-fanout until disconnect or shutdown.
func (e *Engine[A]) runExchangeConnectionLoop(ctx context.Context, sd *engine.Shutdown) error {
	release := sd.DelayShutdownToken()
	defer release()

	books := NewOrderbookState(e.symbols)

	if e.adapter.NeedsSnapshotSeed() {
		e.seedSnapshots(ctx, books)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, e.adapter.WSURL(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", e.adapter.WSURL(), err)
	}
	defer conn.Close()

	for _, msg := range e.adapter.SubscribeMsgs(e.symbols) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	windowStart := time.Now()
	windowFrames := 0

	go func() {
		<-sd.WaitShutdownTriggered()
		conn.Close()
	}()

	for {
		if sd.ShutdownStarted() {
			return nil
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if sd.ShutdownStarted() {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		e.framesTotal.Inc()
		windowFrames++

		switch msgType {
		case websocket.TextMessage:
			evt, err := e.adapter.ProcessWSMsg(string(data), books)
			if err != nil {
				e.logger.Warn("process ws message failed", "error", err)
				continue
			}
			if evt == nil {
				continue
			}
			if err := e.dataTxs.PushValue(*evt); err != nil {
				e.logger.Warn("market event fan-out incomplete", "error", err)
			}
		case websocket.PingMessage:
			e.logger.Debug("websocket ping")
		default:
			e.logger.Warn("unexpected websocket message", "type", msgType)
		}

		if time.Since(windowStart) >= throughputWindow {
			e.logger.Debug("throughput window", "frames", windowFrames, "window", throughputWindow)
			windowStart = time.Now()
			windowFrames = 0
		}
	}
}
