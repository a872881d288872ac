package trading

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"botnode/internal/engine"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

func newTestEngine() (*Engine, transport.Producer[types.MarketEvent]) {
	mdTx, mdRx := transport.Make[types.MarketEvent](16)
	mdMap := transport.NewConsumersMap[string, types.MarketEvent]()
	mdMap.Register("ftx", mdRx)

	_, indicatorRx := transport.Make[types.IndicatorEvent](1)
	_, exchangeEventRx := transport.Make[types.ExchangeEvent](1)
	configTx, configRx := transport.Make[types.BotConfiguration](1)
	configTx.TryPush(types.BotConfiguration{})
	requestTx, _ := transport.Make[types.ExchangeRequest](16)

	e := New(mdMap, indicatorRx, exchangeEventRx, configRx, requestTx, slog.Default())
	return e, mdTx
}

func TestTradingDropsStaleOrderbookEvent(t *testing.T) {
	t.Parallel()

	e, mdTx := newTestEngine()
	stale := types.MarketEvent{
		Kind:      types.MarketEventOrderbookUpdate,
		Timestamp: time.Now().Add(-1 * time.Second),
		Symbol:    "BTC-PERP",
	}
	stale.Orderbook.ApplyUpdate([][2]float64{{100, 1}}, [][2]float64{{101, 1}}, 0)
	mdTx.TryPush(stale)

	e.handleMarketEvent(stale)

	if _, seen := e.lastQuote["BTC-PERP"]; seen {
		t.Fatal("stale event should not update lastQuote")
	}
}

func TestTradingRecordsFreshQuoteChange(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine()
	fresh := types.MarketEvent{
		Kind:      types.MarketEventOrderbookUpdate,
		Timestamp: time.Now(),
		Symbol:    "BTC-PERP",
	}
	fresh.Orderbook.ApplyUpdate([][2]float64{{100, 1}}, [][2]float64{{101, 1}}, 0)

	e.handleMarketEvent(fresh)

	q, seen := e.lastQuote["BTC-PERP"]
	if !seen || q.bid != 100 || q.ask != 101 {
		t.Fatalf("lastQuote = %+v, seen=%v, want bid=100 ask=101", q, seen)
	}
}

func TestTradingShutdownReturnsPromptly(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine()
	sd := engine.NewShutdown(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background(), sd) }()

	sd.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return within 2s of shutdown")
	}
}
