package binance

import (
	"testing"

	"botnode/internal/marketdata"
	"botnode/pkg/types"
)

// TestProcessWSMsgNormalizesSymbol covers spec §4.8's symbol normalization
// scenario: an empty book stored under "BTC/USDT" must receive a depthUpdate
// keyed by Binance's unseparated native symbol "BTCUSDT".
func TestProcessWSMsgNormalizesSymbol(t *testing.T) {
	t.Parallel()

	a := New()
	books := marketdata.NewOrderbookState([]string{"BTC/USDT"})
	books.Books["BTC/USDT"].Phase = marketdata.PhaseSynced

	raw := `{"e":"depthUpdate","s":"BTCUSDT","b":[["100.0","1.0"]],"a":[["101.0","2.0"]]}`
	evt, err := a.ProcessWSMsg(raw, books)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt == nil || evt.Kind != types.MarketEventOrderbookUpdate {
		t.Fatalf("evt = %+v, want an OrderbookUpdate event", evt)
	}
	if evt.Symbol != "BTC/USDT" {
		t.Fatalf("evt.Symbol = %q, want BTC/USDT", evt.Symbol)
	}
	if got, want := evt.Orderbook.Bids.PriceVec, []float64{100}; len(got) != 1 || got[0] != want[0] {
		t.Fatalf("Bids.PriceVec = %v, want %v", got, want)
	}
}

// TestProcessWSMsgUnknownSymbolDropped covers the membership-test miss path:
// a native symbol with no matching registry entry is silently dropped.
func TestProcessWSMsgUnknownSymbolDropped(t *testing.T) {
	t.Parallel()

	a := New()
	books := marketdata.NewOrderbookState([]string{"BTC/USDT"})

	raw := `{"e":"depthUpdate","s":"ETHUSDT","b":[],"a":[]}`
	evt, err := a.ProcessWSMsg(raw, books)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt != nil {
		t.Fatalf("evt = %+v, want nil for an unregistered symbol", evt)
	}
}

// TestProcessWSMsgDepthUpdateDroppedWhileEmpty mirrors the FTX "update
// before partial" case: Binance has no partial frame, so a symbol still in
// PhaseEmpty (not yet seeded via FetchSnapshot) must drop depthUpdate frames.
func TestProcessWSMsgDepthUpdateDroppedWhileEmpty(t *testing.T) {
	t.Parallel()

	a := New()
	books := marketdata.NewOrderbookState([]string{"BTC/USDT"})

	raw := `{"e":"depthUpdate","s":"BTCUSDT","b":[["100.0","1.0"]],"a":[]}`
	evt, err := a.ProcessWSMsg(raw, books)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt != nil {
		t.Fatalf("evt = %+v, want nil while PhaseEmpty", evt)
	}
}

func TestNeedsSnapshotSeed(t *testing.T) {
	t.Parallel()

	if !New().NeedsSnapshotSeed() {
		t.Fatal("binance adapter must report NeedsSnapshotSeed() == true")
	}
}
