package ftx

import (
	"reflect"
	"testing"

	"botnode/internal/marketdata"
	"botnode/pkg/types"
)

// TestProcessWSMsgPartialThenUpdate covers the canned partial/update
// scenario: a "partial" seeds the book, then an "update" that zeroes the
// 100 level removes it.
func TestProcessWSMsgPartialThenUpdate(t *testing.T) {
	t.Parallel()

	a := New()
	books := marketdata.NewOrderbookState([]string{"BTC-PERP"})

	partial := `{"channel":"orderbook","market":"BTC-PERP","type":"update","data":{"action":"partial","time":1.0,"bids":[[100,1],[99,2]],"asks":[[101,3],[102,4]]}}`
	evt, err := a.ProcessWSMsg(partial, books)
	if err != nil {
		t.Fatalf("partial: unexpected error: %v", err)
	}
	if evt == nil || evt.Kind != types.MarketEventOrderbookUpdate {
		t.Fatalf("partial: evt = %+v, want an OrderbookUpdate event", evt)
	}
	if !reflect.DeepEqual(evt.Orderbook.Bids.PriceVec, []float64{99, 100}) {
		t.Fatalf("Bids.PriceVec = %v, want [99 100]", evt.Orderbook.Bids.PriceVec)
	}
	if !reflect.DeepEqual(evt.Orderbook.Asks.PriceVec, []float64{101, 102}) {
		t.Fatalf("Asks.PriceVec = %v, want [101 102]", evt.Orderbook.Asks.PriceVec)
	}
	if books.Books["BTC-PERP"].Phase != marketdata.PhaseSynced {
		t.Fatal("a partial must move the symbol to PhaseSynced")
	}

	update := `{"channel":"orderbook","market":"BTC-PERP","type":"update","data":{"action":"update","time":2.0,"bids":[[100,0]],"asks":[]}}`
	evt, err = a.ProcessWSMsg(update, books)
	if err != nil {
		t.Fatalf("update: unexpected error: %v", err)
	}
	if evt == nil {
		t.Fatal("update: expected an OrderbookUpdate event")
	}
	for _, p := range books.Books["BTC-PERP"].Book.Bids.PriceVec {
		if p == 100 {
			t.Fatal("the 100 level should have been removed by the zero-size update")
		}
	}
	if !reflect.DeepEqual(evt.Orderbook.Bids.PriceVec, []float64{99}) {
		t.Fatalf("Bids.PriceVec after update = %v, want [99]", evt.Orderbook.Bids.PriceVec)
	}
}

// TestProcessWSMsgUpdateBeforePartialDropped covers §4.8: updates arriving
// for a symbol still in PhaseEmpty are dropped, not applied against an
// unknown baseline.
func TestProcessWSMsgUpdateBeforePartialDropped(t *testing.T) {
	t.Parallel()

	a := New()
	books := marketdata.NewOrderbookState([]string{"BTC-PERP"})

	update := `{"channel":"orderbook","market":"BTC-PERP","type":"update","data":{"action":"update","time":1.0,"bids":[[100,1]],"asks":[]}}`
	evt, err := a.ProcessWSMsg(update, books)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt != nil {
		t.Fatalf("evt = %+v, want nil (dropped while PhaseEmpty)", evt)
	}
	if books.Books["BTC-PERP"].Phase != marketdata.PhaseEmpty {
		t.Fatal("symbol should still be PhaseEmpty")
	}
}
