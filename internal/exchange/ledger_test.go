package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLedgerApplyFillExtendsPosition(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.ApplyFill("BTC", "buy", 100, 1)
	l.ApplyFill("BTC", "buy", 110, 1)

	b := l.Snapshot("BTC")
	if !b.Qty.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("Qty = %v, want 2", b.Qty)
	}
	if !b.AvgEntryPrice.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("AvgEntryPrice = %v, want 105", b.AvgEntryPrice)
	}
}

func TestLedgerApplyFillRealizesPnLOnClose(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.ApplyFill("BTC", "buy", 100, 2)
	l.ApplyFill("BTC", "sell", 110, 1)

	b := l.Snapshot("BTC")
	if !b.Qty.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("Qty = %v, want 1", b.Qty)
	}
	if !b.RealizedPnL.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("RealizedPnL = %v, want 10", b.RealizedPnL)
	}
	if !b.AvgEntryPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("AvgEntryPrice = %v, want 100 (unchanged by a partial close)", b.AvgEntryPrice)
	}
}

func TestLedgerApplyBalanceChange(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.ApplyBalanceChange("USDT", 500)
	l.ApplyBalanceChange("USDT", -200)

	if got := l.Snapshot("USDT").Qty; !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("Qty = %v, want 300", got)
	}
}

func TestLedgerMarkToMarket(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.ApplyFill("BTC", "buy", 100, 1)
	l.MarkToMarket("BTC", 120)

	if got := l.Snapshot("BTC").UnrealizedPnL; !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("UnrealizedPnL = %v, want 20", got)
	}
}
