// Package exchange implements the Exchange engine: it consumes
// ExchangeRequests from Trading, drives a pluggable request adapter
// (currently only a null adapter exists — spec §4.7, §9), and emits
// ExchangeEvents. ledger.go adapts the teacher's strategy/inventory.go
// position/PnL bookkeeping from a binary YES/NO market structure to a
// per-asset balance ledger, since this rewrite's markets are plain
// spot/futures symbols rather than Polymarket's binary outcome tokens.
// Balances are kept in shopspring/decimal rather than float64: position
// and PnL accounting accumulates over many fills, and float64 drift there
// is exactly the kind of bug a real ledger can't tolerate.
package exchange

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Balance is one asset's running position and realized/unrealized PnL.
type Balance struct {
	Qty           decimal.Decimal
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	LastUpdated   time.Time
}

// Ledger tracks per-asset balances driven by ExchangeEvents. Thread-safe
// via RWMutex, mirroring the teacher's Inventory.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]Balance
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]Balance)}
}

// ApplyFill updates asset's running quantity and average entry price, and
// realizes PnL on the portion that reduces an existing position. price and
// size arrive as float64 from the wire/exchange adapter layer and are
// converted once at the boundary.
func (l *Ledger) ApplyFill(asset string, side string, price, size float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dPrice := decimal.NewFromFloat(price)
	dSize := decimal.NewFromFloat(size)

	b := l.balances[asset]
	signedSize := dSize
	if side == "sell" {
		signedSize = dSize.Neg()
	}

	zero := decimal.Zero
	switch {
	case b.Qty.GreaterThanOrEqual(zero) && signedSize.GreaterThanOrEqual(zero),
		b.Qty.LessThanOrEqual(zero) && signedSize.LessThanOrEqual(zero):
		// Same-direction (or flat) fill: extend the position, blend entry price.
		totalCost := b.AvgEntryPrice.Mul(b.Qty.Abs()).Add(dPrice.Mul(signedSize.Abs()))
		b.Qty = b.Qty.Add(signedSize)
		if !b.Qty.IsZero() {
			b.AvgEntryPrice = totalCost.Div(b.Qty.Abs())
		}
	default:
		// Opposing fill: realize PnL on the overlap, then apply any remainder.
		closingQty := decimal.Min(signedSize.Abs(), b.Qty.Abs())
		direction := decimal.NewFromInt(1)
		if b.Qty.LessThan(zero) {
			direction = decimal.NewFromInt(-1)
		}
		b.RealizedPnL = b.RealizedPnL.Add(direction.Mul(dPrice.Sub(b.AvgEntryPrice)).Mul(closingQty))
		prevSign := b.Qty.Sign()
		b.Qty = b.Qty.Add(signedSize)
		switch {
		case b.Qty.IsZero():
			b.AvgEntryPrice = decimal.Zero
		case b.Qty.Sign() != prevSign:
			// The remainder opened a position on the other side at this fill's price.
			b.AvgEntryPrice = dPrice
		}
	}

	b.LastUpdated = time.Now()
	l.balances[asset] = b
}

// ApplyBalanceChange records an exchange-reported balance delta directly
// (e.g. a deposit/withdrawal or funding payment), bypassing fill accounting.
func (l *Ledger) ApplyBalanceChange(asset string, delta float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balances[asset]
	b.Qty = b.Qty.Add(decimal.NewFromFloat(delta))
	b.LastUpdated = time.Now()
	l.balances[asset] = b
}

// MarkToMarket recalculates unrealized PnL for asset at the given mark price.
func (l *Ledger) MarkToMarket(asset string, markPrice float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[asset]
	if !ok {
		return
	}
	b.UnrealizedPnL = b.Qty.Mul(decimal.NewFromFloat(markPrice).Sub(b.AvgEntryPrice))
	l.balances[asset] = b
}

// Snapshot returns a copy of asset's current balance.
func (l *Ledger) Snapshot(asset string) Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[asset]
}
