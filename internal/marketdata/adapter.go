// Package marketdata implements the generic per-exchange MarketData engine:
// REST market discovery, a WebSocket session with reconnect/backoff, and
// stateful orderbook reconstruction, parameterized over an Adapter so each
// exchange's wire format is compiled in rather than dispatched through an
// interface on the hot path (spec §4.4, §4.8, §9 "dynamic dispatch over
// adapters").
package marketdata

import (
	"context"

	"botnode/pkg/types"
)

// RestMarketDataAdapter is the capability an exchange adapter provides for
// one-shot market discovery and orderbook snapshotting.
type RestMarketDataAdapter interface {
	// Name identifies the adapter in logs and metrics labels.
	Name() string

	// ExchangeID is this adapter's slot in types.ExchangeID.
	ExchangeID() types.ExchangeID

	// FetchMarkets lists every tradeable market on the exchange.
	FetchMarkets(ctx context.Context) ([]types.Market, error)

	// FetchSnapshot retrieves a full orderbook snapshot for symbol, used to
	// (re)synchronize after WS desync or on initial connect.
	FetchSnapshot(ctx context.Context, symbol string) (types.PlainOrderbook, error)

	// NeedsSnapshotSeed reports whether the engine must call FetchSnapshot
	// for every symbol before subscribing, because this adapter's WS feed
	// carries no partial/snapshot frame of its own to leave PhaseEmpty
	// (Binance). FTX and Serum both get their own WS snapshot frame and
	// report false here.
	NeedsSnapshotSeed() bool
}

// WsMarketDataAdapter is the capability an exchange adapter provides for the
// live WebSocket feed.
type WsMarketDataAdapter interface {
	// WSURL is the WebSocket endpoint to dial.
	WSURL() string

	// SubscribeMsgs returns the frames to send after connecting, to
	// subscribe to orderbook and trade updates for symbols.
	SubscribeMsgs(symbols []string) []string

	// ProcessWSMsg parses one incoming WS text frame, updating books (the
	// per-symbol reconstruction state this adapter owns) and returning a
	// normalized event when the frame carried data. A nil event with a nil
	// error means the frame was non-data (e.g. a subscription ack).
	ProcessWSMsg(raw string, books *OrderbookState) (*types.MarketEvent, error)
}

// MarketDataAdapter is the capability sum every exchange adapter must
// provide: in Go, a type that implements both narrower interfaces
// automatically satisfies this one — no explicit composition needed,
// mirroring the source's "REST + WS capability sum" design.
type MarketDataAdapter interface {
	RestMarketDataAdapter
	WsMarketDataAdapter
}

// OrderbookState is the per-symbol reconstruction state machine an adapter's
// ProcessWSMsg mutates. An entry moves Empty -> Synced the first time a
// snapshot (a WS partial/l2snapshot frame, or the engine's REST seed) is
// applied for that symbol. SymbolBook.LastSeq is available for adapter
// sequence tracking; no current adapter uses it.
type OrderbookState struct {
	Books map[string]*SymbolBook
}

// NewOrderbookState returns empty per-symbol state for the given symbols.
func NewOrderbookState(symbols []string) *OrderbookState {
	books := make(map[string]*SymbolBook, len(symbols))
	for _, s := range symbols {
		books[s] = &SymbolBook{Phase: PhaseEmpty}
	}
	return &OrderbookState{Books: books}
}

// Phase is a SymbolBook's position in the Empty -> Synced reconstruction
// state machine (spec §4.4).
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseSynced
)

// SymbolBook holds one symbol's reconstructed book plus any adapter-private
// sequence-tracking state.
type SymbolBook struct {
	Phase   Phase
	Book    types.PlainOrderbook
	LastSeq int64 // adapter-specific; 0 if the adapter does not use sequence numbers
}
