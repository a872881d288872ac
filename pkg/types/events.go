package types

import "time"

// MarketEventKind tags the payload carried by a MarketEvent.
type MarketEventKind int

const (
	MarketEventMarkets MarketEventKind = iota
	MarketEventTrades
	MarketEventOrderbookUpdate
	MarketEventMidPriceChange
)

// MarketEvent is a tagged union of the four normalized payloads a
// MarketData adapter can produce. Timestamp is set exactly once at
// construction (see NewMarketsEvent etc.) and never mutated afterward.
//
// Events are cheap to clone: MarketVec/PlainOrderbook/[]Trade are held as
// slices, and Go slice headers copy in O(1) — the underlying arrays are
// only deep-copied where an engine actually mutates its own view (see
// PlainOrderbook.Clone), matching the "large payloads sit behind an
// owning indirection" invariant in spec §3.
type MarketEvent struct {
	Kind      MarketEventKind
	Timestamp time.Time

	Markets []Market // MarketEventMarkets

	Symbol string  // MarketEventTrades, MarketEventOrderbookUpdate, MarketEventMidPriceChange
	Trades []Trade // MarketEventTrades

	Orderbook PlainOrderbook // MarketEventOrderbookUpdate

	Bid float64 // MarketEventMidPriceChange
	Ask float64 // MarketEventMidPriceChange
}

// NewMarketsEvent constructs a Markets event stamped with the current time.
func NewMarketsEvent(markets []Market) MarketEvent {
	return MarketEvent{Kind: MarketEventMarkets, Timestamp: time.Now(), Markets: markets}
}

// NewTradesEvent constructs a Trades event for symbol, stamped with the current time.
func NewTradesEvent(symbol string, trades []Trade) MarketEvent {
	return MarketEvent{Kind: MarketEventTrades, Timestamp: time.Now(), Symbol: symbol, Trades: trades}
}

// NewOrderbookUpdateEvent constructs an OrderbookUpdate event carrying a full
// book snapshot for symbol, stamped with the current time.
func NewOrderbookUpdateEvent(symbol string, book PlainOrderbook) MarketEvent {
	return MarketEvent{Kind: MarketEventOrderbookUpdate, Timestamp: time.Now(), Symbol: symbol, Orderbook: book}
}

// NewMidPriceChangeEvent constructs a MidPriceChange event, stamped with the current time.
func NewMidPriceChangeEvent(symbol string, bid, ask float64) MarketEvent {
	return MarketEvent{Kind: MarketEventMidPriceChange, Timestamp: time.Now(), Symbol: symbol, Bid: bid, Ask: ask}
}

// Clone returns an independent copy. Orderbook is deep-copied since it is
// the one field consumers might mutate through shared backing arrays;
// Markets/Trades slices are reused read-only by convention.
func (e MarketEvent) Clone() MarketEvent {
	out := e
	out.Orderbook = e.Orderbook.Clone()
	return out
}

// IndicatorEventKind tags IndicatorEvent's payload. The union is
// deliberately empty today — see spec §9's open question — a future
// TopOfBookChange variant is the designed extension point, not added here.
type IndicatorEventKind int

// IndicatorEvent is currently an empty tagged union: the Indicator engine
// is structured to emit these, but the source defines no variants.
type IndicatorEvent struct {
	Kind IndicatorEventKind
}

// ExchangeRequestKind tags the payload an ExchangeRequest carries.
type ExchangeRequestKind int

const (
	ExchangeRequestPlaceOrder ExchangeRequestKind = iota
	ExchangeRequestCancelOrder
)

// ExchangeRequest is emitted by the Trading engine and consumed by the
// Exchange engine's adapter. The strategy hook that would populate this
// is intentionally a stub (spec §4.6, §9) — the shape exists so the
// Exchange engine has something concrete to consume and so tests can
// exercise the pipe without inventing strategy logic.
type ExchangeRequest struct {
	Kind        ExchangeRequestKind
	ClientID    string // generated by the Trading engine, unique per request
	Symbol      string
	Side        string // "buy" or "sell"
	Price       float64
	Size        float64
	CancelOrder string // set when Kind == ExchangeRequestCancelOrder
}

// ExchangeEventKind tags ExchangeEvent's payload.
type ExchangeEventKind int

const (
	ExchangeEventFill ExchangeEventKind = iota
	ExchangeEventBalanceChange
)

// ExchangeEvent is emitted by the Exchange engine after submitting an
// ExchangeRequest to the (currently null) adapter.
type ExchangeEvent struct {
	Kind      ExchangeEventKind
	Symbol    string
	Price     float64
	Size      float64
	Asset     string  // ExchangeEventBalanceChange
	Delta     float64 // ExchangeEventBalanceChange
	Timestamp time.Time
}

// EngineStatus is the health value an engine publishes through its
// one-slot status queue. It is monotone except Running -> Error.
type EngineStatus int

const (
	StatusBooting EngineStatus = iota
	StatusRunning
	StatusShuttingDown
	StatusError
)

func (s EngineStatus) String() string {
	switch s {
	case StatusBooting:
		return "booting"
	case StatusRunning:
		return "running"
	case StatusShuttingDown:
		return "shutting_down"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ValidTransition reports whether moving from s to next is allowed by the
// monotonicity invariant: Booting -> Running -> (ShuttingDown | Error),
// with Running -> Error permitted as the one exception to strict ordering.
func (s EngineStatus) ValidTransition(next EngineStatus) bool {
	if next == s {
		return true
	}
	switch s {
	case StatusBooting:
		return next == StatusRunning || next == StatusShuttingDown || next == StatusError
	case StatusRunning:
		return next == StatusShuttingDown || next == StatusError
	case StatusShuttingDown, StatusError:
		return false
	default:
		return false
	}
}

// IndicatorConfig is one entry of BotConfiguration.Indicators: which
// indicator to run and over which symbols.
type IndicatorConfig struct {
	Name    string
	Symbols []string
}

// BotConfiguration is supplied exactly once per server connection (spec §3, §6).
type BotConfiguration struct {
	BotID      uint16
	PeerBots   []uint16
	Markets    []string
	Exchanges  []string
	Indicators []IndicatorConfig
}
