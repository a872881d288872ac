// Package ftx implements the FTX MarketDataAdapter: REST market listing and
// a WebSocket orderbook/trades feed. Adapted from the teacher's resty-based
// REST client style (internal/exchange/client.go) and gorilla/websocket
// feed style (internal/exchange/ws.go), generalized from Polymarket's wire
// shapes to FTX's.
package ftx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"botnode/internal/marketdata"
	"botnode/pkg/types"
)

const (
	restBaseURL = "https://ftx.com/api"
	wsURL       = "wss://ftx.com/ws"
)

// Adapter implements marketdata.MarketDataAdapter for FTX.
type Adapter struct {
	client *resty.Client
}

// New builds an FTX adapter with the default production REST base URL.
func New() *Adapter {
	return &Adapter{client: resty.New().SetBaseURL(restBaseURL).SetTimeout(10 * time.Second)}
}

func (a *Adapter) Name() string                 { return "ftx" }
func (a *Adapter) ExchangeID() types.ExchangeID { return types.ExchangeFTX }

// NeedsSnapshotSeed is false: FTX's own "partial" WS frame synchronizes
// each symbol on subscribe (see ProcessWSMsg below).
func (a *Adapter) NeedsSnapshotSeed() bool { return false }

type marketInfoResponse struct {
	Success bool         `json:"success"`
	Result  []marketInfo `json:"result"`
}

type marketInfo struct {
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	BaseCurrency   string  `json:"baseCurrency"`
	QuoteCurrency  string  `json:"quoteCurrency"`
	PriceIncrement float64 `json:"priceIncrement"`
	SizeIncrement  float64 `json:"sizeIncrement"`
}

// FetchMarkets lists every FTX spot and future market.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]types.Market, error) {
	var out marketInfoResponse
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("ftx: fetch markets: %w", err)
	}
	if resp.IsError() || !out.Success {
		return nil, fmt.Errorf("ftx: fetch markets: server returned %s", resp.Status())
	}

	markets := make([]types.Market, 0, len(out.Result))
	for _, m := range out.Result {
		market := types.Market{
			Exchange:       types.ExchangeFTX,
			Name:           m.Name,
			NativeSymbol:   m.Name,
			PriceIncrement: m.PriceIncrement,
			SizeIncrement:  m.SizeIncrement,
		}
		switch m.Type {
		case "spot":
			market.Type = types.MarketTypeSpot
			market.Base = m.BaseCurrency
			market.Quote = m.QuoteCurrency
		case "future":
			market.Type = types.MarketTypeFutures
		default:
			continue
		}
		markets = append(markets, market)
	}
	return markets, nil
}

type orderbookResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
	} `json:"result"`
}

// FetchSnapshot retrieves a REST orderbook snapshot for symbol. FTX's WS
// feed delivers its own `partial` snapshot on subscribe, so this is used
// only for out-of-band resynchronization callers, not the startup path.
func (a *Adapter) FetchSnapshot(ctx context.Context, symbol string) (types.PlainOrderbook, error) {
	var out orderbookResponse
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).Get(fmt.Sprintf("/markets/%s/orderbook", symbol))
	if err != nil {
		return types.PlainOrderbook{}, fmt.Errorf("ftx: fetch orderbook %s: %w", symbol, err)
	}
	if resp.IsError() || !out.Success {
		return types.PlainOrderbook{}, fmt.Errorf("ftx: fetch orderbook %s: server returned %s", symbol, resp.Status())
	}
	book := types.NewEmptyOrderbook()
	book.ApplyUpdate(out.Result.Bids, out.Result.Asks, float64(time.Now().UnixMilli()))
	return book, nil
}

func (a *Adapter) WSURL() string { return wsURL }

// SubscribeMsgs builds the two subscription frames FTX requires per symbol.
func (a *Adapter) SubscribeMsgs(symbols []string) []string {
	msgs := make([]string, 0, len(symbols)*2)
	for _, s := range symbols {
		msgs = append(msgs,
			fmt.Sprintf(`{"op":"subscribe","channel":"orderbook","market":%q}`, s),
			fmt.Sprintf(`{"op":"subscribe","channel":"trades","market":%q}`, s),
		)
	}
	return msgs
}

type wsEnvelope struct {
	Channel string          `json:"channel"`
	Market  string          `json:"market"`
	Data    json.RawMessage `json:"data"`
}

type wsOrderbookData struct {
	Action string       `json:"action"`
	Time   float64      `json:"time"`
	Bids   [][2]float64 `json:"bids"`
	Asks   [][2]float64 `json:"asks"`
}

type wsTrade struct {
	ID    int64   `json:"id"`
	Price float64 `json:"price"`
	Side  string  `json:"side"`
	Size  float64 `json:"size"`
	Time  string  `json:"time"`
}

// ProcessWSMsg parses one FTX WS text frame into a normalized MarketEvent.
func (a *Adapter) ProcessWSMsg(raw string, books *marketdata.OrderbookState) (*types.MarketEvent, error) {
	var env wsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("ftx: parse envelope: %w", err)
	}
	if env.Market == "" || len(env.Data) == 0 {
		return nil, nil
	}

	switch env.Channel {
	case "orderbook":
		var d wsOrderbookData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("ftx: parse orderbook data: %w", err)
		}
		sym, ok := books.Books[env.Market]
		if !ok {
			return nil, nil
		}
		switch d.Action {
		case "partial":
			book := types.NewEmptyOrderbook()
			book.ApplyUpdate(d.Bids, d.Asks, d.Time)
			sym.Book = book
			sym.Phase = marketdata.PhaseSynced
		case "update":
			if sym.Phase != marketdata.PhaseSynced {
				// Updates arriving before a partial are dropped (spec §4.8).
				return nil, nil
			}
			sym.Book.ApplyUpdate(d.Bids, d.Asks, d.Time)
		default:
			return nil, fmt.Errorf("ftx: unknown orderbook action %q", d.Action)
		}
		evt := types.NewOrderbookUpdateEvent(env.Market, sym.Book.Clone())
		return &evt, nil

	case "trades":
		var raws []wsTrade
		if err := json.Unmarshal(env.Data, &raws); err != nil {
			return nil, fmt.Errorf("ftx: parse trades data: %w", err)
		}
		trades := make([]types.Trade, 0, len(raws))
		for _, t := range raws {
			ts, err := time.Parse(time.RFC3339, t.Time)
			millis := int64(0)
			if err == nil {
				millis = ts.UnixMilli()
			}
			trades = append(trades, types.Trade{
				ID:     fmt.Sprintf("%d", t.ID),
				Price:  t.Price,
				Size:   t.Size,
				Side:   t.Side,
				TimeMS: millis,
			})
		}
		evt := types.NewTradesEvent(env.Market, trades)
		return &evt, nil
	}

	return nil, nil
}
