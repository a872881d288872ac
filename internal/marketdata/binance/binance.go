// Package binance implements the Binance Spot MarketDataAdapter.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"botnode/internal/marketdata"
	"botnode/pkg/types"
)

const (
	restBaseURL = "https://api.binance.com"
	wsURL       = "wss://stream.binance.com:9443/ws"
)

// Adapter implements marketdata.MarketDataAdapter for Binance Spot.
type Adapter struct {
	client *resty.Client
	nextID int64
}

// New builds a Binance adapter with the default production REST base URL.
func New() *Adapter {
	return &Adapter{client: resty.New().SetBaseURL(restBaseURL).SetTimeout(10 * time.Second)}
}

func (a *Adapter) Name() string                 { return "binance" }
func (a *Adapter) ExchangeID() types.ExchangeID { return types.ExchangeBinance }

// NeedsSnapshotSeed is true: Binance's depth stream has no partial-snapshot
// frame, so the engine must seed each symbol via FetchSnapshot before
// subscribing, or depthUpdate frames are dropped forever (see ProcessWSMsg).
func (a *Adapter) NeedsSnapshotSeed() bool { return true }

type exchangeInfoResponse struct {
	Symbols []exchangeSymbol `json:"symbols"`
}

type exchangeSymbol struct {
	Symbol             string `json:"symbol"`
	BaseAsset          string `json:"baseAsset"`
	QuoteAsset         string `json:"quoteAsset"`
	BaseAssetPrecision int    `json:"baseAssetPrecision"`
	QuotePrecision     int    `json:"quotePrecision"`
	Status             string `json:"status"`
}

// FetchMarkets lists every Binance spot trading symbol. Precision fields
// are increment exponents (decimal places), not increments directly —
// converted here so Market carries the same PriceIncrement/SizeIncrement
// semantics as every other adapter.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]types.Market, error) {
	var out exchangeInfoResponse
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).Get("/api/v3/exchangeInfo")
	if err != nil {
		return nil, fmt.Errorf("binance: fetch exchange info: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("binance: fetch exchange info: server returned %s", resp.Status())
	}

	markets := make([]types.Market, 0, len(out.Symbols))
	for _, s := range out.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		markets = append(markets, types.Market{
			Exchange:       types.ExchangeBinance,
			Name:           s.BaseAsset + "/" + s.QuoteAsset,
			NativeSymbol:   s.Symbol,
			PriceIncrement: decimalsToIncrement(s.QuotePrecision),
			SizeIncrement:  decimalsToIncrement(s.BaseAssetPrecision),
			Type:           types.MarketTypeSpot,
			Base:           s.BaseAsset,
			Quote:          s.QuoteAsset,
		})
	}
	return markets, nil
}

func decimalsToIncrement(decimals int) float64 {
	inc := 1.0
	for i := 0; i < decimals; i++ {
		inc /= 10
	}
	return inc
}

type depthResponse struct {
	Bids [][2]jsonFloatString `json:"bids"`
	Asks [][2]jsonFloatString `json:"asks"`
}

// jsonFloatString decodes a JSON string field ("1.2345") as a float64 —
// Binance's REST depth endpoint returns price/size as strings to preserve
// precision across languages.
type jsonFloatString float64

func (f *jsonFloatString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return fmt.Errorf("binance: parse numeric string %q: %w", s, err)
	}
	*f = jsonFloatString(v)
	return nil
}

// FetchSnapshot retrieves a REST depth snapshot, used to seed the book
// before applying WS depth updates (spec §4.8: Binance applies updates
// against a REST-fetched snapshot rather than dropping them in Empty state).
func (a *Adapter) FetchSnapshot(ctx context.Context, symbol string) (types.PlainOrderbook, error) {
	native := strings.ReplaceAll(symbol, "/", "")
	var out depthResponse
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).
		SetQueryParam("symbol", native).
		Get("/api/v3/depth")
	if err != nil {
		return types.PlainOrderbook{}, fmt.Errorf("binance: fetch depth %s: %w", symbol, err)
	}
	if resp.IsError() {
		return types.PlainOrderbook{}, fmt.Errorf("binance: fetch depth %s: server returned %s", symbol, resp.Status())
	}

	book := types.NewEmptyOrderbook()
	bids := make([][2]float64, len(out.Bids))
	for i, b := range out.Bids {
		bids[i] = [2]float64{float64(b[0]), float64(b[1])}
	}
	asks := make([][2]float64, len(out.Asks))
	for i, a := range out.Asks {
		asks[i] = [2]float64{float64(a[0]), float64(a[1])}
	}
	book.ApplyUpdate(bids, asks, float64(time.Now().UnixMilli()))
	return book, nil
}

func (a *Adapter) WSURL() string { return wsURL }

// SubscribeMsgs builds the single multi-stream subscription frame Binance
// expects, with an incrementing request id.
func (a *Adapter) SubscribeMsgs(symbols []string) []string {
	params := make([]string, 0, len(symbols)*3)
	for _, s := range symbols {
		native := strings.ToLower(strings.ReplaceAll(s, "/", ""))
		params = append(params, native+"@depth@100ms", native+"@trade", native+"@bookTicker")
	}
	id := atomic.AddInt64(&a.nextID, 1)
	paramsJSON, _ := json.Marshal(params)
	return []string{fmt.Sprintf(`{"method":"SUBSCRIBE","params":%s,"id":%d}`, paramsJSON, id)}
}

type wsEnvelopePeek struct {
	Event  string          `json:"e"`
	Result json.RawMessage `json:"result"`
}

type wsBookTicker struct {
	Symbol   string          `json:"s"`
	BidPrice jsonFloatString `json:"b"`
	AskPrice jsonFloatString `json:"a"`
}

type wsTrade struct {
	Symbol       string          `json:"s"`
	TradeID      int64           `json:"t"`
	Price        jsonFloatString `json:"p"`
	Quantity     jsonFloatString `json:"q"`
	TradeTime    int64           `json:"T"`
	IsBuyerMaker bool            `json:"m"`
}

type wsDepthUpdate struct {
	Symbol string               `json:"s"`
	Bids   [][2]jsonFloatString `json:"b"`
	Asks   [][2]jsonFloatString `json:"a"`
}

// ProcessWSMsg parses one Binance WS text frame. Binance's messages are an
// untagged union distinguished by shape/field presence rather than a single
// tag field, so this peeks the "e" event-type field first (present on
// trade/depthUpdate) and falls back to bookTicker/subscribe-ack shape tests.
func (a *Adapter) ProcessWSMsg(raw string, books *marketdata.OrderbookState) (*types.MarketEvent, error) {
	var peek wsEnvelopePeek
	if err := json.Unmarshal([]byte(raw), &peek); err != nil {
		return nil, fmt.Errorf("binance: parse envelope: %w", err)
	}

	switch peek.Event {
	case "trade":
		var t wsTrade
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("binance: parse trade: %w", err)
		}
		symbol := normalizeSymbol(t.Symbol, books)
		if symbol == "" {
			return nil, nil
		}
		side := "buy"
		if t.IsBuyerMaker {
			side = "sell"
		}
		evt := types.NewTradesEvent(symbol, []types.Trade{{
			ID:     fmt.Sprintf("%d", t.TradeID),
			Price:  float64(t.Price),
			Size:   float64(t.Quantity),
			Side:   side,
			TimeMS: t.TradeTime,
		}})
		return &evt, nil

	case "depthUpdate":
		var d wsDepthUpdate
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("binance: parse depth update: %w", err)
		}
		symbol := normalizeSymbol(d.Symbol, books)
		if symbol == "" {
			return nil, nil
		}
		sym := books.Books[symbol]
		if sym.Phase != marketdata.PhaseSynced {
			// The engine seeds every symbol via FetchSnapshot before
			// subscribing (NeedsSnapshotSeed), so this only fires for a
			// symbol whose seed request failed; drop rather than apply
			// against an unknown baseline.
			return nil, nil
		}
		bids := make([][2]float64, len(d.Bids))
		for i, b := range d.Bids {
			bids[i] = [2]float64{float64(b[0]), float64(b[1])}
		}
		asks := make([][2]float64, len(d.Asks))
		for i, ask := range d.Asks {
			asks[i] = [2]float64{float64(ask[0]), float64(ask[1])}
		}
		sym.Book.ApplyUpdate(bids, asks, float64(time.Now().UnixMilli()))
		evt := types.NewOrderbookUpdateEvent(symbol, sym.Book.Clone())
		return &evt, nil
	}

	var ticker wsBookTicker
	if err := json.Unmarshal([]byte(raw), &ticker); err == nil && ticker.Symbol != "" {
		symbol := normalizeSymbol(ticker.Symbol, books)
		if symbol == "" {
			return nil, nil
		}
		evt := types.NewMidPriceChangeEvent(symbol, float64(ticker.BidPrice), float64(ticker.AskPrice))
		return &evt, nil
	}

	// Subscribe ack or unrecognized shape: non-data frame.
	return nil, nil
}

// normalizeSymbol maps Binance's unseparated native symbol (e.g. "BTCUSDT")
// back to the configured internal symbol ("BTC/USDT") by membership test
// against the book registry's keys with separators stripped (spec §4.8).
func normalizeSymbol(native string, books *marketdata.OrderbookState) string {
	for symbol := range books.Books {
		if strings.ReplaceAll(symbol, "/", "") == native {
			return symbol
		}
	}
	return ""
}
