package protocol

import (
	"encoding/json"
	"fmt"

	"botnode/pkg/types"
)

// Tag identifies which variant a frame's payload carries.
type Tag uint8

const (
	TagHello Tag = iota + 1
	TagBotConfiguration
	TagBotError
	TagPing
	TagPong
	TagMarketList
)

// Message is the tagged union of every message exchanged over the framed
// connection. Exactly one of the typed fields is meaningful, selected by Tag
// — the idiomatic Go reading of the source's enum-with-payload.
type Message struct {
	Tag Tag

	Hello            *Hello
	BotConfiguration *types.BotConfiguration
	BotError         *BotError
	Ping             *Ping
	Pong             *Pong
	MarketList       *types.MarketVec
}

// Hello is the node's opening handshake frame.
type Hello struct {
	BotID      uint16 `json:"bot_id"`
	BotVersion uint32 `json:"bot_version"`
}

// BotError carries a server-reported fatal protocol error.
type BotError struct {
	Message string `json:"message"`
}

// Ping/Pong carry nanoseconds since the Unix epoch. The source's u128 field
// is narrowed to int64, which covers nanosecond timestamps until the year
// 2262.
type Ping struct {
	Nanos int64 `json:"nanos"`
}

type Pong struct {
	Nanos int64 `json:"nanos"`
}

// wireMarketVec is MarketVec's column-wise wire shape (spec §6: "MarketList
// (MarketVec) where MarketVec is serialized column-wise").
type wireMarketVec struct {
	Exchange       []types.ExchangeID `json:"exchange"`
	Name           []string           `json:"name"`
	NativeSymbol   []string           `json:"native_symbol"`
	PriceIncrement []float64          `json:"price_increment"`
	SizeIncrement  []float64          `json:"size_increment"`
	Type           []types.MarketType `json:"type"`
	Base           []string           `json:"base"`
	Quote          []string           `json:"quote"`
}

type wireEnvelope struct {
	Tag              Tag                     `json:"tag"`
	Hello            *Hello                  `json:"hello,omitempty"`
	BotConfiguration *types.BotConfiguration `json:"bot_configuration,omitempty"`
	BotError         *BotError               `json:"bot_error,omitempty"`
	Ping             *Ping                   `json:"ping,omitempty"`
	Pong             *Pong                   `json:"pong,omitempty"`
	MarketList       *wireMarketVec          `json:"market_list,omitempty"`
}

// Encode marshals m into a frame payload ready for WriteFrame.
func Encode(m Message) ([]byte, error) {
	env := wireEnvelope{
		Tag:              m.Tag,
		Hello:            m.Hello,
		BotConfiguration: m.BotConfiguration,
		BotError:         m.BotError,
		Ping:             m.Ping,
		Pong:             m.Pong,
	}
	if m.MarketList != nil {
		env.MarketList = toWireMarketVec(m.MarketList)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode message: %w", err)
	}
	return payload, nil
}

// Decode unmarshals a frame payload produced by Encode.
func Decode(payload []byte) (Message, error) {
	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{}, fmt.Errorf("protocol: decode message: %w", err)
	}
	m := Message{
		Tag:              env.Tag,
		Hello:            env.Hello,
		BotConfiguration: env.BotConfiguration,
		BotError:         env.BotError,
		Ping:             env.Ping,
		Pong:             env.Pong,
	}
	if env.MarketList != nil {
		v := fromWireMarketVec(env.MarketList)
		m.MarketList = &v
	}
	return m, nil
}

func toWireMarketVec(v *types.MarketVec) *wireMarketVec {
	return &wireMarketVec{
		Exchange:       v.Exchange,
		Name:           v.Name,
		NativeSymbol:   v.NativeSymbol,
		PriceIncrement: v.PriceIncrement,
		SizeIncrement:  v.SizeIncrement,
		Type:           v.Type,
		Base:           v.Base,
		Quote:          v.Quote,
	}
}

func fromWireMarketVec(w *wireMarketVec) types.MarketVec {
	return types.MarketVec{
		Exchange:       w.Exchange,
		Name:           w.Name,
		NativeSymbol:   w.NativeSymbol,
		PriceIncrement: w.PriceIncrement,
		SizeIncrement:  w.SizeIncrement,
		Type:           w.Type,
		Base:           w.Base,
		Quote:          w.Quote,
	}
}

// NewHello builds the node's opening handshake message.
func NewHello(botID uint16, botVersion uint32) Message {
	return Message{Tag: TagHello, Hello: &Hello{BotID: botID, BotVersion: botVersion}}
}

// NewPing builds a keepalive ping carrying nanos.
func NewPing(nanos int64) Message {
	return Message{Tag: TagPing, Ping: &Ping{Nanos: nanos}}
}

// NewPong builds a keepalive reply echoing nanos.
func NewPong(nanos int64) Message {
	return Message{Tag: TagPong, Pong: &Pong{Nanos: nanos}}
}

// NewMarketList builds an upstream market-discovery report.
func NewMarketList(v types.MarketVec) Message {
	return Message{Tag: TagMarketList, MarketList: &v}
}
