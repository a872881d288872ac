package control

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"botnode/internal/engine"
	"botnode/internal/protocol"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

func TestControlColdBootNoConfig(t *testing.T) {
	t.Parallel()

	spawnCalled := false
	spawn := func(cfg types.BotConfiguration) (SpawnResult, error) {
		spawnCalled = true
		return SpawnResult{}, nil
	}

	e := New(7, "127.0.0.1:1", 50*time.Millisecond, time.Second, spawn, slog.Default())
	sd := engine.NewShutdown(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background(), sd) }()

	time.Sleep(150 * time.Millisecond)
	sd.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return within 2s of shutdown")
	}

	if spawnCalled {
		t.Fatal("spawn should never be called when the server is unreachable")
	}
}

// fakeServer accepts one connection, reads the Hello frame, and replies
// with a BotConfiguration frame.
func fakeServer(t *testing.T, cfg types.BotConfiguration) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		helloPayload, err := protocol.ReadFrame(conn)
		if err != nil {
			return
		}
		hello, err := protocol.Decode(helloPayload)
		if err != nil || hello.Tag != protocol.TagHello {
			return
		}

		cfgMsg := protocol.Message{Tag: protocol.TagBotConfiguration, BotConfiguration: &cfg}
		payload, err := protocol.Encode(cfgMsg)
		if err != nil {
			return
		}
		_ = protocol.WriteFrame(conn, payload)

		// Keep the connection open (draining any further frames) until closed.
		buf := make([]byte, 4096)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

func TestControlHandshakeSpawnsAndPublishesRunning(t *testing.T) {
	t.Parallel()

	cfg := types.BotConfiguration{BotID: 7, Markets: []string{"BTC-PERP"}, Exchanges: []string{"ftx"}}
	addr, stop := fakeServer(t, cfg)
	defer stop()

	spawned := make(chan types.BotConfiguration, 1)
	spawn := func(got types.BotConfiguration) (SpawnResult, error) {
		spawned <- got
		return SpawnResult{}, nil
	}

	e := New(7, addr, 100*time.Millisecond, time.Hour, spawn, slog.Default())
	sd := engine.NewShutdown(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background(), sd) }()

	select {
	case got := <-spawned:
		if got.BotID != 7 || len(got.Markets) != 1 || got.Markets[0] != "BTC-PERP" {
			t.Fatalf("spawn got %+v, want BotID=7 Markets=[BTC-PERP]", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("spawn was not called within 2s")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := e.statusRx.TryPop(); ok && v == types.StatusRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	sd.Shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return within 2s of shutdown")
	}
}

func TestControlMarketListForwarding(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan protocol.Message, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		helloPayload, err := protocol.ReadFrame(conn)
		if err != nil {
			return
		}
		if _, err := protocol.Decode(helloPayload); err != nil {
			return
		}

		cfgMsg := protocol.Message{Tag: protocol.TagBotConfiguration, BotConfiguration: &types.BotConfiguration{BotID: 1}}
		payload, _ := protocol.Encode(cfgMsg)
		_ = protocol.WriteFrame(conn, payload)

		for {
			nextPayload, err := protocol.ReadFrame(conn)
			if err != nil {
				return
			}
			msg, err := protocol.Decode(nextPayload)
			if err != nil {
				continue
			}
			if msg.Tag == protocol.TagMarketList {
				received <- msg
				return
			}
		}
	}()

	mdTx, mdRx := transport.Make[types.MarketEvent](4)
	mdMap := transport.NewConsumersMap[string, types.MarketEvent]()
	mdMap.Register("ftx", mdRx)

	spawn := func(cfg types.BotConfiguration) (SpawnResult, error) {
		return SpawnResult{MarketData: mdMap}, nil
	}

	e := New(1, ln.Addr().String(), 100*time.Millisecond, time.Hour, spawn, slog.Default())
	sd := engine.NewShutdown(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background(), sd) }()

	time.Sleep(100 * time.Millisecond)
	mdTx.TryPush(types.NewMarketsEvent([]types.Market{{Exchange: types.ExchangeFTX, Name: "BTC-PERP"}}))

	select {
	case msg := <-received:
		if msg.MarketList == nil || msg.MarketList.Len() != 1 {
			t.Fatalf("MarketList = %+v, want one market", msg.MarketList)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive a MarketList frame within 2s")
	}

	sd.Shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return within 2s of shutdown")
	}
}
