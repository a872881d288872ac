// Package control implements the Control engine: it owns the single framed
// TCP connection to the server, performs the Hello/BotConfiguration
// handshake, spawns every other engine per the received configuration, and
// relays market-list reports upstream (spec §4.3). Grounded on the
// teacher's engine.go orchestration and cmd/bot/main.go's startup sequence,
// generalized from "wire one strategy to one exchange client" to "spawn N
// engines per a server-supplied configuration".
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"botnode/internal/engine"
	"botnode/internal/protocol"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

// ConnState is Control's connection state machine position.
type ConnState int

const (
	StateOffline ConnState = iota
	StateConnecting
	StateOnline
)

// SpawnFunc is called after each BotConfiguration is received (once per
// successful server connection, so again after a reconnect), with the config
// so the caller can build and spawn every other engine.
// Returning the per-engine status consumers lets Control's main loop poll
// sibling health; returning the market-data ConsumersMap lets Control
// forward Markets events upstream as MarketList.
type SpawnFunc func(cfg types.BotConfiguration) (SpawnResult, error)

// SpawnResult is what a SpawnFunc hands back to Control's main loop.
type SpawnResult struct {
	StatusConsumers []transport.Consumer[types.EngineStatus]
	MarketData      *transport.ConsumersMap[string, types.MarketEvent]
}

// Engine is the Control engine.
type Engine struct {
	botID            uint16
	serverAddr       string
	reconnectBackoff time.Duration
	pingEvery        time.Duration

	spawn SpawnFunc

	state ConnState

	status   *engine.StatusPublisher
	statusRx transport.Consumer[types.EngineStatus]

	pollBackoff *engine.PollBackoff
	logger      *slog.Logger
}

// New constructs the Control engine. spawn is invoked once BotConfiguration
// arrives from the server.
func New(botID uint16, serverAddr string, backoff, pingEvery time.Duration, spawn SpawnFunc, logger *slog.Logger) *Engine {
	statusTx, statusRx := transport.Make[types.EngineStatus](1)
	return &Engine{
		botID:            botID,
		serverAddr:       serverAddr,
		reconnectBackoff: backoff,
		pingEvery:        pingEvery,
		spawn:            spawn,
		state:            StateOffline,
		status:           engine.NewStatusPublisher(statusTx),
		statusRx:         statusRx,
		pollBackoff:      engine.NewPollBackoff(engine.DefaultSpinBudget, 50*time.Microsecond),
		logger:           logger.With("component", "control"),
	}
}

func (e *Engine) Name() string { return "control" }

func (e *Engine) StatusRx() transport.Consumer[types.EngineStatus] { return e.statusRx }

// Start runs Control's connect/handshake/main-loop/reconnect cycle until
// shutdown (spec §4.3).
func (e *Engine) Start(ctx context.Context, sd *engine.Shutdown) error {
	e.status.Publish(types.StatusBooting)

	for {
		if sd.ShutdownStarted() {
			e.status.Publish(types.StatusShuttingDown)
			return nil
		}

		e.state = StateConnecting
		err := e.runConnection(ctx, sd)
		e.state = StateOffline

		if sd.ShutdownStarted() {
			e.status.Publish(types.StatusShuttingDown)
			return nil
		}
		if err != nil {
			e.logger.Warn("connection ended, reconnecting", "error", err, "backoff", e.reconnectBackoff)
		}

		select {
		case <-sd.WaitShutdownTriggered():
			e.status.Publish(types.StatusShuttingDown)
			return nil
		case <-time.After(e.reconnectBackoff):
		}
	}
}

// runConnection dials the server, performs the handshake, and runs the
// main loop until the connection ends or shutdown is triggered.
func (e *Engine) runConnection(ctx context.Context, sd *engine.Shutdown) error {
	release := sd.DelayShutdownToken()
	defer release()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", e.serverAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", e.serverAddr, err)
	}
	defer conn.Close()

	go func() {
		<-sd.WaitShutdownTriggered()
		conn.Close()
	}()

	hello := protocol.NewHello(e.botID, 1)
	payload, err := protocol.Encode(hello)
	if err != nil {
		return fmt.Errorf("encode hello: %w", err)
	}
	if err := protocol.WriteFrame(conn, payload); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	firstPayload, err := protocol.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("await first frame: %w", err)
	}
	first, err := protocol.Decode(firstPayload)
	if err != nil {
		return fmt.Errorf("decode first frame: %w", err)
	}
	if first.Tag != protocol.TagBotConfiguration || first.BotConfiguration == nil {
		return fmt.Errorf("control: first frame was tag %d, want BotConfiguration (protocol error)", first.Tag)
	}

	result, err := e.spawn(*first.BotConfiguration)
	if err != nil {
		return fmt.Errorf("spawn engines: %w", err)
	}
	e.state = StateOnline
	e.status.Publish(types.StatusRunning)

	return e.mainLoop(ctx, sd, conn, result)
}

// mainLoop implements the ping timer plus the round-robin market-data-to-
// MarketList forwarding described in spec §4.3.
func (e *Engine) mainLoop(ctx context.Context, sd *engine.Shutdown, conn net.Conn, result SpawnResult) error {
	lastActivity := time.Now()

	for {
		if sd.ShutdownStarted() {
			return nil
		}

		if time.Since(lastActivity) > e.pingEvery {
			ping := protocol.NewPing(time.Now().UnixNano())
			payload, err := protocol.Encode(ping)
			if err != nil {
				return fmt.Errorf("encode ping: %w", err)
			}
			if err := protocol.WriteFrame(conn, payload); err != nil {
				return fmt.Errorf("send ping: %w", err)
			}
			lastActivity = time.Now()
		}

		acted := false
		if result.MarketData != nil {
			if _, evt, ok := result.MarketData.PollValues(); ok && evt.Kind == types.MarketEventMarkets {
				marketList := protocol.NewMarketList(types.NewMarketVec(evt.Markets))
				payload, err := protocol.Encode(marketList)
				if err != nil {
					return fmt.Errorf("encode market list: %w", err)
				}
				if err := protocol.WriteFrame(conn, payload); err != nil {
					return fmt.Errorf("send market list: %w", err)
				}
				lastActivity = time.Now()
				acted = true
			}
		}

		for _, rx := range result.StatusConsumers {
			if status, ok := rx.TryPop(); ok {
				e.logger.Debug("sibling status", "status", status.String())
				acted = true
			}
		}

		if acted {
			e.pollBackoff.Hit()
			continue
		}

		if park := e.pollBackoff.Miss(); park > 0 {
			select {
			case <-sd.WaitShutdownTriggered():
				return nil
			case <-time.After(park):
			}
		}
	}
}
