// Command botnode is the node process entry point: loads configuration,
// connects to the server, and runs the Control/MarketData/Indicator/
// Trading/Exchange/Audit engine fleet until a shutdown signal arrives
// (spec §1, §6, §7). Adapted from the teacher's cmd/bot/main.go sequence.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"botnode/internal/audit"
	"botnode/internal/config"
	botctrl "botnode/internal/control"
	"botnode/internal/engine"
	"botnode/internal/exchange"
	"botnode/internal/indicator"
	"botnode/internal/marketdata"
	"botnode/internal/marketdata/binance"
	"botnode/internal/marketdata/ftx"
	"botnode/internal/marketdata/serum"
	"botnode/internal/trading"
	"botnode/internal/transport"
	"botnode/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BOTNODE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging).With("run_id", uuid.NewString())

	sd := engine.NewShutdown(context.Background())

	nextCPU := cfg.Executor.FirstCPU
	var handles []*engine.Handle
	spawnOne := func(e engine.Engine) {
		h := engine.SpawnEngine(nextCPU, e, sd.Context(), sd, logger)
		handles = append(handles, h)
		nextCPU++
	}

	var auditSnapshot *audit.SnapshotWriter
	if cfg.Audit.SnapshotEnabled {
		w, err := audit.NewSnapshotWriter(cfg.Audit.SnapshotDir, cfg.Audit.SnapshotEvery)
		if err != nil {
			logger.Error("failed to create audit snapshot writer", "error", err)
			os.Exit(1)
		}
		auditSnapshot = w
	}

	spawn := func(cfg types.BotConfiguration) (botctrl.SpawnResult, error) {
		return spawnFleet(cfg, spawnOne, auditSnapshot, logger)
	}

	ctrl := botctrl.New(cfg.BotID, cfg.ServerAddr, cfg.Reconnect.Backoff, cfg.Reconnect.PingInterval, spawn, logger)
	spawnOne(ctrl)

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Addr, logger)
	}

	logger.Info("botnode started", "bot_id", cfg.BotID, "server_addr", cfg.ServerAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	sd.Shutdown()
	sd.WaitShutdownComplete()

	for _, h := range handles {
		if err := h.Join(); err != nil {
			logger.Error("engine exited with error", "engine", h.Name(), "error", err)
			os.Exit(1)
		}
	}
}

// spawnFleet builds and spawns every engine the received BotConfiguration
// names, wiring each MarketData engine's fan-out to Indicator, Trading,
// Audit, and Control's own Markets-forwarding consumer (spec §4.3 step 3).
func spawnFleet(cfg types.BotConfiguration, spawnOne func(engine.Engine), auditSnapshot *audit.SnapshotWriter, logger *slog.Logger) (botctrl.SpawnResult, error) {
	indicatorMD := transport.NewConsumersMap[string, types.MarketEvent]()
	tradingMD := transport.NewConsumersMap[string, types.MarketEvent]()
	auditMD := transport.NewConsumersMap[string, types.MarketEvent]()
	controlMD := transport.NewConsumersMap[string, types.MarketEvent]()

	var statusConsumers []transport.Consumer[types.EngineStatus]

	for _, name := range cfg.Exchanges {
		mdEngine, err := newMarketDataEngine(name, logger)
		if err != nil {
			return botctrl.SpawnResult{}, err
		}

		indicatorMD.Register(name, mdEngine.rx())
		tradingMD.Register(name, mdEngine.rx())
		auditMD.Register(name, mdEngine.rx())
		controlMD.Register(name, mdEngine.rx())

		mdEngine.pushConfig(cfg)
		statusConsumers = append(statusConsumers, mdEngine.statusRx())
		spawnOne(mdEngine.engine())
	}

	indicatorConfigTx, indicatorConfigRx := transport.Make[types.BotConfiguration](1)
	indicatorConfigTx.TryPush(cfg)
	indicatorEngine := indicator.New(indicatorMD, indicatorConfigRx, logger)
	indicatorEventRx := indicatorEngine.DataRx()
	statusConsumers = append(statusConsumers, indicatorEngine.StatusRx())
	spawnOne(indicatorEngine)

	requestTx, requestRx := transport.Make[types.ExchangeRequest](256)

	exchangeConfigTx, exchangeConfigRx := transport.Make[types.BotConfiguration](1)
	exchangeConfigTx.TryPush(cfg)
	exchangeEngine := exchange.New(requestRx, exchangeConfigRx, exchange.NullAdapter{}, logger)
	exchangeEventRx := exchangeEngine.DataRx()
	statusConsumers = append(statusConsumers, exchangeEngine.StatusRx())
	spawnOne(exchangeEngine)

	tradingConfigTx, tradingConfigRx := transport.Make[types.BotConfiguration](1)
	tradingConfigTx.TryPush(cfg)
	tradingEngine := trading.New(tradingMD, indicatorEventRx, exchangeEventRx, tradingConfigRx, requestTx, logger)
	statusConsumers = append(statusConsumers, tradingEngine.StatusRx())
	spawnOne(tradingEngine)

	auditConfigTx, auditConfigRx := transport.Make[types.BotConfiguration](1)
	auditConfigTx.TryPush(cfg)
	auditEngine := audit.New(auditMD, auditConfigRx, auditSnapshot, logger)
	statusConsumers = append(statusConsumers, auditEngine.StatusRx())
	spawnOne(auditEngine)

	return botctrl.SpawnResult{StatusConsumers: statusConsumers, MarketData: controlMD}, nil
}

// marketDataHandle erases the generic Engine[A] parameter so spawnFleet can
// hold a heterogeneous list of MarketData engines across exchange types.
type marketDataHandle struct {
	e         engine.Engine
	configTx  transport.Producer[types.BotConfiguration]
	dataRx    func() transport.Consumer[types.MarketEvent]
	statusRx_ transport.Consumer[types.EngineStatus]
}

func (h *marketDataHandle) engine() engine.Engine                            { return h.e }
func (h *marketDataHandle) rx() transport.Consumer[types.MarketEvent]        { return h.dataRx() }
func (h *marketDataHandle) statusRx() transport.Consumer[types.EngineStatus] { return h.statusRx_ }
func (h *marketDataHandle) pushConfig(cfg types.BotConfiguration)            { h.configTx.TryPush(cfg) }

func newMarketDataEngine(exchangeName string, logger *slog.Logger) (*marketDataHandle, error) {
	configTx, configRx := transport.Make[types.BotConfiguration](1)

	switch exchangeName {
	case "ftx":
		e := marketdata.New[*ftx.Adapter](ftx.New(), configRx, logger)
		return &marketDataHandle{e: e, configTx: configTx, dataRx: e.DataRx, statusRx_: e.StatusRx()}, nil
	case "binance":
		e := marketdata.New[*binance.Adapter](binance.New(), configRx, logger)
		return &marketDataHandle{e: e, configTx: configTx, dataRx: e.DataRx, statusRx_: e.StatusRx()}, nil
	case "serum":
		e := marketdata.New[*serum.Adapter](serum.New("", ""), configRx, logger)
		return &marketDataHandle{e: e, configTx: configTx, dataRx: e.DataRx, statusRx_: e.StatusRx()}, nil
	default:
		return nil, &unknownExchangeError{name: exchangeName}
	}
}

type unknownExchangeError struct{ name string }

func (e *unknownExchangeError) Error() string { return "botnode: unknown exchange adapter " + e.name }

// startMetricsServer exposes the per-exchange throughput counters every
// MarketData adapter registers, on its own ServeMux like the teacher's
// own api/server.go does for its operator endpoints. Runs detached; a
// failure here is logged, not fatal (metrics is an optional concern).
func startMetricsServer(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server exited", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
