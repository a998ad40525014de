// Kalshi Market Maker — an automated market-making bot for Kalshi-style
// binary prediction markets using the Avellaneda-Stoikov algorithm.
//
// Architecture:
//
//	main.go                   — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	controller/controller.go  — event loop: feed → book builder → strategy → risk → execution → state
//	strategy/engine.go        — Avellaneda-Stoikov quoting: volatility, reservation price, skew, spread, sizing
//	risk/manager.go           — ordered rule pipeline (allow/modify/block) plus a latching kill switch
//	state/store.go            — positions, average cost, realized/unrealized PnL, fee accounting
//	market/book.go            — local order book mirror built from snapshots and deltas
//	execution/paper.go        — simulated order matching against the local book
//	execution/diff.go         — cancel/amend/keep reconciliation between desired and resting quotes
//	exchange/feed.go          — market data feed (mock random-walk feed in paper mode)
//	db/repository.go          — SQLite persistence for orders, fills and PnL snapshots
//	api/server.go             — monitoring HTTP/WebSocket server with an operator kill switch
//
// How it makes money:
//
//	The bot captures the bid-ask spread on binary prediction markets.
//	It posts a buy (bid) below mid price and a sell (ask) above mid price.
//	When both sides fill, the bot earns the spread difference.
//	Avellaneda-Stoikov adjusts quotes based on inventory risk: if the bot
//	accumulates too much of one side, it skews prices to attract offsetting fills.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"kalshi-mm/internal/api"
	"kalshi-mm/internal/config"
	"kalshi-mm/internal/controller"
	"kalshi-mm/internal/db"
	"kalshi-mm/internal/exchange"
	"kalshi-mm/internal/execution"
	"kalshi-mm/internal/state"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MM_CONFIG"); p != "" {
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

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	feeRate, err := cfg.FeeRate()
	if err != nil {
		logger.Error("invalid fee rate", "error", err)
		os.Exit(1)
	}

	repo, err := db.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.Store.DBPath)
		os.Exit(1)
	}
	defer repo.Close()

	tickers := make([]string, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		tickers = append(tickers, m.Ticker)
	}

	feed := exchange.NewMockFeed(tickers, cfg.Feed.Interval, cfg.Feed.Seed, logger)
	exec := execution.NewPaperEngine(logger)
	store := state.NewStore(feeRate, logger)

	ctrl, err := controller.New(cfg, feed, exec, store, repo, logger)
	if err != nil {
		logger.Error("failed to create controller", "error", err)
		os.Exit(1)
	}

	// Start dashboard API server if enabled
	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, ctrl, logger)
		ctrl.SetBroadcaster(apiServer)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("kalshi market maker started",
		"mode", cfg.Mode,
		"session", repo.SessionID(),
		"markets", len(cfg.Markets),
		"max_inventory", cfg.Strategy.MaxInventory,
		"base_size", cfg.Strategy.BaseSize,
	)

	err = ctrl.Run(ctx)
	logger.Info("controller stopped", "reason", err)

	// Stop dashboard last so operators can observe the shutdown
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
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
