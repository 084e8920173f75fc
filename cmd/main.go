package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"forexstream/api"
	"forexstream/internal/alert"
	"forexstream/internal/candle"
	"forexstream/internal/config"
	"forexstream/internal/hub"
	"forexstream/internal/ingest"
	"forexstream/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal, stopping services")
		cancel()
	}()

	// 1. Quote source: live upstream connection, or the simulator for
	// local runs without an API key.
	var source service.QuoteSource
	if cfg.SimulateFeed {
		simCfg := ingest.DefaultSimulatorConfig()
		simCfg.HistoryCap = cfg.PriceHistoryCap
		source = ingest.NewSimulator(simCfg, logger)
	} else {
		source = ingest.NewClient(ingest.Options{
			APIKey:           cfg.TiingoAPIKey,
			ThresholdLevel:   cfg.ThresholdLevel,
			ReconnectDelay:   cfg.ReconnectDelay,
			MaxSpreadPercent: cfg.MaxSpreadPercent,
			HistoryCap:       cfg.PriceHistoryCap,
		}, logger)
	}

	// 2. Domain components.
	aggregator := candle.New(cfg.CandleSeriesCap, logger)
	alerts := alert.NewEngine(logger)

	// 3. Facade owning the tick pipeline.
	forex := service.New(source, aggregator, alerts, logger)
	forex.Start(ctx)

	// 4. Subscriber hub fed from the facade's buses.
	subscribers := hub.New(forex.Book(), logger)
	tickCh, cancelTicks := forex.SubscribeTicks()
	alertCh, cancelAlerts := forex.SubscribeAlerts()
	defer cancelTicks()
	defer cancelAlerts()
	go subscribers.Run(ctx, tickCh, alertCh)

	// 5. REST + websocket API.
	apiHandler := api.NewAPIHandler(forex, subscribers, logger)

	go func() {
		logger.Info("forex stream service starting", "port", cfg.Port)
		if err := apiHandler.StartServer(cfg.Port); err != nil {
			logger.Error("http server stopped", "error", err)
			cancel()
		}
	}()

	fmt.Printf("Forex stream service on port %d\n", cfg.Port)
	fmt.Printf("Endpoints:\n")
	fmt.Printf("  GET /forex/price/eurusd\n")
	fmt.Printf("  GET /forex/ohlc/eurusd?timeframe=1m&limit=100\n")
	fmt.Printf("  GET /forex/indicators/eurusd?timeframe=1h\n")
	fmt.Printf("  GET /ws?client_id=...&client_type=bot\n")
	fmt.Printf("  GET /health\n")
	fmt.Printf("Press Ctrl+C to gracefully shutdown\n")

	<-ctx.Done()
	logger.Info("shutdown complete")
}
