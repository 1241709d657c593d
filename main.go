package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"triflow/config"
	"triflow/dispatch"
	"triflow/engine"
	"triflow/exchange"
	"triflow/internal/channel"
	"triflow/internal/ingest"
	"triflow/logger"
	"triflow/market"
	"triflow/models"
	"triflow/reader/binance"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":   cfg.Triflow.Name,
		"version":   cfg.Triflow.Version,
		"triangles": len(cfg.Triangles),
	}).Info("starting triflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	symbols := models.UniqueSymbols(cfg.Triangles)

	channels := channel.NewChannels(cfg.Channels.StreamBuffer)
	defer channels.Close()

	channels.StartMetricsReporting(ctx)

	store := market.NewStore(market.DefaultCandleCapacity)
	client := exchange.NewBinanceClient(cfg.Source.Binance)

	if err := binance.Bootstrap(ctx, cfg, client, store, symbols); err != nil {
		log.WithError(err).Error("failed to bootstrap market data")
		os.Exit(1)
	}

	reader := binance.NewReader(cfg, channels, symbols)
	adapter := ingest.NewAdapter(channels, store)

	notifier := dispatch.NewNotifier(cfg.Notifier)
	var executor *dispatch.Executor
	if cfg.Execution.Enabled {
		executor = dispatch.NewExecutor(client)
		log.WithComponent("main").Warn("live order execution is enabled")
	}
	dispatcher := dispatch.NewDispatcher(notifier, executor, cfg.Triangles, cfg.Engine.StartingNotional)

	eng := engine.NewEngine(cfg, store)
	eng.SetDispatcher(dispatcher)

	if err := reader.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start market data reader")
		os.Exit(1)
	}
	if err := adapter.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start ingest adapter")
		os.Exit(1)
	}

	if err := eng.WaitReady(ctx); err != nil {
		log.WithError(err).Error("market data never became ready")
		os.Exit(1)
	}
	log.Info("all components started successfully")

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(ctx); err != nil {
			log.WithError(err).Warn("engine stopped with error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping ingest adapter")
	adapter.Stop()

	log.Info("stopping market data reader")
	reader.Stop()

	select {
	case <-engineDone:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("triflow stopped")
}
