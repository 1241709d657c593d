// Command backtest replays recorded candles through the same ingestion and
// evaluation path the live engine uses, exporting one record per evaluated
// tick.
package main

import (
	"context"
	"flag"
	"os"
	"sync"

	"github.com/joho/godotenv"

	"triflow/config"
	"triflow/engine"
	"triflow/exchange"
	"triflow/internal/channel"
	"triflow/internal/ingest"
	"triflow/logger"
	"triflow/market"
	"triflow/models"
	"triflow/reader/replay"
	"triflow/writer"
)

// runStats tallies evaluation outcomes and forwards each record to the
// exporter when one is configured.
type runStats struct {
	mu        sync.Mutex
	evaluated int
	accepted  int
	skipped   map[models.SkipReason]int
	next      engine.Recorder
}

func newRunStats(next engine.Recorder) *runStats {
	return &runStats{
		skipped: make(map[models.SkipReason]int),
		next:    next,
	}
}

func (s *runStats) Record(rec models.TickRecord) {
	s.mu.Lock()
	s.evaluated++
	if rec.Accepted {
		s.accepted++
	} else if rec.Skip != models.SkipNone {
		s.skipped[rec.Skip]++
	}
	s.mu.Unlock()

	if s.next != nil {
		s.next.Record(rec)
	}
}

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	limit := flag.Int("limit", 500, "Number of candles to replay per symbol")
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
		"limit":     *limit,
	}).Info("starting triflow backtest")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	symbols := models.UniqueSymbols(cfg.Triangles)
	client := exchange.NewBinanceClient(cfg.Source.Binance)

	interval := cfg.Source.Binance.KlineInterval
	series := make(map[string][]models.Candle, len(symbols))
	for _, symbol := range symbols {
		candles, err := client.FetchCandles(ctx, symbol, interval, *limit)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).
				Error("failed to fetch candles")
			os.Exit(1)
		}
		series[symbol] = candles
	}

	source, err := replay.NewSource(series)
	if err != nil {
		log.WithError(err).Error("failed to build replay source")
		os.Exit(1)
	}

	var exporter *writer.Exporter
	if cfg.Export.Enabled {
		exporter, err = writer.NewExporter(cfg.Export)
		if err != nil {
			log.WithError(err).Error("failed to create exporter")
			os.Exit(1)
		}
	}
	stats := newRunStats(exporter)

	store := market.NewStore(market.DefaultCandleCapacity)
	adapter := ingest.NewAdapter(channel.NewChannels(1), store)

	eng := engine.NewEngine(cfg, store)
	eng.SetRecorder(stats)

	// Each step is fully applied before its evaluation pass, so results are
	// deterministic for a given candle set.
	for i := 0; i < source.Steps(); i++ {
		for _, ev := range source.Step(i) {
			adapter.Apply(ev)
		}
		eng.RunOnce(ctx, source.At(i))
	}

	if exporter != nil {
		path, err := exporter.Flush(ctx)
		if err != nil {
			log.WithError(err).Error("failed to flush export")
			os.Exit(1)
		}
		if path != "" {
			log.WithFields(logger.Fields{"path": path}).Info("export written")
		}
	}

	fields := logger.Fields{
		"steps":     source.Steps(),
		"evaluated": stats.evaluated,
		"accepted":  stats.accepted,
	}
	for reason, count := range stats.skipped {
		fields["skipped_"+string(reason)] = count
	}
	log.WithComponent("backtest").WithFields(fields).Info("backtest finished")
}
