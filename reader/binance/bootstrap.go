package binance

import (
	"context"
	"fmt"
	"time"

	appconfig "triflow/config"
	"triflow/exchange"
	"triflow/logger"
	"triflow/market"
	"triflow/models"
)

// Bootstrap seeds the market store over REST with the current best bid/ask
// and recent candle history for every symbol, so the engine does not have to
// wait a full kline interval after startup. Individual symbol failures are
// logged and tolerated; the readiness wait covers the gap until the stream
// delivers.
func Bootstrap(ctx context.Context, cfg *appconfig.Config, client exchange.Client, store *market.Store, symbols []string) error {
	log := logger.GetLogger().WithComponent("binance_bootstrap")

	depth := cfg.Source.Binance.BootstrapDepth
	if depth <= 0 {
		depth = 5
	}
	interval := cfg.Source.Binance.KlineInterval

	var failures int
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}

		book, err := client.FetchOrderBook(ctx, symbol, depth)
		if err != nil {
			failures++
			log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("order book bootstrap failed")
		} else if bid, ask, ok := book.Best(); !ok {
			log.WithFields(logger.Fields{"symbol": symbol}).Warn("empty order book, skipping seed quote")
		} else if quote := (models.Quote{Symbol: symbol, Bid: bid, Ask: ask}); !quote.Valid() {
			log.WithFields(logger.Fields{
				"symbol": symbol,
				"bid":    bid,
				"ask":    ask,
			}).Warn("invalid order book quote, skipping seed quote")
		} else {
			store.UpsertQuote(symbol, bid, ask, time.Now().UTC())
		}

		candles, err := client.FetchCandles(ctx, symbol, interval, market.DefaultCandleCapacity)
		if err != nil {
			failures++
			log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("candle bootstrap failed")
			continue
		}
		var seeded int
		for _, candle := range candles {
			if !candle.Valid() {
				log.WithFields(logger.Fields{
					"symbol": symbol,
					"close":  candle.Close,
				}).Warn("invalid candle, dropping")
				continue
			}
			store.AppendCandle(symbol, candle)
			seeded++
		}
		log.WithFields(logger.Fields{
			"symbol":  symbol,
			"candles": seeded,
		}).Info("symbol seeded")
	}

	if failures == len(symbols)*2 && len(symbols) > 0 {
		return fmt.Errorf("bootstrap failed for all %d symbols", len(symbols))
	}
	return nil
}
