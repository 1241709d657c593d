// Package ingest consumes the stream channel and applies updates to the
// market store. It owns all wire-value parsing and validation: malformed or
// crossed prices are logged and dropped here, never stored and never fatal.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"triflow/internal/channel"
	"triflow/logger"
	"triflow/market"
	"triflow/models"
)

type Adapter struct {
	channels *channel.Channels
	store    *market.Store
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	// Metrics
	quotesApplied  int64
	candlesApplied int64
	dropped        int64
}

func NewAdapter(ch *channel.Channels, store *market.Store) *Adapter {
	return &Adapter{
		channels: ch,
		store:    store,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("ingest adapter already running")
	}
	a.running = true
	a.ctx = ctx
	a.mu.Unlock()

	log := a.log.WithComponent("ingest").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting ingest adapter")

	a.wg.Add(1)
	go a.worker()

	log.Info("ingest adapter started successfully")
	return nil
}

func (a *Adapter) Stop() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.log.WithComponent("ingest").Info("stopping ingest adapter")
	a.wg.Wait()
	a.log.WithComponent("ingest").WithFields(logger.Fields{
		"quotes_applied":  a.quotesApplied,
		"candles_applied": a.candlesApplied,
		"dropped":         a.dropped,
	}).Info("ingest adapter stopped")
}

func (a *Adapter) worker() {
	defer a.wg.Done()

	log := a.log.WithComponent("ingest").WithFields(logger.Fields{"worker": "stream_consumer"})

	for {
		select {
		case <-a.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case ev, ok := <-a.channels.Stream:
			if !ok {
				log.Info("stream channel closed")
				return
			}
			a.Apply(ev)
		}
	}
}

// Apply processes a single event synchronously. The live path calls it from
// the worker goroutine; the replay harness calls it directly so each batch is
// fully applied before the next evaluation pass.
func (a *Adapter) Apply(ev models.StreamEvent) {
	switch ev.Kind {
	case models.EventBookTicker:
		a.applyQuote(ev)
	case models.EventKline:
		a.applyCandle(ev)
	default:
		a.dropped++
		a.log.WithComponent("ingest").WithFields(logger.Fields{
			"kind":   string(ev.Kind),
			"symbol": ev.Symbol,
		}).Warn("unknown stream event kind, dropping")
	}
}

func (a *Adapter) applyQuote(ev models.StreamEvent) {
	log := a.log.WithComponent("ingest").WithFields(logger.Fields{"symbol": ev.Symbol})

	if ev.BookTicker == nil || ev.BookTicker.BidPrice == "" || ev.BookTicker.AskPrice == "" {
		a.dropped++
		log.Warn("book ticker update with missing prices, dropping")
		return
	}

	bid, err := strconv.ParseFloat(ev.BookTicker.BidPrice, 64)
	if err != nil {
		a.dropped++
		log.WithError(err).Warn("unparsable bid price, dropping")
		return
	}
	ask, err := strconv.ParseFloat(ev.BookTicker.AskPrice, 64)
	if err != nil {
		a.dropped++
		log.WithError(err).Warn("unparsable ask price, dropping")
		return
	}

	quote := models.Quote{Symbol: ev.Symbol, Bid: bid, Ask: ask}
	if !quote.Valid() {
		a.dropped++
		log.WithFields(logger.Fields{"bid": bid, "ask": ask}).Warn("invalid quote, dropping")
		return
	}

	observed := ev.Received
	if observed.IsZero() {
		observed = time.Now().UTC()
	}
	a.store.UpsertQuote(ev.Symbol, bid, ask, observed)
	a.quotesApplied++
}

func (a *Adapter) applyCandle(ev models.StreamEvent) {
	log := a.log.WithComponent("ingest").WithFields(logger.Fields{"symbol": ev.Symbol})

	if ev.Kline == nil {
		a.dropped++
		log.Warn("kline update without payload, dropping")
		return
	}
	// In-progress bars are not actionable; only closed bars enter history.
	if !ev.Kline.Closed {
		return
	}

	candle, err := ParseCandle(ev.Kline)
	if err != nil {
		a.dropped++
		log.WithError(err).Warn("unparsable kline, dropping")
		return
	}

	a.store.AppendCandle(ev.Symbol, candle)
	a.candlesApplied++
}

// ParseCandle converts wire kline strings into a candle, attaching the
// derived best-bid proxy. It rejects non-positive prices.
func ParseCandle(k *models.KlineUpdate) (models.Candle, error) {
	var candle models.Candle
	var err error

	if candle.Open, err = parsePositive(k.Open, "open"); err != nil {
		return models.Candle{}, err
	}
	if candle.High, err = parsePositive(k.High, "high"); err != nil {
		return models.Candle{}, err
	}
	if candle.Low, err = parsePositive(k.Low, "low"); err != nil {
		return models.Candle{}, err
	}
	if candle.Close, err = parsePositive(k.Close, "close"); err != nil {
		return models.Candle{}, err
	}
	if candle.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return models.Candle{}, fmt.Errorf("volume %q: %w", k.Volume, err)
	}

	candle.OpenTime = time.UnixMilli(k.OpenTime).UTC()
	candle.Bid = candle.Close * models.CandleBidFactor
	return candle, nil
}

func parsePositive(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", field, s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", field, v)
	}
	return v, nil
}
