// Package replay turns recorded candle series into the same stream events the
// live websocket reader produces. Historical evaluation therefore runs through
// the identical ingestion path as live trading, instead of a second code path
// that can drift.
package replay

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"triflow/logger"
	"triflow/models"
)

// Source replays per-symbol candle series step by step. Step i yields, for
// every symbol, the i-th closed candle plus a synthetic book ticker derived
// from it: bid = close × the candle bid factor, ask = close. All series are
// truncated to the shortest one so every step covers every symbol.
type Source struct {
	symbols []string
	series  map[string][]models.Candle
	steps   int
	log     *logger.Log
}

func NewSource(series map[string][]models.Candle) (*Source, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("replay source needs at least one candle series")
	}

	symbols := make([]string, 0, len(series))
	steps := -1
	for symbol, candles := range series {
		if len(candles) == 0 {
			return nil, fmt.Errorf("empty candle series for %s", symbol)
		}
		symbols = append(symbols, symbol)
		if steps < 0 || len(candles) < steps {
			steps = len(candles)
		}
	}
	sort.Strings(symbols)

	src := &Source{
		symbols: symbols,
		series:  series,
		steps:   steps,
		log:     logger.GetLogger(),
	}
	src.log.WithComponent("replay").WithFields(logger.Fields{
		"symbols": len(symbols),
		"steps":   steps,
	}).Info("replay source ready")
	return src, nil
}

// Steps returns the number of replay steps (the shortest series length).
func (s *Source) Steps() int {
	return s.steps
}

// At returns the open time of step i, taken from the first symbol's series.
func (s *Source) At(i int) time.Time {
	return s.series[s.symbols[0]][i].OpenTime
}

// Step returns the events for step i in deterministic symbol order. The kline
// event precedes the book ticker for each symbol so candle history and the
// quote advance together.
func (s *Source) Step(i int) []models.StreamEvent {
	if i < 0 || i >= s.steps {
		return nil
	}

	events := make([]models.StreamEvent, 0, 2*len(s.symbols))
	for _, symbol := range s.symbols {
		candle := s.series[symbol][i]
		events = append(events, models.StreamEvent{
			Kind:   models.EventKline,
			Symbol: symbol,
			Kline: &models.KlineUpdate{
				OpenTime: candle.OpenTime.UnixMilli(),
				Open:     formatPrice(candle.Open),
				High:     formatPrice(candle.High),
				Low:      formatPrice(candle.Low),
				Close:    formatPrice(candle.Close),
				Volume:   formatPrice(candle.Volume),
				Closed:   true,
			},
			Received: candle.OpenTime,
		})
		events = append(events, models.StreamEvent{
			Kind:   models.EventBookTicker,
			Symbol: symbol,
			BookTicker: &models.BookTickerUpdate{
				BidPrice: formatPrice(candle.Close * models.CandleBidFactor),
				AskPrice: formatPrice(candle.Close),
			},
			Received: candle.OpenTime,
		})
	}
	return events
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
