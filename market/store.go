// Package market owns the shared view of live market state: the latest best
// bid/ask per symbol and a bounded candle history per symbol. All access goes
// through a single mutex so a snapshot never observes a half-applied update.
package market

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"triflow/logger"
	"triflow/models"
)

// ErrNotReady is returned by Snapshot when a requested symbol has not yet
// received a quote. Callers skip the evaluation and retry on the next tick.
var ErrNotReady = errors.New("market data not yet available")

// DefaultCandleCapacity bounds the per-symbol candle history.
const DefaultCandleCapacity = 10

// Store holds quotes and candle histories for all tracked symbols.
type Store struct {
	mu       sync.Mutex
	quotes   map[string]models.Quote
	candles  map[string][]models.Candle
	capacity int
	log      *logger.Log
}

// NewStore creates an empty store with the given candle history capacity.
// A non-positive capacity falls back to DefaultCandleCapacity.
func NewStore(candleCapacity int) *Store {
	if candleCapacity <= 0 {
		candleCapacity = DefaultCandleCapacity
	}
	return &Store{
		quotes:   make(map[string]models.Quote),
		candles:  make(map[string][]models.Candle),
		capacity: candleCapacity,
		log:      logger.GetLogger(),
	}
}

// UpsertQuote replaces the symbol's quote wholesale.
func (s *Store) UpsertQuote(symbol string, bid, ask float64, observedAt time.Time) {
	s.mu.Lock()
	s.quotes[symbol] = models.Quote{
		Symbol:     symbol,
		Bid:        bid,
		Ask:        ask,
		ObservedAt: observedAt,
	}
	s.mu.Unlock()
}

// AppendCandle adds a completed bar to the symbol's history, evicting the
// oldest bar once the capacity is reached.
func (s *Store) AppendCandle(symbol string, candle models.Candle) {
	s.mu.Lock()
	history := append(s.candles[symbol], candle)
	if len(history) > s.capacity {
		history = history[len(history)-s.capacity:]
	}
	s.candles[symbol] = history
	s.mu.Unlock()
}

// Snapshot returns the current quotes for the given pairs, all read under one
// lock acquisition. If any pair's symbol has no quote yet the whole snapshot
// fails with ErrNotReady so the caller never evaluates a partial triangle.
func (s *Store) Snapshot(pairs []string) (models.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(models.PriceSnapshot, len(pairs))
	for _, pair := range pairs {
		symbol := models.PairSymbol(pair)
		quote, ok := s.quotes[symbol]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotReady, symbol)
		}
		snap[pair] = quote
	}
	return snap, nil
}

// CandleHistory returns a copy of the symbol's candle history. The second
// return value is false when no bar has been recorded yet.
func (s *Store) CandleHistory(symbol string) ([]models.Candle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.candles[symbol]
	if !ok || len(history) == 0 {
		return nil, false
	}
	out := make([]models.Candle, len(history))
	copy(out, history)
	return out, true
}

// Ready reports whether every symbol has both a quote and at least one candle.
// The live engine waits on this before entering the evaluation loop.
func (s *Store) Ready(symbols []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, symbol := range symbols {
		if _, ok := s.quotes[symbol]; !ok {
			return false
		}
		if len(s.candles[symbol]) == 0 {
			return false
		}
	}
	return true
}
