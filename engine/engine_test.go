package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"triflow/config"
	"triflow/market"
	"triflow/models"
)

type countingRecorder struct {
	mu    sync.Mutex
	count int
}

func (r *countingRecorder) Record(rec models.TickRecord) {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *countingRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func engineTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Engine = config.EngineConfig{
		TickInterval:      time.Millisecond,
		StartingNotional:  666.67,
		FeeRate:           0.001,
		SlippageCeiling:   0.01,
		SlippageTolerance: 0.01,
		VolatilityGate:    5,
		AnomalyCeiling:    5.0,
		TrendBonus:        0.2,
		HistorySize:       10,
	}
	cfg.Triangles = []models.Triangle{
		{Name: "BTC-ETH-USDT", Pairs: [3]string{"BTC/USDT", "ETH/BTC", "ETH/USDT"}},
	}
	return cfg
}

func seededStore() *market.Store {
	store := market.NewStore(10)
	now := time.Now().UTC()
	closes := map[string]float64{"BTCUSDT": 60000, "ETHBTC": 0.05, "ETHUSDT": 3000}
	for symbol, close := range closes {
		store.UpsertQuote(symbol, close, close*1.0001, now)
		store.AppendCandle(symbol, models.Candle{
			OpenTime: now,
			Open:     close, High: close, Low: close, Close: close,
			Volume: 1,
			Bid:    close * models.CandleBidFactor,
		})
	}
	return store
}

func TestWaitReadySeededStore(t *testing.T) {
	eng := NewEngine(engineTestConfig(), seededStore())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := eng.WaitReady(ctx); err != nil {
		t.Fatalf("wait ready on seeded store: %v", err)
	}
}

func TestWaitReadyCancelled(t *testing.T) {
	eng := NewEngine(engineTestConfig(), market.NewStore(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := eng.WaitReady(ctx); err == nil {
		t.Fatalf("expected context error while store is empty")
	}
}

// The loop must evaluate triangles while running and return cleanly once the
// context is cancelled.
func TestRunStopsOnCancel(t *testing.T) {
	eng := NewEngine(engineTestConfig(), seededStore())
	rec := &countingRecorder{}
	eng.SetRecorder(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for rec.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop after cancellation")
	}

	if rec.Count() == 0 {
		t.Fatalf("no evaluations recorded while the loop was running")
	}
}

func TestRunOnceRecordsEveryTriangle(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Triangles = append(cfg.Triangles, models.Triangle{
		Name:  "BTC-BNB-USDT",
		Pairs: [3]string{"BNB/BTC", "BTC/USDT", "BNB/USDT"},
	})

	store := seededStore()
	now := time.Now().UTC()
	for symbol, close := range map[string]float64{"BNBBTC": 0.009, "BNBUSDT": 540} {
		store.UpsertQuote(symbol, close, close*1.0001, now)
		store.AppendCandle(symbol, models.Candle{
			OpenTime: now,
			Open:     close, High: close, Low: close, Close: close,
			Volume: 1,
			Bid:    close * models.CandleBidFactor,
		})
	}

	eng := NewEngine(cfg, store)
	rec := &countingRecorder{}
	eng.SetRecorder(rec)

	eng.RunOnce(context.Background(), now)
	if rec.Count() != 2 {
		t.Fatalf("expected one record per triangle, got %d", rec.Count())
	}
}
