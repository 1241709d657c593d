package engine

import (
	"testing"
	"time"

	"triflow/config"
	"triflow/models"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		TickInterval:      10 * time.Millisecond,
		StartingNotional:  666.67,
		FeeRate:           0,
		SlippageCeiling:   0.01,
		SlippageTolerance: 0.01,
		VolatilityGate:    5,
		AnomalyCeiling:    5.0,
		TrendBonus:        0.2,
		HistorySize:       10,
	}
}

// calmUptrendCandles yields volatility 4% (within the gate) and an upward
// trend: the last derived bid sits above the ten-bar average.
func calmUptrendCandles() []models.Candle {
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 104}
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{Close: c, Bid: c * models.CandleBidFactor}
	}
	return out
}

func unitSnapshot(p2Bid, p2Ask float64) models.PriceSnapshot {
	return models.PriceSnapshot{
		"BTC/USDT": {Bid: 1, Ask: 1},
		"ETH/BTC":  {Bid: 1, Ask: 1},
		"ETH/USDT": {Bid: p2Bid, Ask: p2Ask},
	}
}

func TestPipelineQuietMarketEmitsNothing(t *testing.T) {
	cfg := testEngineConfig()
	cfg.FeeRate = 0.001 // fees alone push both directions negative
	p := NewPipeline(cfg)

	opp, rec := p.Evaluate(btcEthUsdt, unitSnapshot(1, 1), calmUptrendCandles(), time.Now())
	if opp != nil {
		t.Fatalf("quiet market produced an opportunity: %+v", opp)
	}
	if rec.Skip != models.SkipBelowTarget {
		t.Fatalf("expected below_threshold skip, got %q", rec.Skip)
	}
	if rec.RawForward >= 0 || rec.RawReverse >= 0 {
		t.Fatalf("expected negative raw rates: fwd=%v rev=%v", rec.RawForward, rec.RawReverse)
	}
	// Negative rates never feed the adaptive threshold.
	if got := p.History().Recent(); len(got) != 0 {
		t.Fatalf("history polluted by negative rates: %v", got)
	}
}

func TestPipelineVolatilityGate(t *testing.T) {
	p := NewPipeline(testEngineConfig())

	// A 10% swing inside the trailing five bars trips the gate.
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 110}
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{Close: c, Bid: c * models.CandleBidFactor}
	}

	opp, rec := p.Evaluate(btcEthUsdt, unitSnapshot(1.02, 1.021), candles, time.Now())
	if opp != nil {
		t.Fatalf("high volatility must skip")
	}
	if rec.Skip != models.SkipVolatility {
		t.Fatalf("expected volatility skip, got %q", rec.Skip)
	}
}

func TestPipelineSlippageGate(t *testing.T) {
	cfg := testEngineConfig()
	cfg.SlippageTolerance = 0.0001
	p := NewPipeline(cfg)

	opp, rec := p.Evaluate(btcEthUsdt, unitSnapshot(1.02, 1.021), calmUptrendCandles(), time.Now())
	if opp != nil {
		t.Fatalf("slippage above tolerance must skip")
	}
	if rec.Skip != models.SkipSlippage {
		t.Fatalf("expected slippage skip, got %q", rec.Skip)
	}
}

func TestPipelineAnomalyGate(t *testing.T) {
	p := NewPipeline(testEngineConfig())

	// A 7% synthetic edge passes the profit gate but is a data artifact.
	opp, rec := p.Evaluate(btcEthUsdt, unitSnapshot(1.07, 1.071), calmUptrendCandles(), time.Now())
	if opp != nil {
		t.Fatalf("anomalous rate must be rejected regardless of other gates")
	}
	if rec.Skip != models.SkipAnomaly {
		t.Fatalf("expected anomaly skip, got %q", rec.Skip)
	}
	if got := p.History().Recent(); len(got) != 0 {
		t.Fatalf("anomalous rate polluted history: %v", got)
	}
}

func TestPipelineAcceptsOpportunity(t *testing.T) {
	p := NewPipeline(testEngineConfig())

	opp, rec := p.Evaluate(btcEthUsdt, unitSnapshot(1.01, 1.012), calmUptrendCandles(), time.Now())
	if opp == nil {
		t.Fatalf("expected an opportunity, got skip %q", rec.Skip)
	}
	if !rec.Accepted {
		t.Fatalf("record not marked accepted")
	}
	if opp.Direction != models.DirectionForward {
		t.Fatalf("expected forward direction, got %s", opp.Direction)
	}
	if opp.ProfitRate <= 0 || opp.ProfitRate > 5 {
		t.Fatalf("profit rate out of accepted range: %v", opp.ProfitRate)
	}
	if opp.ProfitUSDT <= 0 {
		t.Fatalf("profit amount not derived: %v", opp.ProfitUSDT)
	}
	if opp.Trend != models.TrendUp {
		t.Fatalf("unexpected trend: %s", opp.Trend)
	}
	if opp.ID == "" {
		t.Fatalf("opportunity missing id")
	}

	// The raw selected rate feeds the adaptive threshold.
	got := p.History().Recent()
	if len(got) != 1 || got[0] != rec.RawForward {
		t.Fatalf("history = %v, want raw forward %v", got, rec.RawForward)
	}
}

func TestPipelineThresholdRisesAfterWins(t *testing.T) {
	p := NewPipeline(testEngineConfig())
	candles := calmUptrendCandles()

	_, first := p.Evaluate(btcEthUsdt, unitSnapshot(1.01, 1.012), candles, time.Now())
	_, second := p.Evaluate(btcEthUsdt, unitSnapshot(1.01, 1.012), candles, time.Now())

	if second.Threshold <= first.Threshold {
		t.Fatalf("threshold did not adapt to positive history: %v <= %v", second.Threshold, first.Threshold)
	}
}
