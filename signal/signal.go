// Package signal computes the derived market indicators used by the decision
// pipeline. Every function here is pure: same inputs, same outputs, no state,
// so each one is testable in isolation.
package signal

import (
	"triflow/models"
)

const (
	volatilityWindow = 5
	trendWindow      = 10
	thresholdWindow  = 10

	// baseThreshold is the floor of the adaptive profit threshold, percent.
	baseThreshold = 0.12

	// slippageBase scales modeled price impact by trade size; notionalUnit is
	// the reference trade size the base rate was calibrated against.
	slippageBase = 0.0015
	notionalUnit = 666.67
)

// Volatility returns the close-price range over the trailing window of up to
// volatilityWindow candles ending at index, as a percentage of the window
// minimum. Fewer than two candles in the window means no measurable range.
func Volatility(candles []models.Candle, index int) float64 {
	if index < 0 || index >= len(candles) {
		return 0
	}
	start := index - volatilityWindow + 1
	if start < 0 {
		start = 0
	}
	window := candles[start : index+1]
	if len(window) < 2 {
		return 0
	}
	lo, hi := window[0].Close, window[0].Close
	for _, c := range window[1:] {
		if c.Close < lo {
			lo = c.Close
		}
		if c.Close > hi {
			hi = c.Close
		}
	}
	if lo <= 0 {
		return 0
	}
	return (hi - lo) / lo * 100
}

// Trend compares the candle's derived bid at index against the simple moving
// average of closes over the trailing window of up to trendWindow candles.
// A bid above the average reads as upward momentum.
func Trend(candles []models.Candle, index int) models.Trend {
	if index < 0 || index >= len(candles) {
		return models.TrendDown
	}
	start := index - trendWindow + 1
	if start < 0 {
		start = 0
	}
	window := candles[start : index+1]
	var sum float64
	for _, c := range window {
		sum += c.Close
	}
	sma := sum / float64(len(window))
	if candles[index].Bid > sma {
		return models.TrendUp
	}
	return models.TrendDown
}

// Slippage models price impact for a trade of the given notional amount under
// the given volatility (percent). The result grows linearly with size and is
// inflated by volatility, capped at ceiling.
func Slippage(amount, volatility, ceiling float64) float64 {
	base := slippageBase * (amount / notionalUnit)
	factor := 1 + volatility/10
	slippage := base * factor
	if slippage > ceiling {
		return ceiling
	}
	return slippage
}

// DynamicThreshold derives the minimum profit rate (percent) required to act.
// The trailing positive rates pull the threshold up so a run of cheap wins
// does not trigger ever-smaller trades; elevated volatility adds a wider
// safety margin.
func DynamicThreshold(recentRates []float64, volatility float64) float64 {
	base := baseThreshold

	start := len(recentRates) - thresholdWindow
	if start < 0 {
		start = 0
	}
	var sum float64
	var n int
	for _, r := range recentRates[start:] {
		if r > 0 {
			sum += r
			n++
		}
	}
	if n > 0 {
		base += sum / float64(n) * 0.3
	}
	if base < baseThreshold {
		base = baseThreshold
	}

	if volatility > 1 {
		return base + 0.2
	}
	return base + 0.05
}
