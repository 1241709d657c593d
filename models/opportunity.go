package models

import "time"

// Opportunity is an accepted arbitrage detection. It is created only after
// every pipeline gate has passed, is immutable, and is consumed exactly once
// by dispatch.
type Opportunity struct {
	ID         string        `json:"id"`
	Triangle   string        `json:"triangle"`
	Direction  Direction     `json:"direction"`
	ProfitRate float64       `json:"profit_rate"`
	ProfitUSDT float64       `json:"profit_usdt"`
	Volatility float64       `json:"volatility"`
	Slippage   float64       `json:"slippage"`
	Trend      Trend         `json:"trend"`
	Threshold  float64       `json:"threshold"`
	Snapshot   PriceSnapshot `json:"snapshot"`
	DetectedAt time.Time     `json:"detected_at"`
}

// SkipReason identifies which gate rejected an evaluation.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipStaleData   SkipReason = "stale_data"
	SkipVolatility  SkipReason = "volatility"
	SkipSlippage    SkipReason = "slippage"
	SkipBelowTarget SkipReason = "below_threshold"
	SkipAnomaly     SkipReason = "anomaly"
	SkipNonPositive SkipReason = "non_positive"
)

// TickRecord is the per-evaluation export row used by the backtest harness.
// It carries the opportunity fields whether or not the evaluation was
// accepted, plus the raw snapshot it was computed from.
type TickRecord struct {
	Triangle      string        `json:"triangle"`
	EvaluatedAt   time.Time     `json:"evaluated_at"`
	Direction     Direction     `json:"direction"`
	ProfitForward float64       `json:"profit_forward"`
	ProfitReverse float64       `json:"profit_reverse"`
	RawForward    float64       `json:"raw_forward"`
	RawReverse    float64       `json:"raw_reverse"`
	SelectedRate  float64       `json:"selected_rate"`
	Volatility    float64       `json:"volatility"`
	Slippage      float64       `json:"slippage"`
	Trend         Trend         `json:"trend"`
	Threshold     float64       `json:"threshold"`
	Accepted      bool          `json:"accepted"`
	Skip          SkipReason    `json:"skip,omitempty"`
	Snapshot      PriceSnapshot `json:"snapshot"`
}
