package models

import (
	"strings"
	"time"
)

// CandleBidFactor derives a synthetic best-bid proxy from a candle close.
// Candle streams carry no book data, so the evaluator treats the close
// shaved by a tenth of a percent as the tradable bid.
const CandleBidFactor = 0.999

// Quote is the latest best bid/ask observed for a symbol. Quotes are
// replaced wholesale on every update, never mutated in place.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	ObservedAt time.Time `json:"observed_at"`
}

// Valid reports whether the quote can be used for evaluation. Upstream data
// occasionally delivers crossed or zeroed books; those are discarded.
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask >= q.Bid
}

// Candle is a completed one-interval bar. Bid is the derived best-bid proxy
// (close × CandleBidFactor) attached on ingestion.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Bid      float64   `json:"bid"`
}

// Valid reports whether all of the candle's prices are positive. Bars that
// fail this never enter history, whatever path delivered them.
func (c Candle) Valid() bool {
	return c.Open > 0 && c.High > 0 && c.Low > 0 && c.Close > 0
}

// PriceSnapshot is a consistent read of the quotes backing one triangle,
// taken under a single store lock acquisition. It is keyed by pair
// (e.g. "BTC/USDT").
type PriceSnapshot map[string]Quote

// PairSymbol converts a pair like "BTC/USDT" to the exchange symbol "BTCUSDT".
func PairSymbol(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}

// StreamSymbol converts a pair to the lowercase stream identifier "btcusdt".
func StreamSymbol(pair string) string {
	return strings.ToLower(PairSymbol(pair))
}
