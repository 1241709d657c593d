// Package exchange defines the client surface the engine needs from the
// exchange and its Binance implementation. Detection code depends only on
// the Client interface so the backtest and tests can substitute fakes.
package exchange

import (
	"context"

	"triflow/models"
)

// OrderSide is the direction of a market order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// PriceLevel is one level of an order book side.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook holds the top levels of both book sides, best first.
type OrderBook struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
}

// Best returns the best bid and ask, or ok=false when either side is empty.
func (b OrderBook) Best() (bid, ask float64, ok bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0, 0, false
	}
	return b.Bids[0].Price, b.Asks[0].Price, true
}

// PlacedOrder describes the exchange's response to a market order.
type PlacedOrder struct {
	OrderID  int64
	Symbol   string
	Side     OrderSide
	Quantity float64
	Status   string
}

// Client is the exchange connectivity surface used by bootstrap and
// execution.
type Client interface {
	FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (PlacedOrder, error)
}
