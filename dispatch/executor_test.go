package dispatch

import (
	"context"
	"fmt"
	"math"
	"testing"

	"triflow/exchange"
	"triflow/models"
)

type placedCall struct {
	Symbol   string
	Side     exchange.OrderSide
	Quantity float64
}

// fakeClient records placed orders and can fail a specific leg.
type fakeClient struct {
	calls  []placedCall
	failAt int // 1-based leg index to fail, 0 = never
	nextID int64
}

func (f *fakeClient) FetchOrderBook(ctx context.Context, symbol string, depth int) (exchange.OrderBook, error) {
	return exchange.OrderBook{}, fmt.Errorf("not implemented")
}

func (f *fakeClient) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeClient) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.OrderSide, quantity float64) (exchange.PlacedOrder, error) {
	if f.failAt > 0 && len(f.calls)+1 == f.failAt {
		return exchange.PlacedOrder{}, fmt.Errorf("order rejected")
	}
	f.calls = append(f.calls, placedCall{Symbol: symbol, Side: side, Quantity: quantity})
	f.nextID++
	return exchange.PlacedOrder{OrderID: f.nextID, Symbol: symbol, Side: side, Quantity: quantity, Status: "FILLED"}, nil
}

var execTriangle = models.Triangle{
	Name:  "BTC-ETH-USDT",
	Pairs: [3]string{"BTC/USDT", "ETH/BTC", "ETH/USDT"},
}

func execOpportunity(direction models.Direction) models.Opportunity {
	return models.Opportunity{
		Triangle:  execTriangle.Name,
		Direction: direction,
		Snapshot: models.PriceSnapshot{
			"BTC/USDT": {Bid: 60000, Ask: 60010},
			"ETH/BTC":  {Bid: 0.05, Ask: 0.0501},
			"ETH/USDT": {Bid: 3010, Ask: 3015},
		},
	}
}

func TestExecuteForwardChainsQuantities(t *testing.T) {
	client := &fakeClient{}
	e := NewExecutor(client)
	const amount = 666.67

	e.Execute(context.Background(), execOpportunity(models.DirectionForward), execTriangle, amount)

	if len(client.calls) != 3 {
		t.Fatalf("expected 3 legs, got %d", len(client.calls))
	}

	q1 := amount / 60010
	q2 := q1 / 0.0501

	want := []placedCall{
		{Symbol: "BTCUSDT", Side: exchange.SideBuy, Quantity: q1},
		{Symbol: "ETHBTC", Side: exchange.SideBuy, Quantity: q2},
		{Symbol: "ETHUSDT", Side: exchange.SideSell, Quantity: q2},
	}
	for i, w := range want {
		got := client.calls[i]
		if got.Symbol != w.Symbol || got.Side != w.Side {
			t.Fatalf("leg %d: got %+v, want %+v", i+1, got, w)
		}
		if math.Abs(got.Quantity-w.Quantity)/w.Quantity > 1e-12 {
			t.Fatalf("leg %d quantity = %v, want %v", i+1, got.Quantity, w.Quantity)
		}
	}
}

func TestExecuteReverseChainsQuantities(t *testing.T) {
	client := &fakeClient{}
	e := NewExecutor(client)
	const amount = 666.67

	e.Execute(context.Background(), execOpportunity(models.DirectionReverse), execTriangle, amount)

	if len(client.calls) != 3 {
		t.Fatalf("expected 3 legs, got %d", len(client.calls))
	}

	q1 := amount / 3015
	q2 := q1 * 0.05

	want := []placedCall{
		{Symbol: "ETHUSDT", Side: exchange.SideBuy, Quantity: q1},
		{Symbol: "ETHBTC", Side: exchange.SideSell, Quantity: q1},
		{Symbol: "BTCUSDT", Side: exchange.SideSell, Quantity: q2},
	}
	for i, w := range want {
		got := client.calls[i]
		if got.Symbol != w.Symbol || got.Side != w.Side {
			t.Fatalf("leg %d: got %+v, want %+v", i+1, got, w)
		}
		if math.Abs(got.Quantity-w.Quantity)/w.Quantity > 1e-12 {
			t.Fatalf("leg %d quantity = %v, want %v", i+1, got.Quantity, w.Quantity)
		}
	}
}

func TestExecuteAbortsRemainingLegsOnFailure(t *testing.T) {
	client := &fakeClient{failAt: 2}
	e := NewExecutor(client)

	// Must not panic; the second leg fails and the third is never placed.
	e.Execute(context.Background(), execOpportunity(models.DirectionForward), execTriangle, 666.67)

	if len(client.calls) != 1 {
		t.Fatalf("expected only the first leg placed, got %d", len(client.calls))
	}
	if client.calls[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected first leg: %+v", client.calls[0])
	}
}

func TestExecuteRejectsIncompleteSnapshot(t *testing.T) {
	client := &fakeClient{}
	e := NewExecutor(client)

	opp := execOpportunity(models.DirectionForward)
	delete(opp.Snapshot, "ETH/BTC")
	e.Execute(context.Background(), opp, execTriangle, 666.67)

	if len(client.calls) != 0 {
		t.Fatalf("no orders expected for incomplete snapshot, got %d", len(client.calls))
	}
}
