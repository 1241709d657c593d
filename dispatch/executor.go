package dispatch

import (
	"context"
	"fmt"

	"triflow/exchange"
	"triflow/logger"
	"triflow/models"
)

// leg is one market order of a cycle execution. Quantity is derived from the
// previous leg's modeled output, so the three orders chain rather than being
// sized independently.
type leg struct {
	Pair     string
	Side     exchange.OrderSide
	Quantity float64
}

// Executor realizes an accepted opportunity as three sequential market
// orders. A failed leg aborts the remaining legs; already-placed legs are
// left standing. Partial execution is an accepted operational risk here, not
// something to unwind automatically.
type Executor struct {
	client exchange.Client
	log    *logger.Log
}

func NewExecutor(client exchange.Client) *Executor {
	return &Executor{
		client: client,
		log:    logger.GetLogger(),
	}
}

// Execute places the cycle's orders in the opportunity's direction using the
// snapshot it was detected against.
func (e *Executor) Execute(ctx context.Context, opp models.Opportunity, tri models.Triangle, amount float64) {
	log := e.log.WithComponent("executor").WithFields(logger.Fields{
		"triangle":  tri.Name,
		"direction": string(opp.Direction),
		"amount":    amount,
	})

	legs, err := buildLegs(opp, tri, amount)
	if err != nil {
		log.WithError(err).Error("cannot build execution legs")
		return
	}

	for i, l := range legs {
		symbol := models.PairSymbol(l.Pair)
		placed, err := e.client.PlaceMarketOrder(ctx, symbol, l.Side, l.Quantity)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"leg":    i + 1,
				"pair":   l.Pair,
				"side":   string(l.Side),
				"placed": i,
			}).Error("leg failed, aborting remaining legs")
			return
		}
		log.WithFields(logger.Fields{
			"leg":      i + 1,
			"pair":     l.Pair,
			"side":     string(l.Side),
			"quantity": l.Quantity,
			"order_id": placed.OrderID,
			"status":   placed.Status,
		}).Info("leg placed")
	}

	log.Info("cycle execution completed")
}

// buildLegs derives the order chain from the snapshot prices. Forward buys
// through the first two pairs' asks and sells the last; reverse enters
// through the last pair and unwinds through the bids.
func buildLegs(opp models.Opportunity, tri models.Triangle, amount float64) ([3]leg, error) {
	var legs [3]leg

	p0, ok0 := opp.Snapshot[tri.Pairs[0]]
	p1, ok1 := opp.Snapshot[tri.Pairs[1]]
	p2, ok2 := opp.Snapshot[tri.Pairs[2]]
	if !ok0 || !ok1 || !ok2 {
		return legs, fmt.Errorf("snapshot missing pairs for triangle %s", tri.Name)
	}
	if !p0.Valid() || !p1.Valid() || !p2.Valid() {
		return legs, fmt.Errorf("snapshot holds invalid quotes for triangle %s", tri.Name)
	}

	if opp.Direction == models.DirectionForward {
		q1 := amount / p0.Ask
		q2 := q1 / p1.Ask
		legs = [3]leg{
			{Pair: tri.Pairs[0], Side: exchange.SideBuy, Quantity: q1},
			{Pair: tri.Pairs[1], Side: exchange.SideBuy, Quantity: q2},
			{Pair: tri.Pairs[2], Side: exchange.SideSell, Quantity: q2},
		}
		return legs, nil
	}

	q1 := amount / p2.Ask
	q2 := q1 * p1.Bid
	legs = [3]leg{
		{Pair: tri.Pairs[2], Side: exchange.SideBuy, Quantity: q1},
		{Pair: tri.Pairs[1], Side: exchange.SideSell, Quantity: q1},
		{Pair: tri.Pairs[0], Side: exchange.SideSell, Quantity: q2},
	}
	return legs, nil
}
