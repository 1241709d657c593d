package engine

import (
	"triflow/models"
)

// EvalParams are the inputs to one cycle evaluation besides the snapshot.
type EvalParams struct {
	StartingNotional float64
	FeeRate          float64
	Slippage         float64
	Trend            models.Trend
	// TrendBonus is an additive bias (percent) credited to the rotation
	// matching Trend. It is a tuning term, not realized profit; the raw
	// rates are kept alongside so it can be disabled or analyzed out.
	TrendBonus float64
}

// Evaluation holds both rotation outcomes for a triangle. Forward and
// Reverse include the trend bonus; RawForward and RawReverse are the
// unbiased rates used for history and statistics.
type Evaluation struct {
	Forward    float64
	Reverse    float64
	RawForward float64
	RawReverse float64
}

// Selected returns the higher biased rate and its direction.
func (e Evaluation) Selected() (models.Direction, float64) {
	if e.Forward >= e.Reverse {
		return models.DirectionForward, e.Forward
	}
	return models.DirectionReverse, e.Reverse
}

// RawSelected returns the higher unbiased rate.
func (e Evaluation) RawSelected() float64 {
	if e.RawForward >= e.RawReverse {
		return e.RawForward
	}
	return e.RawReverse
}

// Evaluate walks the triangle's cycle in both rotations and returns the
// profit rates in percent.
//
// The pair order defines the forward rotation: the first two hops buy through
// the ask, the last hop sells through the bid. Reverse starts at the last
// pair and unwinds through the bids. Buys pay ask inflated by slippage, sells
// receive bid deflated by slippage, and the fee multiplier applies once per
// hop.
func Evaluate(tri models.Triangle, snap models.PriceSnapshot, p EvalParams) Evaluation {
	fee := 1 - p.FeeRate
	buy := func(amount float64, q models.Quote) float64 {
		return amount / (q.Ask * (1 + p.Slippage)) * fee
	}
	sell := func(amount float64, q models.Quote) float64 {
		return amount * q.Bid * (1 - p.Slippage) * fee
	}

	p0, p1, p2 := snap[tri.Pairs[0]], snap[tri.Pairs[1]], snap[tri.Pairs[2]]
	start := p.StartingNotional

	finalForward := sell(buy(buy(start, p0), p1), p2)
	finalReverse := sell(sell(buy(start, p2), p1), p0)

	ev := Evaluation{
		RawForward: (finalForward/start - 1) * 100,
		RawReverse: (finalReverse/start - 1) * 100,
	}

	ev.Forward = ev.RawForward
	ev.Reverse = ev.RawReverse
	switch p.Trend {
	case models.TrendUp:
		ev.Forward += p.TrendBonus
	case models.TrendDown:
		ev.Reverse += p.TrendBonus
	}
	return ev
}
