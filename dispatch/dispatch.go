// Package dispatch performs the side effects of an accepted opportunity:
// notifying the external endpoint and executing the cycle's orders. Both run
// outside any market store lock and neither failure reaches the detection
// loop.
package dispatch

import (
	"context"

	"triflow/logger"
	"triflow/models"
)

// Dispatcher fans an accepted opportunity out to notification and execution.
// The two side effects are independent: a failed notification never blocks
// execution.
type Dispatcher struct {
	notifier  *Notifier
	executor  *Executor
	triangles map[string]models.Triangle
	amount    float64
	log       *logger.Log
}

// NewDispatcher builds a dispatcher. executor may be nil when execution is
// disabled; notification still runs.
func NewDispatcher(notifier *Notifier, executor *Executor, triangles []models.Triangle, amount float64) *Dispatcher {
	byName := make(map[string]models.Triangle, len(triangles))
	for _, tri := range triangles {
		byName[tri.Name] = tri
	}
	return &Dispatcher{
		notifier:  notifier,
		executor:  executor,
		triangles: byName,
		amount:    amount,
		log:       logger.GetLogger(),
	}
}

// Dispatch delivers the opportunity's side effects exactly once.
func (d *Dispatcher) Dispatch(ctx context.Context, opp models.Opportunity) {
	d.notifier.Notify(ctx, opp)

	if d.executor == nil {
		return
	}
	tri, ok := d.triangles[opp.Triangle]
	if !ok {
		d.log.WithComponent("dispatcher").WithFields(logger.Fields{
			"triangle": opp.Triangle,
		}).Error("opportunity references unknown triangle")
		return
	}
	d.executor.Execute(ctx, opp, tri, d.amount)
}
