// Package engine contains the detection core: the per-cycle profit
// evaluation, the gate pipeline, and the fixed-interval loop that drives
// them. The engine holds no state between ticks beyond the market store
// contents and the bounded profit rate history.
package engine

import (
	"context"
	"errors"
	"time"

	"triflow/config"
	"triflow/logger"
	"triflow/market"
	"triflow/models"
)

// Dispatcher receives accepted opportunities. Implementations perform side
// effects (notification, execution) and must never be called while the
// market store lock is held.
type Dispatcher interface {
	Dispatch(ctx context.Context, opp models.Opportunity)
}

// Recorder receives one record per evaluated tick. The backtest harness uses
// it to export every evaluation for offline analysis.
type Recorder interface {
	Record(rec models.TickRecord)
}

// Engine re-evaluates all configured triangles at a fixed interval against
// snapshots of the market store.
type Engine struct {
	cfg        *config.Config
	store      *market.Store
	pipeline   *Pipeline
	dispatcher Dispatcher
	recorder   Recorder
	log        *logger.Log
}

func NewEngine(cfg *config.Config, store *market.Store) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		pipeline: NewPipeline(cfg.Engine),
		log:      logger.GetLogger(),
	}
}

// SetDispatcher wires the side-effect sink for accepted opportunities.
func (e *Engine) SetDispatcher(d Dispatcher) { e.dispatcher = d }

// SetRecorder wires the per-tick export sink.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// Pipeline exposes the decision pipeline, mainly for tests.
func (e *Engine) Pipeline() *Pipeline { return e.pipeline }

// WaitReady blocks until every symbol referenced by the triangle catalog has
// a quote and candle history, or the context is cancelled.
func (e *Engine) WaitReady(ctx context.Context) error {
	log := e.log.WithComponent("engine")
	symbols := models.UniqueSymbols(e.cfg.Triangles)

	log.WithFields(logger.Fields{"symbols": symbols}).Info("waiting for market data")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if e.store.Ready(symbols) {
			log.Info("market data ready")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run executes the evaluation loop until the context is cancelled. A tick in
// progress always finishes; cancellation is only observed between ticks.
func (e *Engine) Run(ctx context.Context) error {
	log := e.log.WithComponent("engine")
	log.WithFields(logger.Fields{
		"tick_interval": e.cfg.Engine.TickInterval.String(),
		"triangles":     len(e.cfg.Triangles),
	}).Info("starting evaluation loop")

	ticker := time.NewTicker(e.cfg.Engine.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("evaluation loop stopped")
			return nil
		case <-ticker.C:
			e.RunOnce(ctx, time.Now().UTC())
		}
	}
}

// RunOnce evaluates every triangle once. The replay harness calls this
// directly after each applied batch instead of running the timed loop.
func (e *Engine) RunOnce(ctx context.Context, now time.Time) {
	for _, tri := range e.cfg.Triangles {
		e.evaluateTriangle(ctx, tri, now)
	}
}

func (e *Engine) evaluateTriangle(ctx context.Context, tri models.Triangle, now time.Time) {
	log := e.log.WithComponent("engine").WithFields(logger.Fields{"triangle": tri.Name})

	snap, err := e.store.Snapshot(tri.Pairs[:])
	if err != nil {
		if errors.Is(err, market.ErrNotReady) {
			log.WithError(err).Debug("triangle not ready, retrying next tick")
			return
		}
		log.WithError(err).Warn("snapshot failed")
		return
	}

	// Trend and volatility are read from the first pair's history, matching
	// the cycle's entry leg.
	candles, ok := e.store.CandleHistory(models.PairSymbol(tri.Pairs[0]))
	if !ok {
		log.Debug("no candle history yet, retrying next tick")
		return
	}

	for pair, quote := range snap {
		log.WithFields(logger.Fields{
			"pair": pair,
			"bid":  quote.Bid,
			"ask":  quote.Ask,
		}).Debug("pair price")
	}

	opp, rec := e.pipeline.Evaluate(tri, snap, candles, now)
	if e.recorder != nil {
		e.recorder.Record(rec)
	}
	if opp == nil || e.dispatcher == nil {
		return
	}

	// Side effects run off the evaluation goroutine so a slow notification
	// endpoint cannot stall the tick loop. The opportunity is passed by
	// value and dispatched exactly once.
	go e.dispatcher.Dispatch(ctx, *opp)
}
