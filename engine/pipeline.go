package engine

import (
	"time"

	"github.com/google/uuid"

	"triflow/config"
	"triflow/logger"
	"triflow/models"
	"triflow/signal"
)

// Pipeline applies the decision gates to one triangle evaluation. Gates run
// in a fixed order and any failure short-circuits to "skip, no action"; only
// a full pass produces an opportunity.
type Pipeline struct {
	cfg     config.EngineConfig
	history *ProfitHistory
	log     *logger.Log
}

func NewPipeline(cfg config.EngineConfig) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		history: NewProfitHistory(cfg.HistorySize),
		log:     logger.GetLogger(),
	}
}

// History exposes the profit rate history, mainly for tests and export.
func (p *Pipeline) History() *ProfitHistory {
	return p.history
}

// Evaluate runs the gates for one triangle against one snapshot. The
// returned opportunity is nil when any gate rejects; the record describes
// the evaluation either way.
func (p *Pipeline) Evaluate(tri models.Triangle, snap models.PriceSnapshot, candles []models.Candle, at time.Time) (*models.Opportunity, models.TickRecord) {
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"triangle": tri.Name})

	rec := models.TickRecord{
		Triangle:    tri.Name,
		EvaluatedAt: at,
		Snapshot:    snap,
	}

	volatility := signal.Volatility(candles, len(candles)-1)
	rec.Volatility = volatility
	if volatility > p.cfg.VolatilityGate {
		rec.Skip = models.SkipVolatility
		log.WithFields(logger.Fields{"volatility": volatility}).Info("volatility too high, skipping")
		return nil, rec
	}

	trend := signal.Trend(candles, len(candles)-1)
	threshold := signal.DynamicThreshold(p.history.Recent(), volatility)
	rec.Trend = trend
	rec.Threshold = threshold

	slippage := signal.Slippage(p.cfg.StartingNotional, volatility, p.cfg.SlippageCeiling)
	rec.Slippage = slippage
	if slippage > p.cfg.SlippageTolerance {
		rec.Skip = models.SkipSlippage
		log.WithFields(logger.Fields{"slippage": slippage}).Info("slippage too high, skipping")
		return nil, rec
	}

	ev := Evaluate(tri, snap, EvalParams{
		StartingNotional: p.cfg.StartingNotional,
		FeeRate:          p.cfg.FeeRate,
		Slippage:         slippage,
		Trend:            trend,
		TrendBonus:       p.cfg.TrendBonus,
	})
	rec.ProfitForward = ev.Forward
	rec.ProfitReverse = ev.Reverse
	rec.RawForward = ev.RawForward
	rec.RawReverse = ev.RawReverse

	log.WithFields(logger.Fields{
		"profit_forward": ev.Forward,
		"profit_reverse": ev.Reverse,
		"trend":          string(trend),
		"threshold":      threshold,
	}).Debug("cycle evaluated")

	// Every evaluation feeds the adaptive threshold, except rates the sanity
	// and non-negative gates would reject: those are data artifacts and must
	// not drift the threshold. The raw rate is used so the trend bonus never
	// feeds back into gating.
	raw := ev.RawSelected()
	if raw > 0 && raw <= p.cfg.AnomalyCeiling {
		p.history.Append(raw)
	}

	trendMatched := (trend == models.TrendUp && ev.Forward > threshold) ||
		(trend == models.TrendDown && ev.Reverse > threshold)
	if !trendMatched {
		rec.Skip = models.SkipBelowTarget
		return nil, rec
	}

	direction, selected := ev.Selected()
	rec.Direction = direction
	rec.SelectedRate = selected

	if selected > p.cfg.AnomalyCeiling {
		rec.Skip = models.SkipAnomaly
		log.WithFields(logger.Fields{"profit_rate": selected}).Debug("anomalous rate, skipping")
		return nil, rec
	}
	if selected <= 0 {
		rec.Skip = models.SkipNonPositive
		log.WithFields(logger.Fields{"profit_rate": selected}).Warn("non-positive rate selected, skipping")
		return nil, rec
	}

	profitUSDT := p.cfg.StartingNotional * selected / 100
	opp := &models.Opportunity{
		ID:         uuid.New().String(),
		Triangle:   tri.Name,
		Direction:  direction,
		ProfitRate: selected,
		ProfitUSDT: profitUSDT,
		Volatility: volatility,
		Slippage:   slippage,
		Trend:      trend,
		Threshold:  threshold,
		Snapshot:   snap,
		DetectedAt: at,
	}
	rec.Accepted = true

	log.WithFields(logger.Fields{
		"direction":   string(direction),
		"profit_rate": selected,
		"profit_usdt": profitUSDT,
		"volatility":  volatility,
		"slippage":    slippage,
		"trend":       string(trend),
		"threshold":   threshold,
	}).Info("opportunity detected")

	return opp, rec
}
