package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"triflow/config"
	"triflow/logger"
	"triflow/models"
)

// Sleeper abstracts the retry backoff delay so tests run without wall-clock
// waits.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// notifyPayload is the wire shape expected by the notification endpoint.
type notifyPayload struct {
	Triangle   string  `json:"triangle"`
	Direction  string  `json:"direction"`
	ProfitRate float64 `json:"profit_rate"`
	ProfitUSDT float64 `json:"profit_usdt"`
	Volatility float64 `json:"volatility"`
	Slippage   float64 `json:"slippage"`
	Trend      string  `json:"trend"`
	Threshold  float64 `json:"threshold"`
}

// Notifier posts accepted opportunities to an external HTTP endpoint with a
// bounded fixed-backoff retry. Delivery failure is logged, never propagated:
// a dead endpoint must not disturb detection.
type Notifier struct {
	url         string
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	sleeper     Sleeper
	log         *logger.Log
}

func NewNotifier(cfg config.NotifierConfig) *Notifier {
	return &Notifier{
		url:         cfg.URL,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleeper:     realSleeper{},
		log:         logger.GetLogger(),
	}
}

// SetSleeper replaces the backoff delay implementation.
func (n *Notifier) SetSleeper(s Sleeper) { n.sleeper = s }

// Notify delivers the opportunity, retrying up to the configured attempt
// count with a fixed backoff between attempts.
func (n *Notifier) Notify(ctx context.Context, opp models.Opportunity) {
	log := n.log.WithComponent("notifier").WithFields(logger.Fields{
		"triangle":  opp.Triangle,
		"direction": string(opp.Direction),
	})

	if n.url == "" {
		log.Debug("no notification endpoint configured")
		return
	}

	body, err := json.Marshal(notifyPayload{
		Triangle:   opp.Triangle,
		Direction:  string(opp.Direction),
		ProfitRate: opp.ProfitRate,
		ProfitUSDT: opp.ProfitUSDT,
		Volatility: opp.Volatility,
		Slippage:   opp.Slippage,
		Trend:      string(opp.Trend),
		Threshold:  opp.Threshold,
	})
	if err != nil {
		log.WithError(err).Error("failed to marshal notification payload")
		return
	}

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		err := n.post(ctx, body)
		if err == nil {
			log.WithFields(logger.Fields{"attempt": attempt}).Info("notification delivered")
			return
		}
		log.WithError(err).WithFields(logger.Fields{
			"attempt":      attempt,
			"max_attempts": n.maxAttempts,
		}).Warn("notification attempt failed")

		if attempt < n.maxAttempts {
			n.sleeper.Sleep(ctx, n.backoff)
			if ctx.Err() != nil {
				return
			}
		}
	}
	log.Error("notification abandoned after exhausting retries")
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
