package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"triflow/config"
	"triflow/models"
)

// recordingSleeper captures backoff delays instead of waiting them out.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) {
	s.delays = append(s.delays, d)
}

func testOpportunity() models.Opportunity {
	return models.Opportunity{
		ID:         "test",
		Triangle:   "BTC-ETH-USDT",
		Direction:  models.DirectionForward,
		ProfitRate: 0.5,
		ProfitUSDT: 3.33,
		Trend:      models.TrendUp,
		Threshold:  0.17,
	}
}

func newTestNotifier(url string) (*Notifier, *recordingSleeper) {
	n := NewNotifier(config.NotifierConfig{
		URL:         url,
		Timeout:     time.Second,
		MaxAttempts: 3,
		Backoff:     time.Second,
	})
	sleeper := &recordingSleeper{}
	n.SetSleeper(sleeper)
	return n, sleeper
}

func TestNotifyRetriesExactlyThreeTimes(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, sleeper := newTestNotifier(srv.URL)

	// Must not panic or propagate anything to the caller.
	n.Notify(context.Background(), testOpportunity())

	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
	if len(sleeper.delays) != 2 {
		t.Fatalf("expected 2 backoff waits between 3 attempts, got %d", len(sleeper.delays))
	}
	for _, d := range sleeper.delays {
		if d != time.Second {
			t.Fatalf("expected fixed 1s backoff, got %v", d)
		}
	}
}

func TestNotifyStopsOnSuccess(t *testing.T) {
	var attempts int
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		got = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, sleeper := newTestNotifier(srv.URL)
	n.Notify(context.Background(), testOpportunity())

	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	if len(sleeper.delays) != 0 {
		t.Fatalf("no backoff expected on success, got %v", sleeper.delays)
	}
	if got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestNotifyRecoversOnLaterAttempt(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, _ := newTestNotifier(srv.URL)
	n.Notify(context.Background(), testOpportunity())

	if attempts != 3 {
		t.Fatalf("expected success on third attempt, got %d attempts", attempts)
	}
}

func TestNotifyWithoutEndpointIsNoOp(t *testing.T) {
	n, sleeper := newTestNotifier("")
	n.Notify(context.Background(), testOpportunity())
	if len(sleeper.delays) != 0 {
		t.Fatalf("unexpected retries with no endpoint configured")
	}
}
