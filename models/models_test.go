package models

import "testing"

func TestQuoteValid(t *testing.T) {
	cases := []struct {
		name  string
		quote Quote
		want  bool
	}{
		{"normal", Quote{Bid: 100, Ask: 101}, true},
		{"equal", Quote{Bid: 100, Ask: 100}, true},
		{"crossed", Quote{Bid: 101, Ask: 100}, false},
		{"zero bid", Quote{Bid: 0, Ask: 100}, false},
		{"negative", Quote{Bid: -1, Ask: 1}, false},
	}
	for _, tc := range cases {
		if got := tc.quote.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCandleValid(t *testing.T) {
	cases := []struct {
		name   string
		candle Candle
		want   bool
	}{
		{"normal", Candle{Open: 100, High: 110, Low: 90, Close: 105}, true},
		{"zero open", Candle{Open: 0, High: 110, Low: 90, Close: 105}, false},
		{"negative close", Candle{Open: 100, High: 110, Low: 90, Close: -5}, false},
	}
	for _, tc := range cases {
		if got := tc.candle.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPairSymbol(t *testing.T) {
	if got := PairSymbol("BTC/USDT"); got != "BTCUSDT" {
		t.Fatalf("PairSymbol = %q", got)
	}
	if got := StreamSymbol("ETH/BTC"); got != "ethbtc" {
		t.Fatalf("StreamSymbol = %q", got)
	}
}

func TestUniqueSymbols(t *testing.T) {
	triangles := []Triangle{
		{Name: "BTC-ETH-USDT", Pairs: [3]string{"BTC/USDT", "ETH/BTC", "ETH/USDT"}},
		{Name: "BNB-BTC-USDT", Pairs: [3]string{"BNB/BTC", "BTC/USDT", "BNB/USDT"}},
	}
	got := UniqueSymbols(triangles)
	if len(got) != 5 {
		t.Fatalf("expected 5 unique symbols, got %d: %v", len(got), got)
	}
	seen := make(map[string]bool)
	for _, s := range got {
		if seen[s] {
			t.Fatalf("duplicate symbol %s", s)
		}
		seen[s] = true
	}
}
