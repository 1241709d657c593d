package exchange

import (
	"testing"

	binance "github.com/adshao/go-binance/v2"

	"triflow/models"
)

func TestParseKlineDerivesBid(t *testing.T) {
	k := &binance.Kline{
		OpenTime: 1700000000000,
		Open:     "100", High: "110", Low: "90", Close: "105",
		Volume: "12.5",
	}
	candle, err := parseKline(k)
	if err != nil {
		t.Fatalf("parse kline: %v", err)
	}
	if candle.Close != 105 {
		t.Fatalf("unexpected close: %v", candle.Close)
	}
	if candle.Bid != 105*models.CandleBidFactor {
		t.Fatalf("derived bid not attached: %v", candle.Bid)
	}
	if candle.OpenTime.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected open time: %v", candle.OpenTime)
	}
}

func TestParseKlineRejectsNonPositivePrices(t *testing.T) {
	cases := []*binance.Kline{
		{Open: "-5", High: "110", Low: "90", Close: "105", Volume: "1"},
		{Open: "100", High: "0", Low: "90", Close: "105", Volume: "1"},
		{Open: "100", High: "110", Low: "90", Close: "-5", Volume: "1"},
	}
	for i, k := range cases {
		if _, err := parseKline(k); err == nil {
			t.Fatalf("case %d: expected error for non-positive price", i)
		}
	}
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("60000.5", "0.25")
	if err != nil {
		t.Fatalf("parse level: %v", err)
	}
	if level.Price != 60000.5 || level.Quantity != 0.25 {
		t.Fatalf("unexpected level: %+v", level)
	}
	if _, err := parseLevel("bad", "1"); err == nil {
		t.Fatalf("expected error for unparsable price")
	}
}
