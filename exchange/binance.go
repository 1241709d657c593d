package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"triflow/config"
	"triflow/logger"
	"triflow/models"
)

// BinanceClient implements Client against the Binance spot API using the
// binance-go client. REST calls share a rate limiter so bootstrap bursts
// stay inside the exchange's request weight budget.
type BinanceClient struct {
	client  *binance.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewBinanceClient(cfg config.BinanceSourceConfig) *BinanceClient {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}
	timeout := cfg.ConnectionPool.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = rps
	}

	log.WithComponent("binance_client").WithFields(logger.Fields{
		"requests_per_second": rps,
		"burst_size":          burst,
		"timeout":             timeout,
	}).Info("binance client initialized")

	return &BinanceClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

func (c *BinanceClient) FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return OrderBook{}, err
	}

	resp, err := c.client.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
	if err != nil {
		return OrderBook{}, fmt.Errorf("fetch order book %s: %w", symbol, err)
	}

	book := OrderBook{Symbol: symbol}
	for _, b := range resp.Bids {
		level, err := parseLevel(b.Price, b.Quantity)
		if err != nil {
			return OrderBook{}, fmt.Errorf("order book %s bid: %w", symbol, err)
		}
		book.Bids = append(book.Bids, level)
	}
	for _, a := range resp.Asks {
		level, err := parseLevel(a.Price, a.Quantity)
		if err != nil {
			return OrderBook{}, fmt.Errorf("order book %s ask: %w", symbol, err)
		}
		book.Asks = append(book.Asks, level)
	}
	return book, nil
}

func (c *BinanceClient) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := c.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := parseKline(k)
		if err != nil {
			c.log.WithComponent("binance_client").WithError(err).WithFields(logger.Fields{
				"symbol": symbol,
			}).Warn("dropping unparsable candle")
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func (c *BinanceClient) PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (PlacedOrder, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return PlacedOrder{}, err
	}

	sideType := binance.SideTypeBuy
	if side == SideSell {
		sideType = binance.SideTypeSell
	}

	resp, err := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(quantity, 'f', 8, 64)).
		Do(ctx)
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("place %s %s order: %w", side, symbol, err)
	}

	executed, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	return PlacedOrder{
		OrderID:  resp.OrderID,
		Symbol:   resp.Symbol,
		Side:     side,
		Quantity: executed,
		Status:   string(resp.Status),
	}, nil
}

func parseLevel(price, quantity string) (PriceLevel, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("price %q: %w", price, err)
	}
	q, err := strconv.ParseFloat(quantity, 64)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("quantity %q: %w", quantity, err)
	}
	return PriceLevel{Price: p, Quantity: q}, nil
}

func parseKline(k *binance.Kline) (models.Candle, error) {
	var candle models.Candle
	var err error

	if candle.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return models.Candle{}, fmt.Errorf("open %q: %w", k.Open, err)
	}
	if candle.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return models.Candle{}, fmt.Errorf("high %q: %w", k.High, err)
	}
	if candle.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return models.Candle{}, fmt.Errorf("low %q: %w", k.Low, err)
	}
	if candle.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return models.Candle{}, fmt.Errorf("close %q: %w", k.Close, err)
	}
	if candle.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return models.Candle{}, fmt.Errorf("volume %q: %w", k.Volume, err)
	}

	if !candle.Valid() {
		return models.Candle{}, fmt.Errorf("non-positive price in kline at %d", k.OpenTime)
	}

	candle.OpenTime = time.UnixMilli(k.OpenTime).UTC()
	candle.Bid = candle.Close * models.CandleBidFactor
	return candle, nil
}
