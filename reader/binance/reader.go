// Package binance streams live market data from the Binance combined
// websocket endpoint and seeds the market store over REST before the stream
// warms up.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appconfig "triflow/config"
	"triflow/internal/channel"
	"triflow/logger"
	"triflow/models"
)

// Reader subscribes to the combined bookTicker and kline streams for the
// configured symbols and forwards parsed events into the stream channel.
// It connects directly to the official websocket endpoint; if the connection
// drops it is re-established until the context is cancelled.
type Reader struct {
	config   *appconfig.Config
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
	symbols  []string
}

func NewReader(cfg *appconfig.Config, ch *channel.Channels, symbols []string) *Reader {
	return &Reader{
		config:   cfg,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		symbols:  symbols,
	}
}

// Start opens the combined stream for all configured symbols.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("binance reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{"operation": "start"})

	if len(r.symbols) == 0 {
		log.Warn("no symbols configured")
		return fmt.Errorf("no symbols configured")
	}

	log.WithFields(logger.Fields{
		"symbols":  r.symbols,
		"ws_url":   r.config.Source.Binance.WsURL,
		"interval": r.config.Source.Binance.KlineInterval,
	}).Info("starting binance stream reader")

	r.wg.Add(1)
	go r.stream()

	log.Info("binance stream reader started successfully")
	return nil
}

// Stop terminates the stream and waits for the worker to finish.
func (r *Reader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("binance_reader").Info("stopping binance stream reader")
	r.wg.Wait()
	r.log.WithComponent("binance_reader").Info("binance stream reader stopped")
}

// streamURL builds the combined stream URL covering bookTicker and kline
// streams for every symbol.
func (r *Reader) streamURL() (string, error) {
	base, err := url.Parse(r.config.Source.Binance.WsURL)
	if err != nil {
		return "", fmt.Errorf("invalid ws url: %w", err)
	}

	streams := make([]string, 0, len(r.symbols)*2)
	for _, symbol := range r.symbols {
		s := strings.ToLower(symbol)
		streams = append(streams, s+"@bookTicker")
		streams = append(streams, fmt.Sprintf("%s@kline_%s", s, r.config.Source.Binance.KlineInterval))
	}

	q := base.Query()
	q.Set("streams", strings.Join(streams, "/"))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// stream handles websocket lifecycle, reconnection and forwarding of events.
func (r *Reader) stream() {
	defer r.wg.Done()
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{"worker": "combined_stream"})

	wsURL, err := r.streamURL()
	if err != nil {
		log.WithError(err).Error("cannot build stream url")
		return
	}

	for {
		if r.ctx.Err() != nil {
			return
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.Dial(wsURL, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect websocket, retrying")
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-r.ctx.Done():
				return
			}
		}
		log.Info("websocket connection established")

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				conn.Close()
				if r.ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("websocket read error, reconnecting")
				break
			}
			r.processMessage(msg)
		}

		time.Sleep(time.Second)
	}
}

// combinedMessage is the wrapper the combined endpoint puts around every
// payload.
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type bookTickerPayload struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

type klinePayload struct {
	EventType string             `json:"e"`
	EventTime int64              `json:"E"`
	Symbol    string             `json:"s"`
	Kline     models.KlineUpdate `json:"k"`
}

func (r *Reader) processMessage(msg []byte) {
	log := r.log.WithComponent("binance_reader")

	ev, err := ParseMessage(msg)
	if err != nil {
		log.WithError(err).Debug("dropping unparsable stream message")
		return
	}
	if ev == nil {
		// Subscription acks and other non-data frames.
		return
	}

	if !r.channels.Send(r.ctx, *ev) && r.ctx.Err() == nil {
		log.WithFields(logger.Fields{"symbol": ev.Symbol}).Warn("stream channel full, dropping message")
	}
}

// ParseMessage converts one combined-stream frame into a StreamEvent. A nil
// event with nil error means the frame carried no market data.
func ParseMessage(msg []byte) (*models.StreamEvent, error) {
	var wrapper combinedMessage
	if err := json.Unmarshal(msg, &wrapper); err != nil {
		return nil, fmt.Errorf("decode stream wrapper: %w", err)
	}
	if wrapper.Stream == "" || len(wrapper.Data) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	switch {
	case strings.HasSuffix(wrapper.Stream, "@bookTicker"):
		var payload bookTickerPayload
		if err := json.Unmarshal(wrapper.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode book ticker: %w", err)
		}
		if payload.Symbol == "" {
			return nil, fmt.Errorf("book ticker without symbol")
		}
		return &models.StreamEvent{
			Kind:       models.EventBookTicker,
			Symbol:     payload.Symbol,
			BookTicker: &models.BookTickerUpdate{BidPrice: payload.BidPrice, AskPrice: payload.AskPrice},
			Received:   now,
		}, nil

	case strings.Contains(wrapper.Stream, "@kline"):
		var payload klinePayload
		if err := json.Unmarshal(wrapper.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode kline: %w", err)
		}
		if payload.Symbol == "" {
			return nil, fmt.Errorf("kline without symbol")
		}
		kline := payload.Kline
		return &models.StreamEvent{
			Kind:     models.EventKline,
			Symbol:   payload.Symbol,
			Kline:    &kline,
			Received: now,
		}, nil
	}

	return nil, nil
}
