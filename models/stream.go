package models

import "time"

// EventKind distinguishes the message types the ingestion adapter understands.
type EventKind string

const (
	EventBookTicker EventKind = "book_ticker"
	EventKline      EventKind = "kline"
)

// BookTickerUpdate carries the raw best bid/ask strings from a book ticker
// stream message. Prices stay as wire strings here; the ingestion adapter
// owns parsing and validation so transport code never decides what is usable.
type BookTickerUpdate struct {
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}

// KlineUpdate carries one bar from a kline stream message. Closed is the
// exchange's "this bar is final" marker; in-progress bars are ignored
// downstream.
type KlineUpdate struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

// StreamEvent is the unit passed from a market data reader (live websocket or
// finite replay) to the ingestion adapter. Exactly one of BookTicker/Kline is
// set, matching Kind.
type StreamEvent struct {
	Kind       EventKind
	Symbol     string
	BookTicker *BookTickerUpdate
	Kline      *KlineUpdate
	Received   time.Time
}
