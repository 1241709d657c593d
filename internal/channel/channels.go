package channel

import (
	"context"
	"sync"
	"time"

	"triflow/logger"
	"triflow/models"
)

type Stats struct {
	Sent    int64
	Dropped int64
}

// Channels is the buffered stage between the market data readers and the
// ingestion adapter. Readers never block on a slow consumer: when the buffer
// is full the event is dropped and counted.
type Channels struct {
	Stream chan models.StreamEvent

	stats      Stats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(streamBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Stream: make(chan models.StreamEvent, streamBufferSize),
		log:    log,
	}

	log.WithComponent("stream_channels").WithFields(logger.Fields{
		"stream_buffer_size": streamBufferSize,
	}).Info("stream channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Stream)
	c.log.WithComponent("stream_channels").Info("stream channels closed")
}

// Send delivers an event without blocking. It returns false when the event
// was not delivered, either because the buffer is full or the context is done.
func (c *Channels) Send(ctx context.Context, ev models.StreamEvent) bool {
	select {
	case c.Stream <- ev:
		c.statsMutex.Lock()
		c.stats.Sent++
		c.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.statsMutex.Lock()
		c.stats.Dropped++
		c.statsMutex.Unlock()
		return false
	}
}

func (c *Channels) GetStats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting logs channel statistics every 30 seconds until the
// context is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)

	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				c.logChannelStats()
			}
		}
	}()
}

func (c *Channels) logChannelStats() {
	stats := c.GetStats()

	c.log.WithComponent("stream_channels").WithFields(logger.Fields{
		"events_sent":    stats.Sent,
		"events_dropped": stats.Dropped,
		"stream_len":     len(c.Stream),
		"stream_cap":     cap(c.Stream),
	}).Info("channel statistics")
}
