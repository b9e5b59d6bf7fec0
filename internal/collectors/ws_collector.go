// Package collectors implements the two market-data ingestion tasks
// (spec.md §4.5): WSCollector streams Tier-1 candles off a CandleStream,
// RESTPoller drives bounded-concurrency REST fetches for Tiers 2/3. Both
// write into the shared internal/candles buffers and store; neither
// mutates a buffer concurrently with the other for the same symbol,
// since tier membership (and therefore which collector owns a symbol) is
// exclusive at any instant.
package collectors

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/exchangeclient"
	"github.com/rs/zerolog"
)

// Heartbeats tracks freshness/throughput counters the status surface and
// gate funnel read (spec.md §4.5/§6).
type Heartbeats struct {
	mu              sync.RWMutex
	wsLastMsgTime   time.Time
	candleLastTime  map[domain.Timeframe]time.Time
	ticksLast5s     int
	candlesLast5s   int
	wsReconnects    int
}

func newHeartbeats() *Heartbeats {
	return &Heartbeats{candleLastTime: make(map[domain.Timeframe]time.Time)}
}

func (h *Heartbeats) recordTick() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wsLastMsgTime = time.Now()
	h.ticksLast5s++
}

func (h *Heartbeats) recordCandle(tf domain.Timeframe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.candleLastTime[tf] = time.Now()
	h.candlesLast5s++
}

// WSLastAge returns time since the last inbound WS message.
func (h *Heartbeats) WSLastAge() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.wsLastMsgTime.IsZero() {
		return 0
	}
	return time.Since(h.wsLastMsgTime)
}

// Snapshot resets and returns the rolling 5s counters.
func (h *Heartbeats) Snapshot() (ticks, candlesCount, reconnects int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ticks, candlesCount, reconnects = h.ticksLast5s, h.candlesLast5s, h.wsReconnects
	h.ticksLast5s, h.candlesLast5s = 0, 0
	return
}

func (h *Heartbeats) recordReconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wsReconnects++
}

// BufferStore is the subset of CandleBuffer+Store operations the
// collectors need, kept as an interface so tests can fake it cheaply.
type BufferStore interface {
	Buffer(symbol string) *candles.CandleBuffer
	WriteCandle(symbol string, tf domain.Timeframe, source domain.CandleSource, c domain.Candle) error
}

// TierUpdater is the subset of the tier scheduler the collectors report
// candle counts and poll completions to.
type TierUpdater interface {
	UpdateCandleCounts(symbol string, c1m, c5m int)
	RecordPoll(symbol string, c1m, c5m int, now time.Time)
}

// WSCollector subscribes the Tier-1 symbol set on a CandleStream and
// fans incoming candles into the shared buffer/store.
type WSCollector struct {
	stream  exchangeclient.CandleStream
	bufs    BufferStore
	tiers   TierUpdater
	log     zerolog.Logger
	heartbeats *Heartbeats

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWSCollector wires a WSCollector around an already-constructed
// CandleStream.
func NewWSCollector(stream exchangeclient.CandleStream, bufs BufferStore, tiers TierUpdater, log zerolog.Logger) *WSCollector {
	return &WSCollector{
		stream:     stream,
		bufs:       bufs,
		tiers:      tiers,
		log:        log.With().Str("component", "ws_collector").Logger(),
		heartbeats: newHeartbeats(),
		stopChan:   make(chan struct{}),
	}
}

// Heartbeats exposes the collector's freshness counters.
func (c *WSCollector) Heartbeats() *Heartbeats { return c.heartbeats }

// UpdateSymbols forwards to the stream's diffing subscribe logic. The
// coordinator calls it once per universe rebuild with the full WS-tier
// membership.
func (c *WSCollector) UpdateSymbols(symbols []string) error {
	return c.stream.UpdateSymbols(symbols)
}

// Start begins the stream and the fan-in loop that drains it.
func (c *WSCollector) Start(ctx context.Context) error {
	if err := c.stream.Start(ctx); err != nil {
		return err
	}
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *WSCollector) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case sc, ok := <-c.stream.Candles():
			if !ok {
				return
			}
			c.ingest(sc)
		}
	}
}

func (c *WSCollector) ingest(sc exchangeclient.StreamCandle) {
	c.heartbeats.recordTick()

	candle := domain.Candle{
		Timestamp: sc.Candle.Timestamp,
		Open:      sc.Candle.Open,
		High:      sc.Candle.High,
		Low:       sc.Candle.Low,
		Close:     sc.Candle.Close,
		Volume:    sc.Candle.Volume,
	}
	if !candle.Valid() {
		c.log.Warn().Str("symbol", sc.Symbol).Msg("dropping invalid ws candle")
		return
	}

	tf := domain.Timeframe(sc.Timeframe)
	buf := c.bufs.Buffer(sc.Symbol)
	buf.Push(tf, candle)
	c.heartbeats.recordCandle(tf)

	if err := c.bufs.WriteCandle(sc.Symbol, tf, domain.SourceWS, candle); err != nil {
		c.log.Warn().Err(err).Str("symbol", sc.Symbol).Msg("failed to persist ws candle")
	}

	c.tiers.UpdateCandleCounts(sc.Symbol, buf.Len(domain.TF1m), buf.Len(domain.TF5m))
}

// Stop signals the fan-in loop to exit and stops the underlying stream.
func (c *WSCollector) Stop() error {
	close(c.stopChan)
	c.wg.Wait()
	return c.stream.Stop()
}

// ReconnectCount reports the underlying stream's cumulative reconnects.
func (c *WSCollector) ReconnectCount() int { return c.stream.ReconnectCount() }
