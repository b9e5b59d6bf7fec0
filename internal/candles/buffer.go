package candles

import (
	"sync"

	"github.com/aristath/spotengine/internal/domain"
)

// maxBufferLen bounds how many candles a single timeframe buffer retains
// in memory. 1m buffers need enough history for a 20-period EMA plus
// headroom for swing-high lookback; larger timeframes need proportionally
// less. One generous bound covers every timeframe this engine uses.
const maxBufferLen = 500

// timeframeBuffer is a bounded, append-only-at-the-tail deque of candles
// for a single symbol/timeframe pair.
type timeframeBuffer struct {
	candles []domain.Candle
}

func (b *timeframeBuffer) push(c domain.Candle) {
	if n := len(b.candles); n > 0 && !c.Timestamp.After(b.candles[n-1].Timestamp) {
		// Duplicate timestamp: replace the tail instead of appending, so
		// buffers never carry two candles for the same bar. An older
		// (out-of-order) timestamp is dropped.
		if c.Timestamp.Equal(b.candles[n-1].Timestamp) {
			b.candles[n-1] = c
			return
		}
		return
	}
	b.candles = append(b.candles, c)
	if len(b.candles) > maxBufferLen {
		b.candles = b.candles[len(b.candles)-maxBufferLen:]
	}
}

func (b *timeframeBuffer) closes(n int) []float64 {
	cs := lastN(b.candles, n)
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

func (b *timeframeBuffer) highsLowsCloses(n int) (highs, lows, closes []float64) {
	cs := lastN(b.candles, n)
	highs = make([]float64, len(cs))
	lows = make([]float64, len(cs))
	closes = make([]float64, len(cs))
	for i, c := range cs {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}
	return
}

func lastN(cs []domain.Candle, n int) []domain.Candle {
	if n <= 0 || n > len(cs) {
		return cs
	}
	return cs[len(cs)-n:]
}

// CandleBuffer holds the in-memory rolling windows for one symbol across
// every timeframe the engine tracks (1m/5m/1h/1d), and exposes the derived
// indicator queries strategies and features read on every tick. Grounded
// on spec.md §4.3's CandleBuffer contract.
type CandleBuffer struct {
	mu      sync.RWMutex
	symbol  string
	byTF    map[domain.Timeframe]*timeframeBuffer
}

// NewCandleBuffer creates an empty buffer for symbol.
func NewCandleBuffer(symbol string) *CandleBuffer {
	return &CandleBuffer{
		symbol: symbol,
		byTF: map[domain.Timeframe]*timeframeBuffer{
			domain.TF1m: {},
			domain.TF5m: {},
			domain.TF1h: {},
			domain.TF1d: {},
		},
	}
}

// Push appends a closed candle to the named timeframe's window. Candles
// with a timestamp not after the current tail are deduped/replaced rather
// than appended, matching spec.md's "no duplicate bars" invariant.
func (cb *CandleBuffer) Push(tf domain.Timeframe, c domain.Candle) {
	if !c.Valid() {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		buf = &timeframeBuffer{}
		cb.byTF[tf] = buf
	}
	buf.push(c)
}

// Len returns how many candles are currently buffered for tf.
func (cb *CandleBuffer) Len(tf domain.Timeframe) int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	if buf, ok := cb.byTF[tf]; ok {
		return len(buf.candles)
	}
	return 0
}

// Last returns the most recent candle for tf, or false if the buffer is
// empty.
func (cb *CandleBuffer) Last(tf domain.Timeframe) (domain.Candle, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok || len(buf.candles) == 0 {
		return domain.Candle{}, false
	}
	return buf.candles[len(buf.candles)-1], true
}

// EMA returns the n-period exponential moving average of closes on tf.
func (cb *CandleBuffer) EMA(n int, tf domain.Timeframe) float64 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		return 0
	}
	return ema(buf.closes(0), n)
}

// RSI returns the n-period RSI of closes on tf.
func (cb *CandleBuffer) RSI(n int, tf domain.Timeframe) float64 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		return 50
	}
	return rsi(buf.closes(0), n)
}

// ATR returns the n-period Average True Range on tf.
func (cb *CandleBuffer) ATR(n int, tf domain.Timeframe) float64 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		return 0
	}
	highs, lows, closes := buf.highsLowsCloses(0)
	return atr(highs, lows, closes, n)
}

// BBands returns the n-period, k-sigma Bollinger Bands on tf.
func (cb *CandleBuffer) BBands(n int, k float64, tf domain.Timeframe) (upper, middle, lower float64) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		return 0, 0, 0
	}
	return bbands(buf.closes(0), n, k)
}

// VWAP returns the volume-weighted average close over the last n candles
// on tf.
func (cb *CandleBuffer) VWAP(n int, tf domain.Timeframe) float64 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		return 0
	}
	cs := lastN(buf.candles, n)
	closes := make([]float64, len(cs))
	volumes := make([]float64, len(cs))
	for i, c := range cs {
		closes[i], volumes[i] = c.Close, c.Volume
	}
	return vwap(closes, volumes, len(closes))
}

// GreenCount returns how many of the last n candles on tf closed green.
func (cb *CandleBuffer) GreenCount(n int, tf domain.Timeframe) int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		return 0
	}
	count := 0
	for _, c := range lastN(buf.candles, n) {
		if c.Green() {
			count++
		}
	}
	return count
}

// SwingHigh reports whether candle at index idx-from-the-end (0 = most
// recent) is a swing high: strictly higher than each of the two candles
// on either side. Matches spec.md §4.3's "strictly higher than ±2
// neighbors" rule.
func (cb *CandleBuffer) SwingHigh(tf domain.Timeframe, fromEnd int) bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		return false
	}
	n := len(buf.candles)
	idx := n - 1 - fromEnd
	if idx-2 < 0 || idx+2 >= n {
		return false
	}
	mid := buf.candles[idx].High
	for _, off := range []int{-2, -1, 1, 2} {
		if buf.candles[idx+off].High >= mid {
			return false
		}
	}
	return true
}

// Snapshot returns a defensive copy of the buffered candles for tf, oldest
// first, for persistence or debug inspection.
func (cb *CandleBuffer) Snapshot(tf domain.Timeframe) []domain.Candle {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	buf, ok := cb.byTF[tf]
	if !ok {
		return nil
	}
	out := make([]domain.Candle, len(buf.candles))
	copy(out, buf.candles)
	return out
}
