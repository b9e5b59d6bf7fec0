// Package features derives the per-symbol feature vector the strategy
// orchestrator reads every tick (spec.md §4.7). Every value is coerced
// through finite_float so strategies never observe NaN/Inf.
package features

import (
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
)

// StalenessThreshold is how old a Snapshot may be before a tick must
// skip the symbol (spec.md §4.7).
const StalenessThreshold = 120 * time.Second

// Snapshot is the required feature dict, plus its own timestamp for
// staleness checks.
type Snapshot struct {
	Symbol      string
	Timestamp   time.Time
	Price       float64
	Trend1h     float64
	Trend15m    float64
	Trend5m     float64
	VolRatio    float64
	VolSpike5m  float64
	VWAPPct     float64
	VWAPDistance float64
	SpreadBps   float64
}

// Stale reports whether this snapshot is too old to trade on at now.
func (s Snapshot) Stale(now time.Time) bool {
	return now.Sub(s.Timestamp) > StalenessThreshold
}

// Engine computes Snapshots from a symbol's CandleBuffer.
type Engine struct{}

// New creates a feature Engine.
func New() *Engine { return &Engine{} }

// Compute derives the full feature vector for symbol at now, given its
// buffer and the current best bid/ask spread in basis points (spread is
// an external input — the buffer has no order-book depth).
func (e *Engine) Compute(symbol string, buf *candles.CandleBuffer, spreadBps float64, now time.Time) Snapshot {
	last1m, ok := buf.Last(domain.TF1m)
	price := 0.0
	if ok {
		price = last1m.Close
	}

	trend1h := trendPct(buf, domain.TF1h, 1)
	trend15m := trendPct(buf, domain.TF5m, 3)
	trend5m := trendPct(buf, domain.TF1m, 5)

	vwap5m := buf.VWAP(20, domain.TF5m)
	vwapPct := 0.0
	vwapDistance := 0.0
	if vwap5m > 0 && price > 0 {
		vwapPct = (price - vwap5m) / vwap5m * 100
		vwapDistance = (price - vwap5m) / vwap5m
	}

	volRatio := volumeRatio(buf, domain.TF1m, 5, 20)
	volSpike5m := volumeRatio(buf, domain.TF5m, 1, 20)

	return Snapshot{
		Symbol:       symbol,
		Timestamp:    now,
		Price:        domain.FiniteFloat(price),
		Trend1h:      domain.FiniteFloat(trend1h),
		Trend15m:     domain.FiniteFloat(trend15m),
		Trend5m:      domain.FiniteFloat(trend5m),
		VolRatio:     domain.FiniteFloat(volRatio),
		VolSpike5m:   domain.FiniteFloat(volSpike5m),
		VWAPPct:      domain.FiniteFloat(vwapPct),
		VWAPDistance: domain.FiniteFloat(vwapDistance),
		SpreadBps:    domain.FiniteFloat(spreadBps),
	}
}

// trendPct computes the percent change in close over the last n candles
// of tf, as a fraction (0.01 == 1%).
func trendPct(buf *candles.CandleBuffer, tf domain.Timeframe, n int) float64 {
	snap := buf.Snapshot(tf)
	if len(snap) < n+1 {
		return 0
	}
	start := snap[len(snap)-1-n].Close
	end := snap[len(snap)-1].Close
	if start == 0 {
		return 0
	}
	return (end - start) / start
}

// volumeRatio compares the mean volume of the most recent recentN
// candles against the mean of the preceding baselineN, on timeframe tf.
func volumeRatio(buf *candles.CandleBuffer, tf domain.Timeframe, recentN, baselineN int) float64 {
	snap := buf.Snapshot(tf)
	if len(snap) < recentN+baselineN {
		return 1
	}
	recent := snap[len(snap)-recentN:]
	baseline := snap[len(snap)-recentN-baselineN : len(snap)-recentN]

	recentMean := meanVolume(recent)
	baselineMean := meanVolume(baseline)
	if baselineMean == 0 {
		return 1
	}
	return recentMean / baselineMean
}

func meanVolume(cs []domain.Candle) float64 {
	if len(cs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cs {
		sum += c.Volume
	}
	return sum / float64(len(cs))
}
