// Package candles implements the append-only per-symbol/timeframe JSONL
// store and the in-memory rolling CandleBuffer with derived indicators
// (spec.md §4.3). Indicator math reuses the teacher's own
// github.com/markcheno/go-talib dependency (internal/... /pkg/formulas in
// the teacher computes EMA/RSI/Bollinger the same way); VWAP and
// swing-high detection have no talib primitive and are hand-rolled.
package candles

import (
	"math"

	"github.com/markcheno/go-talib"
)

// ema returns the last EMA(n) value over closes, falling back to a simple
// mean when there isn't enough history — mirrors the teacher's
// pkg/formulas.CalculateEMA fallback-to-SMA behavior.
func ema(closes []float64, n int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if len(closes) < n {
		return mean(closes)
	}
	vals := talib.Ema(closes, n)
	if last := lastFinite(vals); last != nil {
		return *last
	}
	return mean(closes[len(closes)-n:])
}

// rsi returns the last RSI(n) value, or 50 (neutral) when there isn't
// enough history to compute one.
func rsi(closes []float64, n int) float64 {
	if len(closes) < n+1 {
		return 50
	}
	vals := talib.Rsi(closes, n)
	if last := lastFinite(vals); last != nil {
		return *last
	}
	return 50
}

// atr returns the last Average True Range over n periods using talib's
// Wilder-smoothed implementation.
func atr(highs, lows, closes []float64, n int) float64 {
	if len(closes) < n+1 {
		return 0
	}
	vals := talib.Atr(highs, lows, closes, n)
	if last := lastFinite(vals); last != nil {
		return *last
	}
	return 0
}

// bbands returns the last Bollinger Bands (upper, middle, lower) for
// period n and k standard deviations. MAType 0 selects SMA for the
// middle band, matching the teacher's pkg/formulas/bollinger.go call.
func bbands(closes []float64, n int, k float64) (upper, middle, lower float64) {
	if len(closes) < n {
		mid := mean(closes)
		return mid, mid, mid
	}
	up, mid, lo := talib.BBands(closes, n, k, k, 0)
	u, m, l := lastFinite(up), lastFinite(mid), lastFinite(lo)
	if u == nil || m == nil || l == nil {
		mid := mean(closes)
		return mid, mid, mid
	}
	return *u, *m, *l
}

// vwap computes the volume-weighted average close over the last n candles.
// talib has no VWAP primitive, so this is hand-rolled (spec.md §4.3).
func vwap(closes, volumes []float64, n int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if n > len(closes) {
		n = len(closes)
	}
	closes = closes[len(closes)-n:]
	volumes = volumes[len(volumes)-n:]

	var pv, vol float64
	for i := range closes {
		pv += closes[i] * volumes[i]
		vol += volumes[i]
	}
	if vol == 0 {
		return mean(closes)
	}
	return pv / vol
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// lastFinite returns a pointer to the last non-NaN value in vals, or nil.
func lastFinite(vals []float64) *float64 {
	for i := len(vals) - 1; i >= 0; i-- {
		if !math.IsNaN(vals[i]) && !math.IsInf(vals[i], 0) {
			v := vals[i]
			return &v
		}
	}
	return nil
}
