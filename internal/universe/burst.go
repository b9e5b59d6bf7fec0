package universe

import (
	"sort"
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// burstLookback is how many 5m candles feed the rolling-median baseline
// a burst is measured against (spec.md GLOSSARY: "contemporaneous volume
// and range spikes above rolling medians on 5m candles").
const burstLookback = 48 // 4 hours of 5m candles

// ComputeBurstMetrics derives the volume/range spike ratios, 15m trend,
// and VWAP distance for symbol from its buffered 5m candles.
func ComputeBurstMetrics(symbol string, buf *candles.CandleBuffer, now time.Time) BurstMetrics {
	snap := buf.Snapshot(domain.TF5m)
	if len(snap) < 3 {
		return BurstMetrics{Symbol: symbol, ComputedAt: now}
	}

	volumes := make([]float64, len(snap))
	ranges := make([]float64, len(snap))
	for i, c := range snap {
		volumes[i] = c.Volume
		ranges[i] = c.High - c.Low
	}

	lookback := burstLookback
	if lookback > len(snap)-1 {
		lookback = len(snap) - 1
	}
	baseVolumes := volumes[len(volumes)-1-lookback : len(volumes)-1]
	baseRanges := ranges[len(ranges)-1-lookback : len(ranges)-1]

	medianVol := medianOrZero(baseVolumes)
	medianRange := medianOrZero(baseRanges)

	last := snap[len(snap)-1]
	volumeSpike := safeRatio(last.Volume, medianVol)
	rangeSpike := safeRatio(last.High-last.Low, medianRange)

	trend15m := trendOverLastN(snap, 3) // 3 x 5m = 15m
	vwap := buf.VWAP(20, domain.TF5m)
	vwapDistance := 0.0
	if vwap > 0 {
		vwapDistance = (last.Close - vwap) / vwap
	}

	return BurstMetrics{
		Symbol:           symbol,
		VolumeSpikeRatio: volumeSpike,
		RangeSpikeRatio:  rangeSpike,
		Trend15m:         trend15m,
		VWAPDistance:     vwapDistance,
		ComputedAt:       now,
	}
}

func medianOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func safeRatio(v, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return v / base
}

func trendOverLastN(candles []domain.Candle, n int) float64 {
	if len(candles) < n+1 {
		return 0
	}
	start := candles[len(candles)-1-n].Close
	end := candles[len(candles)-1].Close
	if start == 0 {
		return 0
	}
	return (end - start) / start
}
