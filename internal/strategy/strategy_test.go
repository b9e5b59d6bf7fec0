package strategy

import (
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/features"
	"github.com/stretchr/testify/assert"
)

type stubStrategy struct {
	id  domain.SignalType
	sig Signal
	ok  bool
}

func (s stubStrategy) ID() domain.SignalType { return s.id }
func (s stubStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	return s.sig, s.ok
}
func (s stubStrategy) Reset(symbol string) {}

func TestOrchestrator_ConfluenceBoostsBestSignal(t *testing.T) {
	a := stubStrategy{id: "A", sig: Signal{EdgeScoreBase: 70}, ok: true}
	b := stubStrategy{id: "B", sig: Signal{EdgeScoreBase: 62}, ok: true}
	orch := NewOrchestrator([]Strategy{a, b}, 15)

	buf := candles.NewCandleBuffer("BTC-USD")
	now := time.Now()
	sig, ok := orch.Select("BTC-USD", buf, features.Snapshot{}, MarketContext{}, now)

	assert.True(t, ok)
	assert.Equal(t, domain.SignalType("A"), sig.StrategyID)
	assert.Equal(t, 85.0, sig.EdgeScoreBase)
	assert.Equal(t, 2, sig.ConfluenceCount)
	assert.Contains(t, sig.Reasons, "confluence_2")
}

func TestOrchestrator_SoloSignalNotBoosted(t *testing.T) {
	a := stubStrategy{id: "A", sig: Signal{EdgeScoreBase: 70}, ok: true}
	b := stubStrategy{id: "B", sig: Signal{}, ok: false}
	orch := NewOrchestrator([]Strategy{a, b}, 15)

	buf := candles.NewCandleBuffer("BTC-USD")
	sig, ok := orch.Select("BTC-USD", buf, features.Snapshot{}, MarketContext{}, time.Now())

	assert.True(t, ok)
	assert.Equal(t, 70.0, sig.EdgeScoreBase)
	assert.Equal(t, 1, sig.ConfluenceCount)
	assert.Contains(t, sig.Reasons, "solo_signal")
}

func TestOrchestrator_NoSignalsReturnsFalse(t *testing.T) {
	a := stubStrategy{id: "A", ok: false}
	orch := NewOrchestrator([]Strategy{a}, 15)
	buf := candles.NewCandleBuffer("BTC-USD")
	_, ok := orch.Select("BTC-USD", buf, features.Snapshot{}, MarketContext{}, time.Now())
	assert.False(t, ok)
}

func TestOrchestrator_ConfluenceCapsAtHundred(t *testing.T) {
	a := stubStrategy{id: "A", sig: Signal{EdgeScoreBase: 95}, ok: true}
	b := stubStrategy{id: "B", sig: Signal{EdgeScoreBase: 90}, ok: true}
	orch := NewOrchestrator([]Strategy{a, b}, 15)
	buf := candles.NewCandleBuffer("BTC-USD")
	sig, _ := orch.Select("BTC-USD", buf, features.Snapshot{}, MarketContext{}, time.Now())
	assert.Equal(t, 100.0, sig.EdgeScoreBase)
}

func TestOrchestrator_ResetAllDelegatesToEachStrategy(t *testing.T) {
	bf := NewBurstFlagStrategy()
	bf.set("BTC-USD", 1)
	orch := NewOrchestrator([]Strategy{bf}, 15)
	orch.ResetAll("BTC-USD")
	_, ok := bf.get("BTC-USD")
	assert.False(t, ok)
}

func seedGreenRun(buf *candles.CandleBuffer, tf domain.Timeframe, n int, volSpike bool) {
	base := time.Now().UTC().Add(-time.Duration(n+25) * domain.TimeframeDuration(tf))
	for i := 0; i < 25; i++ {
		ts := base.Add(time.Duration(i) * domain.TimeframeDuration(tf))
		buf.Push(tf, domain.Candle{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100, Volume: 10})
	}
	start := base.Add(time.Duration(25) * domain.TimeframeDuration(tf))
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * domain.TimeframeDuration(tf))
		vol := 10.0
		if volSpike {
			vol = 40
		}
		price := 100 + float64(i+1)
		buf.Push(tf, domain.Candle{Timestamp: ts, Open: price - 1, High: price + 1, Low: price - 2, Close: price, Volume: vol})
	}
}

func TestBurstFlagStrategy_FiresOnGreenRunWithVolume(t *testing.T) {
	buf := candles.NewCandleBuffer("BTC-USD")
	seedGreenRun(buf, domain.TF1m, 5, true)

	feat := features.Snapshot{Price: 110, Trend5m: 0.05, VolRatio: 3.5}
	strat := NewBurstFlagStrategy()
	sig, ok := strat.Analyze("BTC-USD", buf, feat, MarketContext{})

	assert.True(t, ok)
	assert.Equal(t, domain.SignalFastBreakout, sig.StrategyID)
	assert.Equal(t, "LONG", sig.Direction)
	assert.Greater(t, sig.EdgeScoreBase, 0.0)
}

func TestBurstFlagStrategy_NoSignalWithoutVolume(t *testing.T) {
	buf := candles.NewCandleBuffer("BTC-USD")
	seedGreenRun(buf, domain.TF1m, 5, false)

	feat := features.Snapshot{Price: 110, Trend5m: 0.05, VolRatio: 1.0}
	strat := NewBurstFlagStrategy()
	_, ok := strat.Analyze("BTC-USD", buf, feat, MarketContext{})
	assert.False(t, ok)
}

func TestMeanReversionStrategy_RequiresOversoldAndGreenCandle(t *testing.T) {
	buf := candles.NewCandleBuffer("BTC-USD")
	base := time.Now().UTC().Add(-20 * time.Minute)
	for i := 0; i < 19; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		price := 100 - float64(i)
		buf.Push(domain.TF1m, domain.Candle{Timestamp: ts, Open: price + 1, High: price + 1, Low: price - 1, Close: price, Volume: 10})
	}
	last := base.Add(19 * time.Minute)
	buf.Push(domain.TF1m, domain.Candle{Timestamp: last, Open: 80, High: 83, Low: 79, Close: 83, Volume: 30})

	strat := NewMeanReversionStrategy()
	feat := features.Snapshot{Price: 83, VolRatio: 2}
	sig, ok := strat.Analyze("BTC-USD", buf, feat, MarketContext{})
	assert.True(t, ok)
	assert.Equal(t, "LONG", sig.Direction)
}

func TestRelativeStrengthStrategy_RequiresOutperformance(t *testing.T) {
	strat := NewRelativeStrengthStrategy()
	buf := candles.NewCandleBuffer("BTC-USD")

	feat := features.Snapshot{Price: 100, Trend1h: 0.04}
	_, ok := strat.Analyze("ETH-USD", buf, feat, MarketContext{BTCTrend1h: 0.035})
	assert.False(t, ok, "edge over BTC too small")

	sig, ok := strat.Analyze("ETH-USD", buf, feat, MarketContext{BTCTrend1h: 0.01})
	assert.True(t, ok)
	assert.Equal(t, "LONG", sig.Direction)
	_ = sig
}

func TestGapFillStrategy_RequiresMeaningfulGapAndGreenCandle(t *testing.T) {
	buf := candles.NewCandleBuffer("BTC-USD")
	now := time.Now().UTC()
	buf.Push(domain.TF1h, domain.Candle{Timestamp: now.Add(-2 * time.Hour), Open: 95, High: 96, Low: 94, Close: 100})
	buf.Push(domain.TF1h, domain.Candle{Timestamp: now.Add(-1 * time.Hour), Open: 103, High: 106, Low: 102, Close: 105})

	strat := NewGapFillStrategy()
	feat := features.Snapshot{Price: 105, VolRatio: 1.2}
	sig, ok := strat.Analyze("BTC-USD", buf, feat, MarketContext{})
	assert.True(t, ok)
	assert.Equal(t, "LONG", sig.Direction)
}

func TestBBExpansionStrategy_RequiresWideningBandsAboveUpper(t *testing.T) {
	buf := candles.NewCandleBuffer("BTC-USD")
	base := time.Now().UTC().Add(-25 * 5 * time.Minute)
	for i := 0; i < 24; i++ {
		ts := base.Add(time.Duration(i) * 5 * time.Minute)
		buf.Push(domain.TF5m, domain.Candle{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100, Volume: 10})
	}
	strat := NewBBExpansionStrategy()
	feat := features.Snapshot{Price: 100, VolRatio: 1}

	// first call only seeds prior band width; bands are flat so price
	// never closes above the upper band yet
	_, ok := strat.Analyze("BTC-USD", buf, feat, MarketContext{})
	assert.False(t, ok)

	last := base.Add(24 * 5 * time.Minute)
	buf.Push(domain.TF5m, domain.Candle{Timestamp: last, Open: 100, High: 120, Low: 99, Close: 118, Volume: 50})
	feat2 := features.Snapshot{Price: 118, VolRatio: 4}
	sig, ok := strat.Analyze("BTC-USD", buf, feat2, MarketContext{})
	assert.True(t, ok)
	assert.Equal(t, "LONG", sig.Direction)
}

func TestAll_ReturnsFourteenStrategiesWithUniqueIDs(t *testing.T) {
	all := All()
	assert.Len(t, all, 14)
	seen := make(map[domain.SignalType]bool)
	for _, s := range all {
		assert.False(t, seen[s.ID()], "duplicate strategy id %s", s.ID())
		seen[s.ID()] = true
	}
}
