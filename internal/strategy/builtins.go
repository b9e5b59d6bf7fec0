package strategy

import (
	"sync"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/features"
)

// statefulBase gives strategies that remember something per symbol (a
// prior breakout level, a sweep low) a tiny synchronized map and a
// uniform Reset.
type statefulBase struct {
	mu    sync.Mutex
	state map[string]float64
}

func newStatefulBase() statefulBase { return statefulBase{state: make(map[string]float64)} }

func (b *statefulBase) get(symbol string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.state[symbol]
	return v, ok
}

func (b *statefulBase) set(symbol string, v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[symbol] = v
}

func (b *statefulBase) Reset(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, symbol)
}

func composite(trend, volume, pattern, timing float64) float64 {
	return clampScore(trend + volume + pattern + timing)
}

func stopTP(entry, stopPct, tpPct float64) (stop, tp1, tp2 float64) {
	stop = entry * (1 - stopPct)
	tp1 = entry * (1 + tpPct)
	tp2 = entry * (1 + tpPct*1.5)
	return
}

// --- burst_flag: emits flag_breakout or fast_breakout depending on how
// fast the green-candle run built up (spec.md §4.10 references both a
// generic and "fast" breakout flavor of this strategy's output). ---

type BurstFlagStrategy struct{ statefulBase }

func NewBurstFlagStrategy() *BurstFlagStrategy { return &BurstFlagStrategy{statefulBase: newStatefulBase()} }

func (s *BurstFlagStrategy) ID() domain.SignalType { return domain.SignalFlagBreakout }

func (s *BurstFlagStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	greens := buf.GreenCount(5, domain.TF1m)
	if greens < 4 || feat.VolRatio < 1.5 {
		return Signal{}, false
	}
	trendScore := clampScore(feat.Trend5m * 1000)
	volScore := clampScore((feat.VolRatio - 1) * 20)
	patternScore := clampScore(float64(greens) * 10)
	timingScore := 10.0

	id := domain.SignalFlagBreakout
	if feat.VolRatio >= 3 {
		id = domain.SignalFastBreakout
	}

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.03, 0.05)
	return Signal{
		StrategyID:    id,
		Direction:     "LONG",
		EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore:    trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "green candle run with volume expansion", Reasons: []string{"burst_flag"},
	}, true
}

// --- vwap_reclaim: price was below VWAP and has reclaimed it. ---

type VWAPReclaimStrategy struct{ statefulBase }

func NewVWAPReclaimStrategy() *VWAPReclaimStrategy {
	return &VWAPReclaimStrategy{statefulBase: newStatefulBase()}
}
func (s *VWAPReclaimStrategy) ID() domain.SignalType { return domain.SignalVWAPReclaim }

func (s *VWAPReclaimStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	if feat.VWAPDistance <= 0 || feat.VWAPDistance > 0.01 {
		return Signal{}, false // needs to have *just* reclaimed, not run far above
	}
	trendScore := clampScore(feat.Trend15m * 800)
	volScore := clampScore((feat.VolRatio - 1) * 15)
	patternScore := 20.0
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.025, 0.04)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "reclaimed VWAP from below", Reasons: []string{"vwap_reclaim"},
	}, true
}

// --- mean_reversion: oversold RSI bounce. ---

type MeanReversionStrategy struct{ statefulBase }

func NewMeanReversionStrategy() *MeanReversionStrategy {
	return &MeanReversionStrategy{statefulBase: newStatefulBase()}
}
func (s *MeanReversionStrategy) ID() domain.SignalType { return domain.SignalMeanReversion }

func (s *MeanReversionStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	rsi := buf.RSI(14, domain.TF1m)
	if rsi >= 32 {
		return Signal{}, false
	}
	last, ok := buf.Last(domain.TF1m)
	if !ok || !last.Green() {
		return Signal{}, false // needs the first green candle off the low
	}
	trendScore := clampScore((32 - rsi) * 2)
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := 15.0
	timingScore := 15.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.02, 0.03)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "oversold RSI bounce", Reasons: []string{"mean_reversion"},
	}, true
}

// --- daily_momentum: strong daily trend continuation. ---

type DailyMomentumStrategy struct{ statefulBase }

func NewDailyMomentumStrategy() *DailyMomentumStrategy {
	return &DailyMomentumStrategy{statefulBase: newStatefulBase()}
}
func (s *DailyMomentumStrategy) ID() domain.SignalType { return domain.SignalDailyMomentum }

func (s *DailyMomentumStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	if feat.Trend1h < 0.01 {
		return Signal{}, false
	}
	ema20 := buf.EMA(20, domain.TF1h)
	if ema20 <= 0 || feat.Price < ema20 {
		return Signal{}, false
	}
	trendScore := clampScore(feat.Trend1h * 600)
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := 15.0
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.035, 0.06)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "price above rising 1h EMA", Reasons: []string{"daily_momentum"},
	}, true
}

// --- range_breakout: close above the recent n-candle high. ---

type RangeBreakoutStrategy struct{ statefulBase }

func NewRangeBreakoutStrategy() *RangeBreakoutStrategy {
	return &RangeBreakoutStrategy{statefulBase: newStatefulBase()}
}
func (s *RangeBreakoutStrategy) ID() domain.SignalType { return domain.SignalRangeBreakout }

func (s *RangeBreakoutStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	snap := buf.Snapshot(domain.TF5m)
	if len(snap) < 21 {
		return Signal{}, false
	}
	window := snap[len(snap)-21 : len(snap)-1]
	rangeHigh := window[0].High
	for _, c := range window {
		if c.High > rangeHigh {
			rangeHigh = c.High
		}
	}
	last := snap[len(snap)-1]
	if last.Close <= rangeHigh {
		return Signal{}, false
	}

	trendScore := clampScore((last.Close - rangeHigh) / rangeHigh * 2000)
	volScore := clampScore((feat.VolRatio - 1) * 15)
	patternScore := 20.0
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.03, 0.05)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "closed above 20-bar range high", Reasons: []string{"range_breakout"},
	}, true
}

// --- relative_strength: symbol outperforming BTC's own trend. ---

type RelativeStrengthStrategy struct{ statefulBase }

func NewRelativeStrengthStrategy() *RelativeStrengthStrategy {
	return &RelativeStrengthStrategy{statefulBase: newStatefulBase()}
}
func (s *RelativeStrengthStrategy) ID() domain.SignalType { return domain.SignalRelativeStrength }

func (s *RelativeStrengthStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	edge := feat.Trend1h - ctx.BTCTrend1h
	if edge < 0.02 || feat.Trend1h <= 0 {
		return Signal{}, false
	}
	trendScore := clampScore(edge * 1000)
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := 10.0
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.03, 0.05)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "outperforming BTC trend", Reasons: []string{"relative_strength"},
	}, true
}

// --- support_bounce: reclaim off the lower Bollinger band. ---

type SupportBounceStrategy struct{ statefulBase }

func NewSupportBounceStrategy() *SupportBounceStrategy {
	return &SupportBounceStrategy{statefulBase: newStatefulBase()}
}
func (s *SupportBounceStrategy) ID() domain.SignalType { return domain.SignalSupportBounce }

func (s *SupportBounceStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	_, _, lower := buf.BBands(20, 2, domain.TF1m)
	last, ok := buf.Last(domain.TF1m)
	if !ok || lower <= 0 {
		return Signal{}, false
	}
	if last.Low > lower*1.005 || !last.Green() {
		return Signal{}, false
	}

	trendScore := 10.0
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := 25.0
	timingScore := 15.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.02, 0.035)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "bounced off lower Bollinger band", Reasons: []string{"support_bounce"},
	}, true
}

// --- gap_fill: 1h gap up that has started to fill back toward the prior close. ---

type GapFillStrategy struct{ statefulBase }

func NewGapFillStrategy() *GapFillStrategy { return &GapFillStrategy{statefulBase: newStatefulBase()} }
func (s *GapFillStrategy) ID() domain.SignalType { return domain.SignalGapFill }

func (s *GapFillStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	snap := buf.Snapshot(domain.TF1h)
	if len(snap) < 2 {
		return Signal{}, false
	}
	prev := snap[len(snap)-2]
	last := snap[len(snap)-1]
	gapPct := (last.Open - prev.Close) / prev.Close
	if gapPct < 0.015 {
		return Signal{}, false // only fade/continue meaningful gaps
	}
	// price has pulled back partway into the gap and is turning green again
	if !last.Green() {
		return Signal{}, false
	}

	trendScore := clampScore(gapPct * 1000)
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := 15.0
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.025, 0.04)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "resuming after gap-up pullback", Reasons: []string{"gap_fill"},
	}, true
}

// --- breakout_retest: broke a swing high, pulled back to retest it, holding. ---

type BreakoutRetestStrategy struct{ statefulBase }

func NewBreakoutRetestStrategy() *BreakoutRetestStrategy {
	return &BreakoutRetestStrategy{statefulBase: newStatefulBase()}
}
func (s *BreakoutRetestStrategy) ID() domain.SignalType { return domain.SignalBreakoutRetest }

func (s *BreakoutRetestStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	if !buf.SwingHigh(domain.TF5m, 2) {
		return Signal{}, false
	}
	snap := buf.Snapshot(domain.TF5m)
	if len(snap) < 3 {
		return Signal{}, false
	}
	swing := snap[len(snap)-3]
	last := snap[len(snap)-1]
	withinRetest := last.Low <= swing.High*1.01 && last.Close >= swing.High*0.995
	if !withinRetest || !last.Green() {
		return Signal{}, false
	}

	trendScore := 20.0
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := 25.0
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.025, 0.045)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "retested broken swing high", Reasons: []string{"breakout_retest"},
	}, true
}

// --- correlation_play: tracks BTC's strong uptrend with a lag. ---

type CorrelationPlayStrategy struct{ statefulBase }

func NewCorrelationPlayStrategy() *CorrelationPlayStrategy {
	return &CorrelationPlayStrategy{statefulBase: newStatefulBase()}
}
func (s *CorrelationPlayStrategy) ID() domain.SignalType { return domain.SignalCorrelationPlay }

func (s *CorrelationPlayStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	if !ctx.BTCTrendOK || ctx.BTCTrend1h < 0.015 {
		return Signal{}, false
	}
	if feat.Trend15m <= 0 {
		return Signal{}, false // symbol hasn't started moving with the market yet
	}

	trendScore := clampScore(ctx.BTCTrend1h * 500)
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := 10.0
	timingScore := 15.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.03, 0.05)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "following a strong BTC uptrend", Reasons: []string{"correlation_play"},
	}, true
}

// --- liquidity_sweep: a wick below recent lows ("stop hunt") reclaimed
// in the same or next candle. ---

type LiquiditySweepStrategy struct{ statefulBase }

func NewLiquiditySweepStrategy() *LiquiditySweepStrategy {
	return &LiquiditySweepStrategy{statefulBase: newStatefulBase()}
}
func (s *LiquiditySweepStrategy) ID() domain.SignalType { return domain.SignalLiquiditySweep }

func (s *LiquiditySweepStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	snap := buf.Snapshot(domain.TF1m)
	if len(snap) < 11 {
		return Signal{}, false
	}
	window := snap[len(snap)-11 : len(snap)-1]
	rangeLow := window[0].Low
	for _, c := range window {
		if c.Low < rangeLow {
			rangeLow = c.Low
		}
	}
	last := snap[len(snap)-1]
	sweptBelow := last.Low < rangeLow
	reclaimed := last.Close > rangeLow && last.Green()
	if !sweptBelow || !reclaimed {
		return Signal{}, false
	}

	trendScore := 15.0
	volScore := clampScore((feat.VolRatio - 1) * 15)
	patternScore := 25.0
	timingScore := 15.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.02, 0.035)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "swept liquidity below range low and reclaimed", Reasons: []string{"liquidity_sweep"},
	}, true
}

// --- momentum_1h: simple strong 1h trend continuation, lighter filter
// than daily_momentum so it catches earlier moves. ---

type Momentum1hStrategy struct{ statefulBase }

func NewMomentum1hStrategy() *Momentum1hStrategy {
	return &Momentum1hStrategy{statefulBase: newStatefulBase()}
}
func (s *Momentum1hStrategy) ID() domain.SignalType { return domain.SignalMomentum1h }

func (s *Momentum1hStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	if feat.Trend1h < 0.02 {
		return Signal{}, false
	}
	trendScore := clampScore(feat.Trend1h * 700)
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := 10.0
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.03, 0.05)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "strong 1h momentum", Reasons: []string{"momentum_1h"},
	}, true
}

// --- rsi_momentum: RSI crossing up through the neutral line with trend
// confirmation, distinct from mean_reversion's oversold-bounce setup. ---

type RSIMomentumStrategy struct{ statefulBase }

func NewRSIMomentumStrategy() *RSIMomentumStrategy {
	return &RSIMomentumStrategy{statefulBase: newStatefulBase()}
}
func (s *RSIMomentumStrategy) ID() domain.SignalType { return domain.SignalRSIMomentum }

func (s *RSIMomentumStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	rsi := buf.RSI(14, domain.TF5m)
	if rsi < 52 || rsi > 70 || feat.Trend5m <= 0 {
		return Signal{}, false
	}

	trendScore := clampScore(feat.Trend5m * 1200)
	volScore := clampScore((feat.VolRatio - 1) * 10)
	patternScore := clampScore((rsi - 50) * 1.5)
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.025, 0.04)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "RSI momentum crossing neutral with trend", Reasons: []string{"rsi_momentum"},
	}, true
}

// --- bb_expansion: Bollinger bands widening off a squeeze, price
// breaking the upper band. ---

type BBExpansionStrategy struct{ statefulBase }

func NewBBExpansionStrategy() *BBExpansionStrategy {
	return &BBExpansionStrategy{statefulBase: newStatefulBase()}
}
func (s *BBExpansionStrategy) ID() domain.SignalType { return domain.SignalBBExpansion }

func (s *BBExpansionStrategy) Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool) {
	upper, middle, lower := buf.BBands(20, 2, domain.TF5m)
	last, ok := buf.Last(domain.TF5m)
	if !ok || middle <= 0 {
		return Signal{}, false
	}
	bandWidth := (upper - lower) / middle
	prevWidth, hadPrev := s.get(symbol)
	s.set(symbol, bandWidth)
	if last.Close <= upper {
		return Signal{}, false
	}
	if hadPrev && bandWidth <= prevWidth {
		return Signal{}, false // only fire while bands are actively expanding
	}

	trendScore := clampScore(bandWidth * 300)
	volScore := clampScore((feat.VolRatio - 1) * 15)
	patternScore := 20.0
	timingScore := 10.0

	entry := feat.Price
	stop, tp1, tp2 := stopTP(entry, 0.03, 0.05)
	return Signal{
		Direction: "LONG", EdgeScoreBase: composite(trendScore, volScore, patternScore, timingScore),
		TrendScore: trendScore, VolumeScore: volScore, PatternScore: patternScore, TimingScore: timingScore,
		EntryPrice: entry, StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		Reason: "Bollinger band expansion breakout", Reasons: []string{"bb_expansion"},
	}, true
}

// All returns every built-in strategy in a stable, documented order —
// the order the spec's "canonical order" gate checker does NOT need (the
// strategy selection is a max, not a chain) but that keeps boot wiring
// deterministic.
func All() []Strategy {
	return []Strategy{
		NewBurstFlagStrategy(),
		NewVWAPReclaimStrategy(),
		NewMeanReversionStrategy(),
		NewDailyMomentumStrategy(),
		NewRangeBreakoutStrategy(),
		NewRelativeStrengthStrategy(),
		NewSupportBounceStrategy(),
		NewGapFillStrategy(),
		NewBreakoutRetestStrategy(),
		NewCorrelationPlayStrategy(),
		NewLiquiditySweepStrategy(),
		NewMomentum1hStrategy(),
		NewRSIMomentumStrategy(),
		NewBBExpansionStrategy(),
	}
}
