package backfill

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/features"
	"github.com/aristath/spotengine/internal/reliability"
	"github.com/aristath/spotengine/internal/strategy"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// smokeTestSymbol is a placeholder symbol used only to build the
// synthetic fixture; it never touches real buffers or the registry.
const smokeTestSymbol = "SMOKETEST-USD"

// SmokeTester runs every built-in strategy against a synthetic buffer on
// a schedule, so a strategy that panics or emits a non-finite signal
// field surfaces in logs before it ever runs against live data (spec.md
// §4.15). Grounded on the teacher's internal/work/planner_test.go use of
// synthetic fixtures to exercise planning logic without a live database.
type SmokeTester struct {
	strategies []strategy.Strategy
	throttle   *reliability.ThrottledLogger
	log        zerolog.Logger
}

// NewSmokeTester builds a tester over strategies, logging throttled
// warnings through log.
func NewSmokeTester(strategies []strategy.Strategy, log zerolog.Logger) *SmokeTester {
	base := log.With().Str("component", "strategy_smoketest").Logger()
	return &SmokeTester{
		strategies: strategies,
		throttle:   reliability.NewThrottledLogger(base, time.Hour),
		log:        base,
	}
}

// Run exercises every strategy against a fresh synthetic fixture.
// Strategy panics are recovered per-strategy so one bad implementation
// never aborts the sweep for the rest.
func (st *SmokeTester) Run() {
	buf := syntheticBuffer()
	snap := syntheticSnapshot()
	mctx := strategy.MarketContext{BTCTrend1h: 0.01, BTCTrendOK: true}

	for _, s := range st.strategies {
		st.runOne(s, buf, snap, mctx)
	}
}

// StartCron registers Run on schedule (robfig/cron, default hourly per
// DefaultConfig) and starts it. The returned cron.Cron must be stopped by
// the caller during shutdown.
func (st *SmokeTester) StartCron(schedule string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, st.Run); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (st *SmokeTester) runOne(s strategy.Strategy, buf *candles.CandleBuffer, snap features.Snapshot, mctx strategy.MarketContext) {
	defer func() {
		if r := recover(); r != nil {
			st.throttle.Warn(string(s.ID())+":panic", fmt.Sprintf("strategy %s panicked during smoke test: %v", s.ID(), r))
		}
	}()

	sig, matched := s.Analyze(smokeTestSymbol, buf, snap, mctx)
	if !matched {
		return
	}
	if !finite(sig.EdgeScoreBase) || !finite(sig.EntryPrice) || !finite(sig.StopPrice) ||
		!finite(sig.TP1Price) || !finite(sig.TP2Price) || !finite(sig.RRRatio) {
		st.throttle.Warn(string(s.ID())+":nonfinite", fmt.Sprintf("strategy %s emitted a non-finite signal field during smoke test", s.ID()))
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// syntheticBuffer builds a plausible, mildly-uptrending 1m/5m/1h/1d
// history so pattern-matching strategies have something to key off
// without depending on any real market data.
func syntheticBuffer() *candles.CandleBuffer {
	buf := candles.NewCandleBuffer(smokeTestSymbol)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0

	push := func(tf domain.Timeframe, step time.Duration, n int) {
		t := base
		p := price
		for i := 0; i < n; i++ {
			open := p
			close := p * 1.002
			high := close * 1.001
			low := open * 0.999
			buf.Push(tf, domain.Candle{
				Timestamp: t, Open: open, High: high, Low: low, Close: close,
				Volume: 1000 + float64(i%7)*50,
			})
			p = close
			t = t.Add(step)
		}
	}

	push(domain.TF1m, time.Minute, 60)
	push(domain.TF5m, 5*time.Minute, 60)
	push(domain.TF1h, time.Hour, 48)
	push(domain.TF1d, 24*time.Hour, 30)
	return buf
}

func syntheticSnapshot() features.Snapshot {
	return features.Snapshot{
		Symbol: smokeTestSymbol, Timestamp: time.Now().UTC(),
		Price: 112.5, Trend1h: 0.015, Trend15m: 0.01, Trend5m: 0.005,
		VolRatio: 1.2, VolSpike5m: 1.1, VWAPPct: 0.3, VWAPDistance: 0.003,
		SpreadBps: 5,
	}
}
