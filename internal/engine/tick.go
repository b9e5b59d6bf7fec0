package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/gates"
	"github.com/aristath/spotengine/internal/sizing"
	"github.com/aristath/spotengine/internal/strategy"
)

// runTickTask is the ~1Hz feature/strategy tick loop (spec.md §5 task
// 4): for every symbol the tier scheduler currently considers warm, run
// feature-extract -> strategy-select -> gate-check -> plan -> execute
// to completion before moving to the next symbol, preserving the
// per-symbol ordering guarantee by construction (one goroutine, no
// concurrent dispatch).
func (c *Coordinator) runTickTask(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.tickAll(ctx, now)
		}
	}
}

func (c *Coordinator) tickAll(ctx context.Context, now time.Time) {
	btcCtx := c.marketContext(now)
	for _, symbol := range c.deps.Buffers.Symbols() {
		if c.stopped() {
			return
		}
		if !c.deps.Tiering.IsSymbolWarm(symbol) {
			continue
		}
		c.tickOne(ctx, symbol, btcCtx, now)
		atomic.AddInt64(&c.counters.ticksProcessed, 1)
	}
}

// marketContext derives the BTC-USD trend context every strategy
// instance can consult (spec.md §4.8's cross-symbol MarketContext).
func (c *Coordinator) marketContext(now time.Time) strategy.MarketContext {
	const btcSymbol = "BTC-USD"
	buf := c.deps.Buffers.Buffer(btcSymbol)
	feat := c.deps.Features.Compute(btcSymbol, buf, 0, now)
	return strategy.MarketContext{
		BTCTrend1h: feat.Trend1h,
		BTCTrendOK: feat.Trend1h > -0.02,
	}
}

func (c *Coordinator) tickOne(ctx context.Context, symbol string, mctx strategy.MarketContext, now time.Time) {
	buf := c.deps.Buffers.Buffer(symbol)
	spreadBps := c.currentSpreadBps(symbol)
	feat := c.deps.Features.Compute(symbol, buf, spreadBps, now)
	if feat.Stale(now) {
		return
	}

	sig, ok := c.orchestrator.Select(symbol, buf, feat, mctx, now)
	if !ok {
		return
	}
	atomic.AddInt64(&c.counters.signalsEmitted, 1)

	portfolioValue, err := c.deps.Sync.GetTotalPortfolioValue(ctx)
	if err != nil {
		c.deps.Throttle.WarnErr("portfolio_value_"+symbol, err, "failed to read portfolio value")
		return
	}
	currentExposure := c.deps.Registry.TotalCostBasis()

	input := gates.SignalInput{
		Symbol:           symbol,
		BaseAsset:        c.symbolBaseAsset(symbol),
		StrategyID:       sig.StrategyID,
		EdgeScore:        sig.EdgeScoreBase,
		SpreadBps:        feat.SpreadBps,
		BTCTrendOK:       mctx.BTCTrendOK,
		ConfluenceCount:  sig.ConfluenceCount,
		Now:              now,
		EstimatedSizeUSD: estimatedSizeUSD(c.deps.Settings.PositionBasePct, portfolioValue),
	}

	result := c.deps.Gates.Run(input, c.buildGatesDeps(now, portfolioValue))
	if !result.Passed {
		c.recordRejection(symbol, result, now)
		return
	}

	isFast := sig.StrategyID == domain.SignalFastBreakout
	plan := c.deps.Sizer.Plan(
		symbol,
		sig.StrategyID,
		sig.EdgeScoreBase,
		sig.ConfluenceCount,
		feat.Price,
		isFast,
		portfolioValue,
		currentExposure,
		sessionMultiplier(now),
		c.tierBook.counts(),
		now,
	)
	if !plan.OK {
		c.recordRejection(symbol, gates.GateResult{Passed: false, Reason: plan.Reason, Trace: result.Trace}, now)
		return
	}

	c.execute(ctx, plan.Plan, sig.StrategyID)
}

// execute places the sized plan through the router, updates the
// coordinator's own tier bookkeeping on success, and records the fill
// on the audit trail (spec.md §4.11).
func (c *Coordinator) execute(ctx context.Context, plan sizing.TradePlan, strategyID domain.SignalType) {
	pos, err := c.deps.Router.Open(ctx, plan, strategyID)
	if err != nil {
		atomic.AddInt64(&c.counters.ordersFailed, 1)
		c.deps.CircuitBreaker.RecordFailure(time.Now())
		c.deps.Throttle.WarnErr("order_open_"+plan.Symbol, err, "failed to open position")
		return
	}

	atomic.AddInt64(&c.counters.ordersPlaced, 1)
	c.deps.CircuitBreaker.RecordSuccess()
	c.tierBook.record(plan.Symbol, plan.Tier)
	if err := c.deps.Cooldowns.RecordOrder(plan.Symbol, pos.EntryTime); err != nil {
		c.deps.Throttle.WarnErr("record_cooldown_"+plan.Symbol, err, "failed to persist cooldown")
	}
}

// estimatedSizeUSD is the rough pre-sizing estimate gates.SignalInput
// needs before the sizer runs (spec.md §4.9 gates 11/18): the base tier
// percentage of current portfolio value.
func estimatedSizeUSD(positionBasePct, portfolioValue float64) float64 {
	return positionBasePct * portfolioValue
}

func (c *Coordinator) recordRejection(symbol string, result gates.GateResult, now time.Time) {
	rec := domain.RejectionRecord{
		Timestamp: now,
		Symbol:    symbol,
		Gate:      result.Reason,
		Details:   traceDetails(result),
	}
	c.deps.RejectionTracker.Record(rec)
	if err := c.deps.Recorder.RecordRejection(rec); err != nil {
		c.deps.Throttle.WarnErr("record_rejection_"+symbol, err, "failed to append rejection record")
	}
}

func traceDetails(result gates.GateResult) string {
	if len(result.Trace) == 0 {
		return ""
	}
	return result.Trace[len(result.Trace)-1].Details
}

// currentSpreadBps always returns 0. Real order-book depth is an
// external collaborator this engine does not model directly and no
// quote source is wired in, so 0 bps means "no venue quote available"
// and the spread gates simply pass through.
func (c *Coordinator) currentSpreadBps(symbol string) float64 {
	return 0
}

func (c *Coordinator) symbolBaseAsset(symbol string) string {
	c.symbolMu.Lock()
	defer c.symbolMu.Unlock()
	return c.symbolBase[symbol]
}
