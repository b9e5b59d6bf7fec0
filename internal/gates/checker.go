package gates

import (
	"fmt"

	"github.com/aristath/spotengine/internal/domain"
)

// Deps is the funnel's full set of external lookups, held as plain
// function values rather than a grab-bag of interfaces — each gate
// needs exactly one narrow fact, and a closure lets every owning
// package (risk, registry, tiering, universe) wire itself in without
// the gates package importing any of them. Run is hand-fed a fresh
// Deps per call so every dependency always reflects the current tick.
type Deps struct {
	DailyLossBreached func() bool
	PauseNewEntries   func() bool
	CircuitOpen       func() bool

	OpenPosition       func(symbol string) (domain.Position, bool)
	LastNGreen         func(symbol string, n int) bool
	IsStablecoinBase   func(baseAsset string) bool
	HasExchangeHolding func(symbol string) bool
	InHardCooldown     func(symbol string) bool

	IsSymbolWarm func(symbol string) bool

	SymbolCostBasis   func(symbol string) float64
	SymbolExposureCap float64

	CheckPositionLimits func(symbol string, estimatedSizeUSD float64) (bool, string)

	SpreadMaxBps float64

	WhitelistEnabled bool
	Whitelist        map[string]bool

	EntryScoreMin float64

	IsTradingHalted func() (bool, string)
	PredictiveVeto  func(symbol string) (bool, string)

	CheckRegistryLimits func(strategyID domain.SignalType, estimatedSizeUSD float64) (bool, string)

	StackingEnabled      bool
	StackingMinProfitPct float64
	StackingMaxAdds      int
	StackingGreenCandles int
}

// stackingAllowed implements the Gate 5/7 stacking rule (spec.md §4.9):
// adding to an existing winner requires stacking_enabled, position
// PnL% at or above the configured floor, stack_count under the cap,
// and the trailing N 1m candles all green.
func stackingAllowed(pos domain.Position, symbol string, d Deps) bool {
	if !d.StackingEnabled {
		return false
	}
	if pos.PnLPct() < d.StackingMinProfitPct {
		return false
	}
	if pos.StackCount >= d.StackingMaxAdds {
		return false
	}
	if d.LastNGreen == nil || !d.LastNGreen(symbol, d.StackingGreenCandles) {
		return false
	}
	return true
}

// Checker evaluates the canonical gate funnel. It is stateless; every
// fact it needs for a given tick is supplied via Deps.
type Checker struct{}

// New creates a Checker.
func New() *Checker { return &Checker{} }

// Run evaluates the gates in CanonicalOrder, stopping at the first failing gate but
// recording every gate evaluated (spec.md §4.9, §8 invariant 5).
func (c *Checker) Run(in SignalInput, d Deps) GateResult {
	trace := make([]StepTrace, 0, len(CanonicalOrder))

	fail := func(step Step, reason domain.GateReason, details string) GateResult {
		trace = append(trace, StepTrace{Gate: step, Passed: false, Reason: string(reason), Details: details})
		return GateResult{Passed: false, Reason: reason, Gate: step, Trace: trace}
	}
	pass := func(step Step, details string) {
		trace = append(trace, StepTrace{Gate: step, Passed: true, Details: details})
	}

	// 1. daily_loss_limit
	if d.DailyLossBreached != nil && d.DailyLossBreached() {
		return fail(StepDailyLossLimit, domain.GateReasonRisk, "daily loss limit breached")
	}
	pass(StepDailyLossLimit, "")

	// 2. pause_new_entries
	if d.PauseNewEntries != nil && d.PauseNewEntries() {
		return fail(StepPauseNewEntries, domain.GateReasonRisk, "new entries paused")
	}
	pass(StepPauseNewEntries, "")

	// 3. circuit_breaker
	if d.CircuitOpen != nil && d.CircuitOpen() {
		return fail(StepCircuitBreaker, domain.GateReasonCircuitBreaker, "circuit breaker open")
	}
	pass(StepCircuitBreaker, "")

	// 4. signal_type
	if !acceptedSignalTypes[in.StrategyID] {
		return fail(StepSignalType, domain.GateReasonScore, fmt.Sprintf("unrecognized signal type %q", in.StrategyID))
	}
	pass(StepSignalType, "")

	// 5. duplicate_position
	var existing domain.Position
	var hasExisting bool
	if d.OpenPosition != nil {
		existing, hasExisting = d.OpenPosition(in.Symbol)
	}
	if hasExisting && !stackingAllowed(existing, in.Symbol, d) {
		return fail(StepDuplicatePos, domain.GateReasonLimits, "already open and stacking not allowed")
	}
	pass(StepDuplicatePos, "")

	// 6. stablecoin_filter
	if d.IsStablecoinBase != nil && d.IsStablecoinBase(in.BaseAsset) {
		return fail(StepStablecoinFilter, domain.GateReasonLimits, "base asset is a stablecoin")
	}
	pass(StepStablecoinFilter, "")

	// 7. exchange_holdings
	hasHolding := d.HasExchangeHolding != nil && d.HasExchangeHolding(in.Symbol)
	if hasHolding && !hasExisting && !d.StackingEnabled {
		return fail(StepExchangeHoldings, domain.GateReasonLimits, "non-dust holding and stacking disallowed")
	}
	pass(StepExchangeHoldings, "")

	// 8. cooldown
	if d.InHardCooldown != nil && d.InHardCooldown(in.Symbol) {
		return fail(StepCooldown, domain.GateReasonCooldown, "within order cooldown window")
	}
	pass(StepCooldown, "")

	// 9. warmth
	if d.IsSymbolWarm != nil && !d.IsSymbolWarm(in.Symbol) {
		return fail(StepWarmth, domain.GateReasonWarmth, "symbol not warm")
	}
	pass(StepWarmth, "")

	// 10. symbol_exposure (strict >=)
	if d.SymbolCostBasis != nil && d.SymbolExposureCap > 0 {
		if d.SymbolCostBasis(in.Symbol) >= d.SymbolExposureCap {
			return fail(StepSymbolExposure, domain.GateReasonLimits, "per-symbol cost basis at or above cap")
		}
	}
	pass(StepSymbolExposure, "")

	// 11. position_limits (intelligence)
	if d.CheckPositionLimits != nil {
		if ok, reason := d.CheckPositionLimits(in.Symbol, in.EstimatedSizeUSD); !ok {
			return fail(StepPositionLimits, domain.GateReasonLimits, reason)
		}
	}
	pass(StepPositionLimits, "")

	// 12. spread_filter (strict >)
	highSpread := in.SpreadBps > d.SpreadMaxBps
	if highSpread {
		return fail(StepSpreadFilter, domain.GateReasonSpread, fmt.Sprintf("spread %.2fbps exceeds max %.2fbps", in.SpreadBps, d.SpreadMaxBps))
	}
	pass(StepSpreadFilter, "")

	// 13. whitelist
	if d.WhitelistEnabled && !d.Whitelist[in.Symbol] {
		return fail(StepWhitelist, domain.GateReasonWhitelist, "symbol not in whitelist")
	}
	pass(StepWhitelist, "")

	// 14. spread_score: near-max spread requires a 5-point score cushion.
	nearMaxSpread := in.SpreadBps > d.SpreadMaxBps*0.8
	if nearMaxSpread && in.EdgeScore < d.EntryScoreMin+5 {
		return fail(StepSpreadScore, domain.GateReasonSpread, "elevated spread requires higher entry score")
	}
	pass(StepSpreadScore, "")

	// 15. entry_score (regime categorization per spec.md §4.9)
	if in.EdgeScore < d.EntryScoreMin {
		if !in.BTCTrendOK {
			return fail(StepEntryScore, domain.GateReasonRegime, "entry score below minimum in a non-normal regime")
		}
		return fail(StepEntryScore, domain.GateReasonScore, "entry score below minimum")
	}
	pass(StepEntryScore, "")

	// 16. trading_halted
	if d.IsTradingHalted != nil {
		if halted, reason := d.IsTradingHalted(); halted {
			return fail(StepTradingHalted, domain.GateReasonRisk, reason)
		}
	}
	pass(StepTradingHalted, "")

	// 17. predictive_timing
	if d.PredictiveVeto != nil {
		if veto, reason := d.PredictiveVeto(in.Symbol); veto {
			return fail(StepPredictiveTiming, domain.GateReasonScore, reason)
		}
	}
	pass(StepPredictiveTiming, "")

	// 18. registry_limits (rough pre-sizing exposure check)
	if d.CheckRegistryLimits != nil {
		if ok, reason := d.CheckRegistryLimits(in.StrategyID, in.EstimatedSizeUSD); !ok {
			return fail(StepRegistryLimits, domain.GateReasonLimits, reason)
		}
	}
	pass(StepRegistryLimits, "")

	return GateResult{Passed: true, Trace: trace}
}
