// Package gates implements the canonical, ordered entry-gate funnel
// (spec.md §4.9): eighteen checks run in a fixed sequence, the first
// failure short-circuits evaluation, but the full trace up to and
// including that failure is always returned for the UI and audit log.
// Each external dependency (risk state, position registry, tier warmth,
// the intelligence black box) is a narrow function value in Deps,
// supplied by its owning package — the funnel itself holds no mutable
// state.
package gates

import (
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

// Step names every gate (spec.md §4.9 table). CanonicalOrder below lists
// them in the order Checker.Run evaluates them; Run writes that sequence
// out step by step rather than iterating the slice.
type Step string

const (
	StepDailyLossLimit   Step = "daily_loss_limit"
	StepPauseNewEntries  Step = "pause_new_entries"
	StepCircuitBreaker   Step = "circuit_breaker"
	StepSignalType       Step = "signal_type"
	StepDuplicatePos     Step = "duplicate_position"
	StepStablecoinFilter Step = "stablecoin_filter"
	StepExchangeHoldings Step = "exchange_holdings"
	StepCooldown         Step = "cooldown"
	StepWarmth           Step = "warmth"
	StepSymbolExposure   Step = "symbol_exposure"
	StepPositionLimits   Step = "position_limits"
	StepSpreadFilter     Step = "spread_filter"
	StepWhitelist        Step = "whitelist"
	StepSpreadScore      Step = "spread_score"
	StepEntryScore       Step = "entry_score"
	StepTradingHalted    Step = "trading_halted"
	StepPredictiveTiming Step = "predictive_timing"
	StepRegistryLimits   Step = "registry_limits"
)

// CanonicalOrder is the full, fixed sequence the checker evaluates.
var CanonicalOrder = []Step{
	StepDailyLossLimit,
	StepPauseNewEntries,
	StepCircuitBreaker,
	StepSignalType,
	StepDuplicatePos,
	StepStablecoinFilter,
	StepExchangeHoldings,
	StepCooldown,
	StepWarmth,
	StepSymbolExposure,
	StepPositionLimits,
	StepSpreadFilter,
	StepWhitelist,
	StepSpreadScore,
	StepEntryScore,
	StepTradingHalted,
	StepPredictiveTiming,
	StepRegistryLimits,
}

// StepTrace is one gate's outcome within a GateResult's trace.
type StepTrace struct {
	Gate    Step   `json:"gate"`
	Passed  bool   `json:"passed"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details"`
}

// GateResult is the funnel's single outcome for one signal evaluation.
type GateResult struct {
	Passed bool                `json:"passed"`
	Reason domain.GateReason   `json:"reason,omitempty"`
	Gate   Step                `json:"gate,omitempty"`
	Trace  []StepTrace         `json:"trace"`
}

// SignalInput is everything the funnel needs about the candidate signal
// and the symbol's current exposure, independent of where it came from
// (the strategy orchestrator populates this from a strategy.Signal).
type SignalInput struct {
	Symbol          string
	BaseAsset       string
	StrategyID      domain.SignalType
	EdgeScore       float64
	SpreadBps       float64
	BTCTrendOK      bool
	ConfluenceCount int
	Now             time.Time

	// EstimatedSizeUSD is a rough pre-sizing estimate used by the
	// position-limits / registry-limits gates, which run before the
	// sizer computes the final size (spec.md §4.9 gate 11/18).
	EstimatedSizeUSD float64
}

// acceptedSignalTypes is the closed set gate 4 checks against — every
// strategy this engine ships (spec.md §4.8).
var acceptedSignalTypes = map[domain.SignalType]bool{
	domain.SignalFlagBreakout:     true,
	domain.SignalFastBreakout:     true,
	domain.SignalVWAPReclaim:      true,
	domain.SignalMeanReversion:    true,
	domain.SignalDailyMomentum:    true,
	domain.SignalRangeBreakout:    true,
	domain.SignalRelativeStrength: true,
	domain.SignalSupportBounce:    true,
	domain.SignalGapFill:          true,
	domain.SignalBreakoutRetest:   true,
	domain.SignalCorrelationPlay:  true,
	domain.SignalLiquiditySweep:   true,
	domain.SignalMomentum1h:       true,
	domain.SignalRSIMomentum:      true,
	domain.SignalBBExpansion:      true,
}
