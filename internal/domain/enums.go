// Package domain holds the value types shared across more than two
// components of the engine (candles, positions, portfolio snapshots, and
// the closed enums dispatched on throughout the pipeline). Types used by a
// single component live next to it instead of here, matching the teacher's
// preference for narrow per-module models over one sprawling models file.
package domain

// TradingMode selects both the execution path (paper vs live) and the
// on-disk namespace under data/<mode> and logs/<mode>.
type TradingMode string

const (
	ModePaper TradingMode = "paper"
	ModeLive  TradingMode = "live"
)

// Valid reports whether m is one of the two recognized modes.
func (m TradingMode) Valid() bool {
	return m == ModePaper || m == ModeLive
}

// TierLevel is the symbol-scheduler assignment: WS (real-time),
// REST_FAST (15s polls), REST_SLOW (60s polls), or UNASSIGNED.
type TierLevel string

const (
	TierWS        TierLevel = "WS"
	TierRESTFast  TierLevel = "REST_FAST"
	TierRESTSlow  TierLevel = "REST_SLOW"
	TierUnassigned TierLevel = "UNASSIGNED"
)

// PositionState is the lifecycle stage of a tracked Position.
type PositionState string

const (
	PositionOpen          PositionState = "OPEN"
	PositionPartialClosed PositionState = "PARTIAL_CLOSED"
	PositionClosing       PositionState = "CLOSING"
	PositionClosed        PositionState = "CLOSED"
)

// OrderEventType classifies an entry in the append-only OrderEvent stream.
type OrderEventType string

const (
	OrderEventOpen         OrderEventType = "open"
	OrderEventPartialClose OrderEventType = "partial_close"
	OrderEventClose        OrderEventType = "close"
)

// SizeTier is the tiered-sizing bucket a TradePlan is assigned to.
type SizeTier string

const (
	SizeTierScout  SizeTier = "scout"
	SizeTierNormal SizeTier = "normal"
	SizeTierStrong SizeTier = "strong"
	SizeTierWhale  SizeTier = "whale"
)

// GateReason is the canonical, closed set of reasons a signal can be
// rejected by the entry gate funnel (spec.md §4.9).
type GateReason string

const (
	GateReasonWarmth         GateReason = "warmth"
	GateReasonRegime         GateReason = "regime"
	GateReasonScore          GateReason = "score"
	GateReasonRR             GateReason = "rr"
	GateReasonLimits         GateReason = "limits"
	GateReasonSpread         GateReason = "spread"
	GateReasonTruth          GateReason = "truth"
	GateReasonCircuitBreaker GateReason = "circuit_breaker"
	GateReasonWhitelist      GateReason = "whitelist"
	GateReasonCooldown       GateReason = "cooldown"
	GateReasonBudget         GateReason = "budget"
	GateReasonRisk           GateReason = "risk"
)

// CircuitState is the closed/open/half_open state machine for CircuitBreaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// SignalType enumerates the accepted strategy signal types (spec.md gate 4
// "signal_type"). Strategies set this on every StrategySignal they emit.
type SignalType string

const (
	SignalFlagBreakout     SignalType = "flag_breakout"
	SignalFastBreakout     SignalType = "fast_breakout"
	SignalVWAPReclaim      SignalType = "vwap_reclaim"
	SignalMeanReversion    SignalType = "mean_reversion"
	SignalDailyMomentum    SignalType = "daily_momentum"
	SignalRangeBreakout    SignalType = "range_breakout"
	SignalRelativeStrength SignalType = "relative_strength"
	SignalSupportBounce    SignalType = "support_bounce"
	SignalGapFill          SignalType = "gap_fill"
	SignalBreakoutRetest   SignalType = "breakout_retest"
	SignalCorrelationPlay  SignalType = "correlation_play"
	SignalLiquiditySweep   SignalType = "liquidity_sweep"
	SignalMomentum1h       SignalType = "momentum_1h"
	SignalRSIMomentum      SignalType = "rsi_momentum"
	SignalBBExpansion      SignalType = "bb_expansion"
)

// Timeframe is one of the four candle aggregation periods the engine tracks.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

// CandleSource records whether a stored candle arrived over the WS stream
// or a REST poll, for audit purposes only — both are equally authoritative.
type CandleSource string

const (
	SourceWS   CandleSource = "ws"
	SourceREST CandleSource = "rest"
)
