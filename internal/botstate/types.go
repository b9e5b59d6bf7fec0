// Package botstate owns the single outward-facing state bundle the
// engine's coordinator publishes for dashboards, the HTTP control
// surface, and tests (spec.md §6 "Outward-facing state bundle"). The
// coordinator is the only writer; every other component reads an
// immutable snapshot obtained via Store.Load, following spec.md §5's
// "replace global mutable state with a single owning task" redesign.
package botstate

import (
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

// PositionView is the dashboard-facing projection of a domain.Position.
type PositionView struct {
	Symbol          string    `json:"symbol"`
	StrategyID      string    `json:"strategy_id"`
	EntryPrice      float64   `json:"entry_price"`
	CurrentPrice    float64   `json:"current_price"`
	SizeUSD         float64   `json:"size_usd"`
	StopPrice       float64   `json:"stop_price"`
	TP1Price        float64   `json:"tp1_price"`
	TP2Price        float64   `json:"tp2_price"`
	State           string    `json:"state"`
	UnrealizedPnL   float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64  `json:"unrealized_pnl_pct"`
	TrailingActive  bool      `json:"trailing_active"`
	EntryTime       time.Time `json:"entry_time"`
}

// BurstEntry is one row of the burst leaderboard (top ranked candidates
// this tick, regardless of whether they were traded).
type BurstEntry struct {
	Symbol       string  `json:"symbol"`
	CombinedRank float64 `json:"combined_rank"`
	Score        float64 `json:"score"`
}

// SignalView is a recent strategy signal, traded or not.
type SignalView struct {
	Symbol     string    `json:"symbol"`
	StrategyID string    `json:"strategy_id"`
	EdgeScore  float64   `json:"edge_score"`
	Timestamp  time.Time `json:"timestamp"`
}

// GateTrace mirrors gates.StepTrace without importing the gates package,
// keeping botstate a leaf dependency the way the teacher's display
// package never imports the services it renders.
type GateTrace struct {
	Gate    string `json:"gate"`
	Passed  bool   `json:"passed"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details"`
}

// RejectionView is one collapsed rejection event for the UI stream.
type RejectionView struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Gate      string    `json:"gate"`
	Details   string    `json:"details"`
}

// EngineCounters is the engine{...} block of BotState: running counts the
// coordinator accumulates over its lifetime.
type EngineCounters struct {
	TicksProcessed   int64 `json:"ticks_processed"`
	SignalsEmitted   int64 `json:"signals_emitted"`
	OrdersPlaced     int64 `json:"orders_placed"`
	OrdersFailed     int64 `json:"orders_failed"`
	RestRequests     int64 `json:"rest_requests"`
	Rest429s         int64 `json:"rest_429s"`
	RestRateDegraded bool  `json:"rest_rate_degraded"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	CPUPercent       float64 `json:"cpu_percent"`
	MemPercent       float64 `json:"mem_percent"`
}

// BotState is the full versioned outward-facing bundle (spec.md §6).
// Every field is a value or a slice/map of values — no pointers into
// live engine structures — so a Snapshot can be handed to an HTTP
// handler or a websocket writer without any further locking.
type BotState struct {
	Version          int                        `json:"version"`
	Mode             domain.TradingMode         `json:"mode"`
	Phase            string                     `json:"phase"`
	Timestamp        time.Time                  `json:"timestamp"`
	PortfolioValue   float64                    `json:"portfolio_value"`
	CashBalance      float64                    `json:"cash_balance"`
	HoldingsValue    float64                    `json:"holdings_value"`
	Positions        []PositionView             `json:"positions"`
	BurstLeaderboard []BurstEntry               `json:"burst_leaderboard"`
	RecentSignals    []SignalView               `json:"recent_signals"`
	GateTraces       []GateTrace                `json:"gate_traces"`
	Rejections       map[string][]RejectionView `json:"rejections"`
	Heartbeats       map[string]time.Time       `json:"heartbeats"`
	Engine           EngineCounters             `json:"engine"`
	KillSwitch       bool                       `json:"kill_switch"`
	KillSwitchReason string                     `json:"kill_switch_reason,omitempty"`
	FocusCoin        string                     `json:"focus_coin,omitempty"`
	CurrentSignal    *SignalView                `json:"current_signal,omitempty"`
	Paused           bool                       `json:"paused"`
}

// stateVersion is bumped whenever BotState's shape changes in a way a
// dashboard consumer would need to know about.
const stateVersion = 1

// Empty returns a zero-value BotState with its maps/slices initialized
// and Version/Timestamp set, suitable as the coordinator's starting
// point before the first real snapshot is published.
func Empty(mode domain.TradingMode) BotState {
	return BotState{
		Version:    stateVersion,
		Mode:       mode,
		Phase:      "starting",
		Timestamp:  time.Now().UTC(),
		Rejections: make(map[string][]RejectionView),
		Heartbeats: make(map[string]time.Time),
	}
}
