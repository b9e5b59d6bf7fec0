package domain

import "time"

// Position is a tracked open (or partially closed) trade. Owned exclusively
// by the Position Registry (internal/registry); the router and other
// components only ever hold a value copy or a read through the registry's
// API, never a pointer they can mutate directly.
type Position struct {
	Symbol             string        `json:"symbol"`
	Side               string        `json:"side"` // "BUY" only in v1
	EntryPrice         float64       `json:"entry_price"`
	EntryTime          time.Time     `json:"entry_time"`
	SizeUSD            float64       `json:"size_usd"`
	SizeQty            float64       `json:"size_qty"`
	StopPrice          float64       `json:"stop_price"`
	TP1Price           float64       `json:"tp1_price"`
	TP2Price           float64       `json:"tp2_price"`
	TimeStopDeadline   time.Time     `json:"time_stop_deadline"`
	StrategyID         string        `json:"strategy_id"`
	CostBasis          float64       `json:"cost_basis"`
	RealizedPnL        float64       `json:"realized_pnl"` // accumulated across partial closes
	StackCount         int           `json:"stack_count"`
	State              PositionState `json:"state"`
	BreakevenLocked    bool          `json:"breakeven_locked"`
	TrailingActive     bool          `json:"trailing_active"`
	TrailPct           float64       `json:"trail_pct"`
	TrailHigh          float64       `json:"trail_high"`
	CurrentPrice       float64       `json:"current_price"`
	TP1PartialDoneUSD  float64       `json:"tp1_partial_done_usd"` // USD value already closed at TP1
}

// MarketValue returns the position's current mark-to-market USD value.
func (p Position) MarketValue() float64 {
	return p.CurrentPrice * p.SizeQty
}

// UnrealizedPnL returns the position's unrealized profit/loss in USD.
func (p Position) UnrealizedPnL() float64 {
	return p.MarketValue() - p.CostBasis
}

// PnLPct returns unrealized PnL as a fraction of cost basis (0.01 == 1%).
func (p Position) PnLPct() float64 {
	if p.CostBasis <= 0 {
		return 0
	}
	return p.UnrealizedPnL() / p.CostBasis
}

// ValidBracket enforces the testable invariant from spec.md §8 #3:
// for a BUY position, stop < entry <= tp1 <= tp2.
func (p Position) ValidBracket() bool {
	if p.Side != "BUY" {
		return true
	}
	return p.StopPrice < p.EntryPrice && p.EntryPrice <= p.TP1Price && p.TP1Price <= p.TP2Price
}

// SpotPosition is the exchange's authoritative view of a single holding,
// as returned by a portfolio breakdown (spec.md §6).
type SpotPosition struct {
	Asset              string  `json:"asset"`
	TotalBalanceCrypto float64 `json:"total_balance_crypto"`
	TotalBalanceFiat   float64 `json:"total_balance_fiat"`
	AverageEntryPrice  float64 `json:"average_entry_price"`
	CostBasis          float64 `json:"cost_basis"`
	UnrealizedPnL      float64 `json:"unrealized_pnl"`
	IsCash             bool    `json:"is_cash"`
}

// PortfolioSnapshot is the authoritative (live) or synthetic (paper) view of
// total account value, produced by the Exchange Sync / Portfolio Manager.
type PortfolioSnapshot struct {
	Timestamp          time.Time                `json:"timestamp"`
	TotalValue         float64                   `json:"total_value"`
	TotalCash          float64                   `json:"total_cash"`
	TotalCrypto        float64                   `json:"total_crypto"`
	TotalUnrealizedPnL float64                   `json:"total_unrealized_pnl"`
	TotalRealizedPnL   float64                   `json:"total_realized_pnl"`
	Positions          map[string]SpotPosition   `json:"positions"`
}

// OrderEvent is an append-only, audit-facing record of a fill, partial
// close, or close (spec.md §3).
type OrderEvent struct {
	EventType OrderEventType `json:"event_type"`
	Symbol    string         `json:"symbol"`
	Side      string         `json:"side"`
	Mode      TradingMode    `json:"mode"`
	Price     float64        `json:"price"`
	SizeUSD   float64        `json:"size_usd"`
	SizeQty   float64        `json:"size_qty"`
	PnL       *float64       `json:"pnl,omitempty"`
	PnLPct    *float64       `json:"pnl_pct,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RejectionRecord is a single blocked-signal entry for the audit log and
// the UI's rejection histogram (spec.md §3, §4.14 RejectionTracker).
type RejectionRecord struct {
	Timestamp time.Time  `json:"ts"`
	Symbol    string     `json:"symbol"`
	Gate      GateReason `json:"gate"`
	Details   string     `json:"details"`
}
