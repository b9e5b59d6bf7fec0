// Package strategy implements the independent strategy set and the
// orchestrator selection algorithm (spec.md §4.8). Each strategy is a
// narrow struct implementing the Strategy interface; the orchestrator
// holds a plain slice of them (spec.md §9 "TradingContainer is a plain
// struct of concrete instances chosen at boot; no runtime introspection").
package strategy

import (
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/features"
)

// MarketContext carries cross-symbol state a strategy may need but that
// doesn't belong on a single symbol's buffer — BTC's own 1h trend and
// regime flag, for relative-strength, regime-aware and correlation-play
// strategies.
type MarketContext struct {
	BTCTrend1h float64
	BTCTrendOK bool
}

// Signal is the unified output every strategy produces on a match
// (spec.md §3 "Intent" + §4.8 "StrategySignal").
type Signal struct {
	Symbol          string
	StrategyID      domain.SignalType
	Direction       string // "LONG" only in v1
	EdgeScoreBase   float64
	TrendScore      float64
	VolumeScore     float64
	PatternScore    float64
	TimingScore     float64
	EntryPrice      float64
	StopPrice       float64
	TP1Price        float64
	TP2Price        float64
	RiskPct         float64
	RRRatio         float64
	Reason          string
	Reasons         []string
	Timestamp       time.Time
	ConfluenceCount int
}

// Strategy is the per-strategy capability interface (spec.md §4.8).
type Strategy interface {
	ID() domain.SignalType
	// Analyze returns (signal, true) on a valid setup, (zero, false)
	// otherwise. Implementations never apply gates — that is the entry
	// gate checker's job (spec.md §4.8 "strategies do not apply gates").
	Analyze(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext) (Signal, bool)
	// Reset clears any per-symbol state the strategy carries between
	// calls (spec.md §4.8: called after a position closes or on pattern
	// invalidation).
	Reset(symbol string)
}

// clampScore keeps a composite score within [0,100].
func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
