package strategy

import (
	"fmt"
	"time"

	"github.com/aristath/spotengine/internal/candles"
	"github.com/aristath/spotengine/internal/features"
)

// Orchestrator runs every enabled strategy per symbol per tick and picks
// the best signal, applying the confluence boost (spec.md §4.8 selection
// algorithm).
type Orchestrator struct {
	strategies      []Strategy
	confluenceBoost float64
}

// NewOrchestrator wires an Orchestrator around an explicit, ordered list
// of enabled strategies.
func NewOrchestrator(strategies []Strategy, confluenceBoost float64) *Orchestrator {
	return &Orchestrator{strategies: strategies, confluenceBoost: confluenceBoost}
}

// Select runs every strategy, applying steps 1-6 of spec.md §4.8.
func (o *Orchestrator) Select(symbol string, buf *candles.CandleBuffer, feat features.Snapshot, ctx MarketContext, now time.Time) (Signal, bool) {
	var candidates []Signal
	for _, s := range o.strategies {
		sig, ok := s.Analyze(symbol, buf, feat, ctx)
		if !ok {
			continue
		}
		sig.Symbol = symbol
		sig.StrategyID = s.ID()
		sig.Timestamp = now
		candidates = append(candidates, sig)
	}

	if len(candidates) == 0 {
		return Signal{}, false
	}

	confluenceCount := len(candidates)
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.EdgeScoreBase > best.EdgeScoreBase {
			best = c
		}
	}

	if confluenceCount >= 2 {
		best.EdgeScoreBase = clampScore(best.EdgeScoreBase + o.confluenceBoost)
		best.Reasons = append(best.Reasons, reasonConfluence(confluenceCount))
	} else {
		best.Reasons = append(best.Reasons, "solo_signal")
	}
	best.ConfluenceCount = confluenceCount

	return best, true
}

func reasonConfluence(n int) string {
	return fmt.Sprintf("confluence_%d", n)
}

// ResetAll calls Reset(symbol) on every strategy, for use after a
// symbol's position closes or pattern invalidation is detected.
func (o *Orchestrator) ResetAll(symbol string) {
	for _, s := range o.strategies {
		s.Reset(symbol)
	}
}
