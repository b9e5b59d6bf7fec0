package engine

import (
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/gates"
)

// buildGatesDeps assembles a fresh gates.Deps from the coordinator's
// live collaborators, exactly as gates.Checker.Run expects (its own
// doc comment: "Run is hand-fed a fresh Deps per call so every
// dependency always reflects the current tick"). Two gates have no
// real backing implementation anywhere in this engine and are wired to
// permissive stubs (see DESIGN.md): position_limits (an intelligence
// black box the spec leaves pluggable) always passes, and
// predictive_timing (ditto) never vetoes.
func (c *Coordinator) buildGatesDeps(now time.Time, portfolioValue float64) gates.Deps {
	settings := c.deps.Settings
	rt := c.deps.RuntimeStore.Get()

	return gates.Deps{
		DailyLossBreached: func() bool {
			return c.deps.DailyStats.BreachedDailyLoss(rt.DailyMaxLossUSD, now)
		},
		PauseNewEntries: c.isPaused,
		CircuitOpen: func() bool {
			return !c.deps.CircuitBreaker.CanTrade(now)
		},

		OpenPosition:       c.deps.Registry.Get,
		LastNGreen:         c.lastNGreen,
		IsStablecoinBase:   c.isStablecoinBase,
		HasExchangeHolding: c.deps.Sync.HasExchangeHolding,
		InHardCooldown: func(symbol string) bool {
			return c.deps.Cooldowns.InHardCooldown(symbol, now)
		},

		IsSymbolWarm: c.deps.Tiering.IsSymbolWarm,

		SymbolCostBasis:   c.deps.Registry.SymbolCostBasis,
		SymbolExposureCap: c.deps.Settings.PositionMaxPct * portfolioValue,

		CheckPositionLimits: permissivePositionLimits,

		SpreadMaxBps: rt.SpreadMaxBps,

		WhitelistEnabled: rt.WhitelistEnabled,
		Whitelist:        whitelistSet(rt.Whitelist),

		EntryScoreMin: rt.EntryScoreMin,

		IsTradingHalted: func() (bool, string) {
			if c.deps.KillSwitch.Active() {
				return true, c.deps.KillSwitch.Reason()
			}
			return false, ""
		},
		PredictiveVeto: noopPredictiveVeto,

		CheckRegistryLimits: func(strategyID domain.SignalType, estimatedSizeUSD float64) (bool, string) {
			return c.deps.Registry.CanOpenPosition(string(strategyID), estimatedSizeUSD)
		},

		StackingEnabled:      rt.StackingEnabled,
		StackingMinProfitPct: settings.StackingMinProfitPct,
		StackingMaxAdds:      settings.StackingMaxAdds,
		StackingGreenCandles: settings.StackingGreenCandles,
	}
}

func (c *Coordinator) lastNGreen(symbol string, n int) bool {
	buf := c.deps.Buffers.Buffer(symbol)
	return buf.GreenCount(n, domain.TF1m) >= n
}

func whitelistSet(symbols []string) map[string]bool {
	out := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		out[s] = true
	}
	return out
}

// permissivePositionLimits stands in for the sector-rotation /
// portfolio-concentration intelligence service spec.md leaves as an
// Open Question pluggable contract (see DESIGN.md): until such a
// service exists, every symbol is always within limits.
func permissivePositionLimits(symbol string, estimatedSizeUSD float64) (bool, string) {
	return true, "OK"
}

// noopPredictiveVeto stands in for the ML-timing intelligence service
// spec.md leaves as an Open Question (see DESIGN.md): it never blocks
// an otherwise-eligible entry.
func noopPredictiveVeto(symbol string) (bool, string) {
	return false, ""
}
