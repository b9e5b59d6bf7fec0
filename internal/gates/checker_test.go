package gates

import (
	"testing"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func baseInput() SignalInput {
	return SignalInput{
		Symbol:     "FOO-USD",
		BaseAsset:  "FOO",
		StrategyID: domain.SignalRangeBreakout,
		EdgeScore:  80,
		SpreadBps:  5,
		BTCTrendOK: true,
	}
}

func baseDeps() Deps {
	return Deps{
		SpreadMaxBps:  25,
		EntryScoreMin: 60,
		IsSymbolWarm:  func(string) bool { return true },
	}
}

func TestChecker_AllPassesOnCleanInput(t *testing.T) {
	c := New()
	res := c.Run(baseInput(), baseDeps())
	assert.True(t, res.Passed)
	assert.Len(t, res.Trace, len(CanonicalOrder))
}

func TestChecker_DailyLossLimitRejectsFirstAndShortCircuits(t *testing.T) {
	c := New()
	d := baseDeps()
	d.DailyLossBreached = func() bool { return true }

	res := c.Run(baseInput(), d)
	assert.False(t, res.Passed)
	assert.Equal(t, domain.GateReasonRisk, res.Reason)
	assert.Equal(t, StepDailyLossLimit, res.Gate)
	assert.Len(t, res.Trace, 1, "trace must stop at the first failure")
}

func TestChecker_WarmthBlocksAfterEightPasses(t *testing.T) {
	c := New()
	d := baseDeps()
	d.IsSymbolWarm = func(string) bool { return false }

	res := c.Run(baseInput(), d)
	assert.False(t, res.Passed)
	assert.Equal(t, domain.GateReasonWarmth, res.Reason)
	assert.Equal(t, StepWarmth, res.Gate)
	// gates 1-8 passed, gate 9 (warmth) failed: 9 entries total
	assert.Len(t, res.Trace, 9)
}

func TestChecker_SpreadExactlyAtMaxPasses(t *testing.T) {
	c := New()
	in := baseInput()
	in.SpreadBps = 25
	in.EdgeScore = 90 // clear of the spread_score cushion requirement
	d := baseDeps()

	res := c.Run(in, d)
	assert.True(t, res.Passed)
}

func TestChecker_SpreadJustOverMaxFails(t *testing.T) {
	c := New()
	in := baseInput()
	in.SpreadBps = 25.01
	d := baseDeps()

	res := c.Run(in, d)
	assert.False(t, res.Passed)
	assert.Equal(t, domain.GateReasonSpread, res.Reason)
	assert.Equal(t, StepSpreadFilter, res.Gate)
}

func TestChecker_EntryScoreExactlyAtMinPasses(t *testing.T) {
	c := New()
	in := baseInput()
	in.EdgeScore = 60
	d := baseDeps()

	res := c.Run(in, d)
	assert.True(t, res.Passed)
}

func TestChecker_EntryScoreBelowMinCategorizedAsRegimeWhenBTCTrendBad(t *testing.T) {
	c := New()
	in := baseInput()
	in.EdgeScore = 59
	in.BTCTrendOK = false
	d := baseDeps()

	res := c.Run(in, d)
	assert.False(t, res.Passed)
	assert.Equal(t, domain.GateReasonRegime, res.Reason)
	assert.Equal(t, StepEntryScore, res.Gate)
}

func TestChecker_EntryScoreBelowMinCategorizedAsScoreWhenRegimeNormal(t *testing.T) {
	c := New()
	in := baseInput()
	in.EdgeScore = 59
	in.BTCTrendOK = true
	d := baseDeps()

	res := c.Run(in, d)
	assert.False(t, res.Passed)
	assert.Equal(t, domain.GateReasonScore, res.Reason)
}

func TestChecker_SymbolExposureStrictGreaterEqualFails(t *testing.T) {
	c := New()
	in := baseInput()
	d := baseDeps()
	d.SymbolCostBasis = func(string) float64 { return 100 }
	d.SymbolExposureCap = 100

	res := c.Run(in, d)
	assert.False(t, res.Passed)
	assert.Equal(t, StepSymbolExposure, res.Gate)
}

func TestChecker_DuplicatePositionBlockedWithoutStacking(t *testing.T) {
	c := New()
	in := baseInput()
	d := baseDeps()
	d.OpenPosition = func(string) (domain.Position, bool) {
		return domain.Position{Symbol: in.Symbol, CostBasis: 10, CurrentPrice: 1, SizeQty: 10}, true
	}

	res := c.Run(in, d)
	assert.False(t, res.Passed)
	assert.Equal(t, StepDuplicatePos, res.Gate)
	assert.Equal(t, domain.GateReasonLimits, res.Reason)
}

func TestChecker_StackingAllowedWhenAllConditionsHold(t *testing.T) {
	c := New()
	in := baseInput()
	d := baseDeps()
	pos := domain.Position{Symbol: in.Symbol, CostBasis: 100, CurrentPrice: 1.05, SizeQty: 100, StackCount: 0}
	d.OpenPosition = func(string) (domain.Position, bool) { return pos, true }
	d.StackingEnabled = true
	d.StackingMinProfitPct = 0.02
	d.StackingMaxAdds = 2
	d.StackingGreenCandles = 3
	d.LastNGreen = func(string, int) bool { return true }

	res := c.Run(in, d)
	assert.True(t, res.Passed)
}

func TestChecker_StackingDeniedWhenCandlesNotAllGreen(t *testing.T) {
	c := New()
	in := baseInput()
	d := baseDeps()
	pos := domain.Position{Symbol: in.Symbol, CostBasis: 100, CurrentPrice: 1.05, SizeQty: 100, StackCount: 0}
	d.OpenPosition = func(string) (domain.Position, bool) { return pos, true }
	d.StackingEnabled = true
	d.StackingMinProfitPct = 0.02
	d.StackingMaxAdds = 2
	d.StackingGreenCandles = 3
	d.LastNGreen = func(string, int) bool { return false }

	res := c.Run(in, d)
	assert.False(t, res.Passed)
	assert.Equal(t, StepDuplicatePos, res.Gate)
}

func TestChecker_UnrecognizedSignalTypeRejected(t *testing.T) {
	c := New()
	in := baseInput()
	in.StrategyID = "not_a_real_strategy"
	d := baseDeps()

	res := c.Run(in, d)
	assert.False(t, res.Passed)
	assert.Equal(t, StepSignalType, res.Gate)
	assert.Equal(t, domain.GateReasonScore, res.Reason)
}

func TestChecker_WhitelistBlocksUnlistedSymbol(t *testing.T) {
	c := New()
	in := baseInput()
	d := baseDeps()
	d.WhitelistEnabled = true
	d.Whitelist = map[string]bool{"OTHER-USD": true}

	res := c.Run(in, d)
	assert.False(t, res.Passed)
	assert.Equal(t, StepWhitelist, res.Gate)
}
