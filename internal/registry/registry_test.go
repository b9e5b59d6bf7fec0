package registry

import (
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func mkPos(symbol string, sizeQty, entryPrice float64) domain.Position {
	return domain.Position{
		Symbol: symbol, SizeQty: sizeQty, EntryPrice: entryPrice, CurrentPrice: entryPrice,
		CostBasis: sizeQty * entryPrice, EntryTime: time.Now().UTC(), StrategyID: "daily_momentum",
		State: domain.PositionOpen,
	}
}

func TestRegistry_AddRoutesByDustThreshold(t *testing.T) {
	r := New(Limits{DustThresholdUSD: 1.0, MaxPositions: 10, MinPositionUSD: 1})
	active := r.Add(mkPos("BTC-USD", 1, 100))
	assert.True(t, active)
	assert.True(t, r.HasActivePosition("BTC-USD"))

	isActive := r.Add(mkPos("DUST-USD", 0.001, 0.5))
	assert.False(t, isActive)
	assert.True(t, r.HasPosition("DUST-USD"))
	assert.False(t, r.HasActivePosition("DUST-USD"))
}

func TestRegistry_AddExactlyAtThresholdIsActive(t *testing.T) {
	r := New(Limits{DustThresholdUSD: 1.0, MaxPositions: 10, MinPositionUSD: 1})
	active := r.Add(mkPos("EDGE-USD", 1, 1)) // value == 1.0
	assert.True(t, active, "value at exactly the threshold must be active, strict < for dust")
}

func TestRegistry_UpdatePositionValueMovesAcrossBoundary(t *testing.T) {
	r := New(Limits{DustThresholdUSD: 1.0, MaxPositions: 10, MinPositionUSD: 1})
	r.Add(mkPos("FOO-USD", 10, 1)) // value 10, active

	r.UpdatePositionValue("FOO-USD", 0.05) // value 0.5 -> dust
	assert.False(t, r.HasActivePosition("FOO-USD"))
	assert.True(t, r.HasPosition("FOO-USD"))

	r.UpdatePositionValue("FOO-USD", 1.0) // value 10 -> active again
	assert.True(t, r.HasActivePosition("FOO-USD"))
}

func TestRegistry_CanOpenPositionEnforcesMinAndMax(t *testing.T) {
	r := New(Limits{DustThresholdUSD: 1.0, MaxPositions: 1, MinPositionUSD: 5})

	ok, _ := r.CanOpenPosition("s1", 1)
	assert.False(t, ok, "below minimum")

	ok, _ = r.CanOpenPosition("s1", 10)
	assert.True(t, ok)

	r.Add(mkPos("BTC-USD", 1, 100))
	ok, reason := r.CanOpenPosition("s1", 10)
	assert.False(t, ok)
	assert.Contains(t, reason, "max positions")
}

func TestRegistry_CanOpenPositionReconcilesAgainstExchangeHoldings(t *testing.T) {
	r := New(Limits{DustThresholdUSD: 1.0, MaxPositions: 1, MinPositionUSD: 5})
	r.Add(mkPos("GHOST-USD", 1, 100)) // tracked in registry but not actually held
	r.SetExchangeHoldingsFunc(func() map[string]struct{} { return map[string]struct{}{} })

	ok, _ := r.CanOpenPosition("s1", 10)
	assert.True(t, ok, "reconciled count should be 0, under the cap of 1")
}

func TestRegistry_CanClosePositionEnforcesMinHold(t *testing.T) {
	r := New(Limits{MinHoldSeconds: 300, DustThresholdUSD: 1, MaxPositions: 10, MinPositionUSD: 1})
	pos := mkPos("BTC-USD", 1, 100)
	pos.EntryTime = time.Now().UTC().Add(-10 * time.Second)
	r.Add(pos)

	ok, reason := r.CanClosePosition("BTC-USD", time.Now().UTC())
	assert.False(t, ok)
	assert.Contains(t, reason, "min hold")

	ok, _ = r.CanClosePosition("BTC-USD", time.Now().UTC().Add(6*time.Minute))
	assert.True(t, ok)
}

func TestRegistry_MaxPositionsPerStrategy(t *testing.T) {
	r := New(Limits{DustThresholdUSD: 1, MaxPositions: 10, MinPositionUSD: 1, MaxPositionsPerStrategy: 1})
	r.Add(mkPos("BTC-USD", 1, 100))

	ok, reason := r.CanOpenPosition("daily_momentum", 10)
	assert.False(t, ok)
	assert.Contains(t, reason, "daily_momentum")

	ok, _ = r.CanOpenPosition("mean_reversion", 10)
	assert.True(t, ok)
}

func TestRegistry_GetStatsAggregatesByStrategy(t *testing.T) {
	r := New(DefaultLimits())
	r.Add(mkPos("BTC-USD", 1, 100))
	p2 := mkPos("ETH-USD", 1, 50)
	p2.StrategyID = "mean_reversion"
	r.Add(p2)

	stats := r.GetStats()
	assert.Equal(t, 2, stats.ActivePositions)
	assert.Equal(t, 1, stats.ByStrategy["daily_momentum"])
	assert.Equal(t, 1, stats.ByStrategy["mean_reversion"])
}

func TestRegistry_RemoveDeletesFromWhicheverMap(t *testing.T) {
	r := New(DefaultLimits())
	r.Add(mkPos("BTC-USD", 1, 100))
	p, ok := r.Remove("BTC-USD")
	assert.True(t, ok)
	assert.Equal(t, "BTC-USD", p.Symbol)
	assert.False(t, r.HasPosition("BTC-USD"))
}
