package tiering

import (
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScheduler() *Scheduler {
	cfg := Config{
		Tier1Size: 2, Tier2Size: 1,
		Tier2IntervalS: 15, Tier3IntervalS: 60, ReassignIntervalS: 1800,
		MinCandles1m: 5, MinCandles5m: 2,
	}
	return New(cfg, zerolog.Nop())
}

func TestScheduler_ReassignTiers_AssignsByRank(t *testing.T) {
	s := testScheduler()
	now := time.Now().UTC()
	s.ReassignTiers([]string{"A", "B", "C", "D"}, now)

	a, _ := s.Get("A")
	b, _ := s.Get("B")
	c, _ := s.Get("C")
	d, _ := s.Get("D")
	assert.Equal(t, domain.TierWS, a.Tier)
	assert.Equal(t, domain.TierWS, b.Tier)
	assert.Equal(t, domain.TierRESTFast, c.Tier)
	assert.Equal(t, domain.TierRESTSlow, d.Tier)
}

func TestScheduler_ReassignTiers_RemoveBeforeAddOrdering(t *testing.T) {
	s := testScheduler()
	now := time.Now().UTC()
	s.ReassignTiers([]string{"A", "B", "C"}, now) // A,B -> WS, C -> REST_FAST

	var order []string
	s.OnWSRemove(func(symbol string) { order = append(order, "remove:"+symbol) })
	s.OnWSAdd(func(symbol string) { order = append(order, "add:"+symbol) })

	// Promote C into WS, demote B out of WS.
	s.ReassignTiers([]string{"A", "C", "B"}, now)

	require.Len(t, order, 2)
	assert.Equal(t, "remove:B", order[0])
	assert.Equal(t, "add:C", order[1])
}

func TestScheduler_ReassignTiers_IdempotentSameRanking(t *testing.T) {
	s := testScheduler()
	now := time.Now().UTC()
	s.ReassignTiers([]string{"A", "B", "C"}, now)

	var calls int
	s.OnWSAdd(func(symbol string) { calls++ })
	s.OnWSRemove(func(symbol string) { calls++ })

	s.ReassignTiers([]string{"A", "B", "C"}, now)
	assert.Equal(t, 0, calls)
}

func TestScheduler_Warmth_RequiresBothThresholds(t *testing.T) {
	s := testScheduler()
	s.UpdateCandleCounts("FOO-USD", 3, 2)
	assert.False(t, s.IsSymbolWarm("FOO-USD"))

	s.UpdateCandleCounts("FOO-USD", 5, 2)
	assert.True(t, s.IsSymbolWarm("FOO-USD"))
}

func TestScheduler_GetSymbolsNeedingPoll_RespectsIntervalsAndTier(t *testing.T) {
	s := testScheduler()
	now := time.Now().UTC()
	s.ReassignTiers([]string{"A", "B", "C"}, now) // A,B WS, C REST_FAST

	tier2, tier3 := s.GetSymbolsNeedingPoll(now)
	assert.Contains(t, tier2, "C")
	assert.NotContains(t, tier2, "A")
	assert.Empty(t, tier3)

	s.RecordPoll("C", 10, 5, now)
	tier2, _ = s.GetSymbolsNeedingPoll(now)
	assert.NotContains(t, tier2, "C")

	tier2, _ = s.GetSymbolsNeedingPoll(now.Add(16 * time.Second))
	assert.Contains(t, tier2, "C")
}

func TestScheduler_NeedsReassign(t *testing.T) {
	s := testScheduler()
	now := time.Now().UTC()
	assert.True(t, s.NeedsReassign(now))
	s.ReassignTiers([]string{"A"}, now)
	assert.False(t, s.NeedsReassign(now.Add(time.Second)))
	assert.True(t, s.NeedsReassign(now.Add(1801*time.Second)))
}
