package risk

import (
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) paths.Layout {
	t.Helper()
	l, err := paths.New(t.TempDir(), domain.ModePaper)
	require.NoError(t, err)
	require.NoError(t, l.EnsureDirs())
	return l
}

func TestDailyStats_RecordTradeAccumulatesWinsAndLosses(t *testing.T) {
	layout := testLayout(t)
	tr, err := NewDailyStatsTracker(layout)
	require.NoError(t, err)

	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	require.NoError(t, tr.RecordTrade(10, now))
	require.NoError(t, tr.RecordTrade(-4, now))

	s := tr.Snapshot(now)
	assert.Equal(t, 2, s.Trades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 6, s.TotalPnL, 1e-9)
	assert.InDelta(t, 10, s.PeakPnL, 1e-9)
	assert.InDelta(t, 4, s.MaxDrawdown, 1e-9)
}

func TestDailyStats_ResetsOnUTCDateChange(t *testing.T) {
	layout := testLayout(t)
	tr, err := NewDailyStatsTracker(layout)
	require.NoError(t, err)

	day1 := time.Date(2026, 7, 29, 23, 0, 0, 0, time.UTC)
	require.NoError(t, tr.RecordTrade(50, day1))

	day2 := time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC)
	s := tr.Snapshot(day2)
	assert.Equal(t, 0, s.Trades)
	assert.Equal(t, 0.0, s.TotalPnL)
}

func TestDailyStats_PersistsAndReloads(t *testing.T) {
	layout := testLayout(t)
	tr, err := NewDailyStatsTracker(layout)
	require.NoError(t, err)
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	require.NoError(t, tr.RecordTrade(20, now))

	reloaded, err := NewDailyStatsTracker(layout)
	require.NoError(t, err)
	s := reloaded.Snapshot(now)
	assert.InDelta(t, 20, s.TotalPnL, 1e-9)
}

func TestDailyStats_BreachedDailyLossExactlyAtLimit(t *testing.T) {
	layout := testLayout(t)
	tr, err := NewDailyStatsTracker(layout)
	require.NoError(t, err)
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	require.NoError(t, tr.RecordTrade(-12, now))

	assert.True(t, tr.BreachedDailyLoss(12, now), "total_pnl == -daily_max_loss_usd must breach (<=)")
	assert.False(t, tr.BreachedDailyLoss(12.01, now))
}

func TestCircuitBreaker_TripsOpenAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	now := time.Now().UTC()
	cb.RecordFailure(now)
	cb.RecordFailure(now)
	assert.True(t, cb.CanTrade(now))
	cb.RecordFailure(now)
	assert.Equal(t, domain.CircuitOpen, cb.State())
	assert.False(t, cb.CanTrade(now))
}

func TestCircuitBreaker_HalfOpenAfterResetThenClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	now := time.Now().UTC()
	cb.RecordFailure(now)
	cb.RecordFailure(now)
	require.Equal(t, domain.CircuitOpen, cb.State())

	later := now.Add(2 * time.Minute)
	assert.True(t, cb.CanTrade(later))
	assert.Equal(t, domain.CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, domain.CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReturnsToOpen(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	now := time.Now().UTC()
	cb.RecordFailure(now)
	cb.RecordFailure(now)
	later := now.Add(2 * time.Minute)
	cb.CanTrade(later) // transitions to half_open

	cb.RecordFailure(later)
	assert.Equal(t, domain.CircuitOpen, cb.State())
}

func TestCooldowns_HardBlocksWithinWindow(t *testing.T) {
	layout := testLayout(t)
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	c, err := NewCooldowns(layout, 60, 300, now)
	require.NoError(t, err)
	require.NoError(t, c.RecordOrder("BTC-USD", now))

	assert.True(t, c.InHardCooldown("BTC-USD", now.Add(30*time.Second)))
	assert.False(t, c.InHardCooldown("BTC-USD", now.Add(61*time.Second)))
}

func TestCooldowns_SoftWindowOutlastsHard(t *testing.T) {
	layout := testLayout(t)
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	c, err := NewCooldowns(layout, 60, 300, now)
	require.NoError(t, err)
	require.NoError(t, c.RecordOrder("BTC-USD", now))

	at90s := now.Add(90 * time.Second)
	assert.False(t, c.InHardCooldown("BTC-USD", at90s))
	assert.True(t, c.InSoftCooldown("BTC-USD", at90s))
}

func TestCooldowns_ExpiredEntriesPurgedOnLoad(t *testing.T) {
	layout := testLayout(t)
	seedTime := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	c, err := NewCooldowns(layout, 60, 300, seedTime)
	require.NoError(t, err)
	require.NoError(t, c.RecordOrder("BTC-USD", seedTime))

	muchLater := seedTime.Add(time.Hour)
	reloaded, err := NewCooldowns(layout, 60, 300, muchLater)
	require.NoError(t, err)
	assert.False(t, reloaded.InHardCooldown("BTC-USD", muchLater), "entries older than hard_seconds should be purged on load")
}

func TestKillSwitch_EngageAndDisengage(t *testing.T) {
	var ks KillSwitch
	assert.False(t, ks.Active())
	ks.Engage("manual halt")
	assert.True(t, ks.Active())
	assert.Equal(t, "manual halt", ks.Reason())
	ks.Disengage()
	assert.False(t, ks.Active())
}

func TestRejectionTracker_CountsEveryRejectionEvenWhenCollapsed(t *testing.T) {
	rt := NewRejectionTracker()
	now := time.Now().UTC()
	rec := domain.RejectionRecord{Timestamp: now, Symbol: "BTC-USD", Gate: domain.GateReasonScore, Details: "score 40 < 60"}

	appended1 := rt.Record(rec)
	rec2 := rec
	rec2.Timestamp = now.Add(time.Second)
	appended2 := rt.Record(rec2)

	assert.True(t, appended1)
	assert.False(t, appended2, "identical triple within 8s should collapse")
	assert.Equal(t, 2, rt.Counts()[domain.GateReasonScore], "counters increment regardless of collapsing")
	assert.Len(t, rt.Events(), 1)
}

func TestRejectionTracker_MaxPositionsUsesLongerCollapseWindow(t *testing.T) {
	rt := NewRejectionTracker()
	now := time.Now().UTC()
	rec := domain.RejectionRecord{Timestamp: now, Symbol: "BTC-USD", Gate: domain.GateReasonLimits, Details: "max positions (12) reached"}

	rt.Record(rec)
	rec2 := rec
	rec2.Timestamp = now.Add(30 * time.Second)
	appended := rt.Record(rec2)

	assert.False(t, appended, "max positions should collapse for 60s, not just 8s")
}

func TestRejectionTracker_EventStreamBoundedAt50(t *testing.T) {
	rt := NewRejectionTracker()
	now := time.Now().UTC()
	for i := 0; i < 60; i++ {
		rt.Record(domain.RejectionRecord{
			Timestamp: now.Add(time.Duration(i) * time.Minute),
			Symbol:    "BTC-USD", Gate: domain.GateReasonScore, Details: "distinct",
		})
	}
	assert.Len(t, rt.Events(), 50)
}
