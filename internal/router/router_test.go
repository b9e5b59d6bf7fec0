package router

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/events"
	"github.com/aristath/spotengine/internal/exchangeclient"
	"github.com/aristath/spotengine/internal/exchangesync"
	"github.com/aristath/spotengine/internal/paths"
	"github.com/aristath/spotengine/internal/registry"
	"github.com/aristath/spotengine/internal/sizing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, *exchangeclient.PaperClient, *exchangesync.Paper, *registry.Registry) {
	t.Helper()
	layout, err := paths.New(t.TempDir(), domain.ModePaper)
	require.NoError(t, err)
	require.NoError(t, layout.EnsureDirs())

	client := exchangeclient.NewPaperClient(0)
	sync, err := exchangesync.NewPaper(layout, 10000, true, 1.0, zerolog.Nop())
	require.NoError(t, err)
	reg := registry.New(registry.DefaultLimits())
	bus := events.NewBus(zerolog.Nop())
	recorder, err := events.NewRecorder(layout.LogsDir(), bus)
	require.NoError(t, err)

	r := New(DefaultConfig(), domain.ModePaper, client, sync, reg, recorder, zerolog.Nop())
	return r, client, sync, reg
}

func testPlan(symbol string, entry, stop, tp1, tp2 float64) sizing.TradePlan {
	return sizing.TradePlan{
		Symbol: symbol, Tier: domain.SizeTierNormal, SizeUSD: 100, EntryPrice: entry,
		StopPrice: stop, TP1Price: tp1, TP2Price: tp2,
		TimeStopDeadline: time.Now().UTC().Add(24 * time.Hour),
	}
}

func TestRouter_OpenFillsAndRegistersPosition(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)

	pos, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 110, 120), domain.SignalDailyMomentum)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionOpen, pos.State)
	assert.True(t, reg.HasActivePosition("BTC-USD"))
}

func TestRouter_TickClosesOnStopHit(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)
	_, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 110, 120), domain.SignalDailyMomentum)
	require.NoError(t, err)

	client.SetPrice("BTC-USD", 94)
	r.Tick(context.Background(), time.Now().UTC(), map[string]TickContext{"BTC-USD": {Price: 94}})

	assert.False(t, reg.HasPosition("BTC-USD"))
}

func TestRouter_TickClosesOnTP2Hit(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)
	_, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 110, 120), domain.SignalDailyMomentum)
	require.NoError(t, err)

	client.SetPrice("BTC-USD", 121)
	r.Tick(context.Background(), time.Now().UTC(), map[string]TickContext{"BTC-USD": {Price: 121}})

	assert.False(t, reg.HasPosition("BTC-USD"))
}

func TestRouter_TickClosesOnTimeStop(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)
	plan := testPlan("BTC-USD", 100, 95, 110, 120)
	plan.TimeStopDeadline = time.Now().UTC().Add(-time.Minute)
	_, err := r.Open(context.Background(), plan, domain.SignalDailyMomentum)
	require.NoError(t, err)

	client.SetPrice("BTC-USD", 101)
	r.Tick(context.Background(), time.Now().UTC(), map[string]TickContext{"BTC-USD": {Price: 101}})

	assert.False(t, reg.HasPosition("BTC-USD"))
}

func TestRouter_TickClosesOnThesisInvalidation(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)
	_, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 110, 120), domain.SignalDailyMomentum)
	require.NoError(t, err)

	client.SetPrice("BTC-USD", 102)
	r.Tick(context.Background(), time.Now().UTC(), map[string]TickContext{"BTC-USD": {Price: 102, TrendShort: -0.05}})

	assert.False(t, reg.HasPosition("BTC-USD"))
}

func TestRouter_TP1PartialClosesHalfAndMovesStopToBreakeven(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)
	_, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 110, 120), domain.SignalDailyMomentum)
	require.NoError(t, err)

	client.SetPrice("BTC-USD", 111)
	r.Tick(context.Background(), time.Now().UTC(), map[string]TickContext{"BTC-USD": {Price: 111}})

	pos, ok := reg.Get("BTC-USD")
	require.True(t, ok, "remainder should still be tracked after a partial close")
	assert.Equal(t, domain.PositionPartialClosed, pos.State)
	assert.True(t, pos.BreakevenLocked)
	assert.InDelta(t, 0.5, pos.SizeQty, 1e-6, "half the original qty should remain")
	assert.Greater(t, pos.StopPrice, 100.0, "stop should have moved to breakeven+fee buffer")
}

func TestRouter_TrailingStopActivatesAndRatchetsUp(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)
	_, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 250, 400), domain.SignalDailyMomentum)
	require.NoError(t, err)

	// unrealized R = (170-100)/5 = 14, well past TrailStartR (1.5): trailing
	// activates at 60% of the 170 high (above the breakeven-locked stop).
	client.SetPrice("BTC-USD", 170)
	r.Tick(context.Background(), time.Now().UTC(), map[string]TickContext{"BTC-USD": {Price: 170}})

	pos, ok := reg.Get("BTC-USD")
	require.True(t, ok)
	assert.True(t, pos.TrailingActive)
	firstStop := pos.StopPrice

	client.SetPrice("BTC-USD", 200)
	r.Tick(context.Background(), time.Now().UTC(), map[string]TickContext{"BTC-USD": {Price: 200}})
	pos2, ok := reg.Get("BTC-USD")
	require.True(t, ok)
	assert.Greater(t, pos2.StopPrice, firstStop, "trailing stop should ratchet up with a new high")
}

func TestRouter_CloseResetsStrategyState(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	var resetSymbol, resetStrategy string
	r.SetResetFunc(func(strategyID, symbol string) { resetStrategy = strategyID; resetSymbol = symbol })

	client.SetPrice("BTC-USD", 100)
	_, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 110, 120), domain.SignalDailyMomentum)
	require.NoError(t, err)

	client.SetPrice("BTC-USD", 94)
	r.Tick(context.Background(), time.Now().UTC(), map[string]TickContext{"BTC-USD": {Price: 94}})

	assert.Equal(t, "BTC-USD", resetSymbol)
	assert.Equal(t, string(domain.SignalDailyMomentum), resetStrategy)
	_ = reg
}

func TestBatcher_RanksAndKeepsHigherScoredDuplicate(t *testing.T) {
	b := NewBatcher(Config{BatchWindowSeconds: time.Second, MaxNewPerBatch: 5})
	now := time.Now().UTC()
	b.Add(BatchCandidate{Plan: sizing.TradePlan{Symbol: "BTC-USD"}, Score: 50, QueuedAt: now})
	b.Add(BatchCandidate{Plan: sizing.TradePlan{Symbol: "BTC-USD"}, Score: 90, QueuedAt: now})
	b.Add(BatchCandidate{Plan: sizing.TradePlan{Symbol: "ETH-USD"}, Score: 70, QueuedAt: now})

	out := b.Flush(10)
	require.Len(t, out, 2)
	assert.Equal(t, "BTC-USD", out[0].Plan.Symbol, "higher combined_rank (score 90) should rank first")
	assert.Equal(t, 90.0, out[0].Score)
}

func TestBatcher_FlushRespectsAvailableSlotsAndMaxNew(t *testing.T) {
	b := NewBatcher(Config{BatchWindowSeconds: time.Second, MaxNewPerBatch: 1})
	now := time.Now().UTC()
	b.Add(BatchCandidate{Plan: sizing.TradePlan{Symbol: "BTC-USD"}, Score: 50, QueuedAt: now})
	b.Add(BatchCandidate{Plan: sizing.TradePlan{Symbol: "ETH-USD"}, Score: 90, QueuedAt: now})

	out := b.Flush(10)
	assert.Len(t, out, 1, "max_new_per_batch should cap the flush even with more slots available")
}

func TestStopManager_RepairsInvertedBracket(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)
	_, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 110, 120), domain.SignalDailyMomentum)
	require.NoError(t, err)

	broken, ok := reg.Get("BTC-USD")
	require.True(t, ok)
	broken.StopPrice = 105 // now >= entry, invalid
	reg.Update(broken)

	sm := NewStopManager(r, time.Millisecond, zerolog.Nop())
	sm.Run(context.Background(), time.Now().UTC())

	repaired, ok := reg.Get("BTC-USD")
	require.True(t, ok)
	assert.True(t, repaired.ValidBracket())
}

func TestStopManager_ThrottledToOncePerInterval(t *testing.T) {
	r, client, _, reg := newTestRouter(t)
	client.SetPrice("BTC-USD", 100)
	_, err := r.Open(context.Background(), testPlan("BTC-USD", 100, 95, 110, 120), domain.SignalDailyMomentum)
	require.NoError(t, err)

	broken, _ := reg.Get("BTC-USD")
	broken.StopPrice = 105
	reg.Update(broken)

	sm := NewStopManager(r, time.Hour, zerolog.Nop())
	now := time.Now().UTC()
	sm.Run(context.Background(), now)

	stillBroken, _ := reg.Get("BTC-USD")
	stillBroken.StopPrice = 106 // re-break it
	reg.Update(stillBroken)

	sm.Run(context.Background(), now.Add(time.Minute)) // within the hour-long throttle window
	notYetRepaired, _ := reg.Get("BTC-USD")
	assert.False(t, notYetRepaired.ValidBracket(), "second run within the throttle window should be a no-op")
}

func TestBatcher_ReadyToFlushRespectsWindow(t *testing.T) {
	b := NewBatcher(Config{BatchWindowSeconds: time.Minute, MaxNewPerBatch: 5})
	now := time.Now().UTC()
	b.Add(BatchCandidate{Plan: sizing.TradePlan{Symbol: "BTC-USD"}, QueuedAt: now})
	assert.False(t, b.ReadyToFlush(now.Add(time.Second)))
	assert.True(t, b.ReadyToFlush(now.Add(2*time.Minute)))
}
