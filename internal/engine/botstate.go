package engine

import (
	"context"
	"sort"
	"time"

	"github.com/aristath/spotengine/internal/botstate"
	"github.com/aristath/spotengine/internal/domain"
)

// runBotStatePublishTask periodically assembles a fresh BotState and
// swaps it into the store (spec.md §5/§6): the coordinator is the only
// writer, every reader gets an immutable snapshot.
func (c *Coordinator) runBotStatePublishTask(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.BotStatePublishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.deps.BotStateStore.Swap(c.buildBotState())
		}
	}
}

func (c *Coordinator) buildBotState() botstate.BotState {
	now := time.Now().UTC()
	state := botstate.Empty(c.deps.Mode)
	state.Timestamp = now
	state.Phase = "running"
	state.Paused = c.isPaused()

	portfolioValue, err := c.deps.Sync.GetTotalPortfolioValue(context.Background())
	if err != nil {
		c.deps.Throttle.WarnErr("botstate_portfolio_value", err, "failed to read portfolio value for status snapshot")
	}
	state.PortfolioValue = portfolioValue

	snap := c.deps.Sync.Snapshot()
	state.CashBalance = snap.TotalCash
	state.HoldingsValue = snap.TotalCrypto

	active := c.deps.Registry.ActivePositions()
	positions := make([]botstate.PositionView, 0, len(active))
	symbols := make([]string, 0, len(active))
	for symbol := range active {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		positions = append(positions, positionView(active[symbol]))
	}
	state.Positions = positions

	for _, row := range c.burst.get() {
		state.BurstLeaderboard = append(state.BurstLeaderboard, botstate.BurstEntry{
			Symbol:       row.Symbol,
			CombinedRank: row.CombinedRank,
			Score:        row.Score,
		})
	}

	state.Rejections = rejectionsBySymbol(c.deps.RejectionTracker.Events())

	state.Heartbeats = make(map[string]time.Time)
	if c.deps.WSCollector != nil {
		if age := c.deps.WSCollector.Heartbeats().WSLastAge(); age > 0 {
			state.Heartbeats["ws"] = now.Add(-age)
		}
	}

	var restStatsSnap restStats
	if c.deps.RESTPoller != nil {
		s := c.deps.RESTPoller.StatsSnapshot()
		restStatsSnap = restStats{RESTRequests: s.RESTRequests, REST429s: s.REST429s, RateDegraded: s.RateDegraded}
	}
	engineCounters := c.counters.snapshot(restStatsSnap)
	if c.deps.Health != nil {
		h := c.deps.Health.Sample()
		engineCounters.CPUPercent = h.CPUPercent
		engineCounters.MemPercent = h.MemPercent
		engineCounters.UptimeSeconds = h.UptimeSeconds
	} else {
		engineCounters.UptimeSeconds = time.Since(c.startedAt).Seconds()
	}
	state.Engine = engineCounters

	state.KillSwitch = c.deps.KillSwitch.Active()
	state.KillSwitchReason = c.deps.KillSwitch.Reason()

	return state
}

func positionView(p domain.Position) botstate.PositionView {
	return botstate.PositionView{
		Symbol:           p.Symbol,
		StrategyID:       p.StrategyID,
		EntryPrice:       p.EntryPrice,
		CurrentPrice:     p.CurrentPrice,
		SizeUSD:          p.SizeUSD,
		StopPrice:        p.StopPrice,
		TP1Price:         p.TP1Price,
		TP2Price:         p.TP2Price,
		State:            string(p.State),
		UnrealizedPnL:    p.UnrealizedPnL(),
		UnrealizedPnLPct: p.PnLPct(),
		TrailingActive:   p.TrailingActive,
		EntryTime:        p.EntryTime,
	}
}

func rejectionsBySymbol(events []domain.RejectionRecord) map[string][]botstate.RejectionView {
	out := make(map[string][]botstate.RejectionView)
	for _, e := range events {
		out[e.Symbol] = append(out[e.Symbol], botstate.RejectionView{
			Timestamp: e.Timestamp,
			Symbol:    e.Symbol,
			Gate:      string(e.Gate),
			Details:   e.Details,
		})
	}
	return out
}
