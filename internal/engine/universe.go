package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/universe"
)

// burstBoard guards the most recent burst leaderboard so the botstate
// publisher can read it without racing the universe rebuild task.
type burstBoard struct {
	mu      sync.Mutex
	entries []botStateBurstEntry
}

// botStateBurstEntry mirrors botstate.BurstEntry; kept local so this
// file doesn't need to import botstate just to carry two floats.
type botStateBurstEntry struct {
	Symbol       string
	CombinedRank float64
	Score        float64
}

func (b *burstBoard) set(entries []botStateBurstEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = entries
}

func (b *burstBoard) get() []botStateBurstEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]botStateBurstEntry(nil), b.entries...)
}

// runUniverseTask is the universe scanner timer (spec.md §5 task 3):
// rebuilds the eligible set, reassigns tiers, and recomputes every
// warm symbol's burst metrics for the leaderboard, on
// UniverseReassignInterval.
func (c *Coordinator) runUniverseTask(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.UniverseReassignInterval)
	defer ticker.Stop()

	c.universeOnce(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.universeOnce(ctx, now)
		}
	}
}

func (c *Coordinator) universeOnce(ctx context.Context, now time.Time) {
	if c.deps.Products == nil {
		c.log.Warn().Msg("no product lister configured, skipping universe rebuild")
		c.computeBurstLeaderboard(now)
		return
	}

	products, err := c.deps.Products(ctx)
	if err != nil {
		c.deps.Throttle.WarnErr("universe_products", err, "failed to list exchange products")
		return
	}

	infos := c.deps.Universe.Filter(products)
	ranked := c.deps.Universe.Rank(infos)
	rankedSymbols := universe.RankedSymbols(ranked)

	for _, p := range products {
		c.symbolMu.Lock()
		c.symbolBase[p.Symbol] = p.BaseAsset
		c.symbolMu.Unlock()
	}

	c.deps.Tiering.ReassignTiers(rankedSymbols, now)

	if c.deps.WSCollector != nil {
		if err := c.deps.WSCollector.UpdateSymbols(c.wsTier1Symbols()); err != nil {
			c.deps.Throttle.WarnErr("ws_update_symbols", err, "failed to update ws subscriptions")
		}
	}

	c.computeBurstLeaderboard(now)
}

// computeBurstLeaderboard recomputes spec.md §4.6 step 6's per-symbol
// burst metrics for every warm symbol and keeps the top entries for the
// dashboard leaderboard.
func (c *Coordinator) computeBurstLeaderboard(now time.Time) {
	var rows []botStateBurstEntry
	for _, symbol := range c.deps.Buffers.Symbols() {
		if !c.deps.Tiering.IsSymbolWarm(symbol) {
			continue
		}
		buf := c.deps.Buffers.Buffer(symbol)
		m := universe.ComputeBurstMetrics(symbol, buf, now)
		combined := m.VolumeSpikeRatio + m.RangeSpikeRatio
		rows = append(rows, botStateBurstEntry{
			Symbol:       symbol,
			CombinedRank: combined,
			Score:        m.VolumeSpikeRatio * m.RangeSpikeRatio,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CombinedRank > rows[j].CombinedRank
	})

	const leaderboardSize = 20
	if len(rows) > leaderboardSize {
		rows = rows[:leaderboardSize]
	}
	c.burst.set(rows)
}

// wsTier1Symbols returns the current full WS-tier membership, used right
// after ReassignTiers to drive a single collector UpdateSymbols call.
func (c *Coordinator) wsTier1Symbols() []string {
	return c.deps.Tiering.SymbolsInTier(domain.TierWS)
}
