package engine

import (
	"sync"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/registry"
	"github.com/aristath/spotengine/internal/sizing"
)

// tierBook tracks which sizing tier each currently open position was
// sized into. domain.Position carries no Tier field of its own (a
// position's tier is a sizing-time decision, not something the registry
// persists), so the coordinator keeps this small side table to feed
// sizing.Sizer.Plan its per-tier open-position counts (spec.md §4.10
// step 1). It is kept in sync by recording on every successful
// router.Open and pruned against the registry's live set on each
// monitor pass, the same reconcile-against-source-of-truth pattern
// registry.Registry itself uses for exchange holdings.
type tierBook struct {
	mu    sync.Mutex
	tiers map[string]domain.SizeTier
}

func newTierBook() *tierBook {
	return &tierBook{tiers: make(map[string]domain.SizeTier)}
}

func (b *tierBook) record(symbol string, tier domain.SizeTier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tiers[symbol] = tier
}

// reconcile drops any tracked symbol no longer present in active,
// keeping the book from leaking entries across closes.
func (b *tierBook) reconcile(active map[string]domain.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for symbol := range b.tiers {
		if _, ok := active[symbol]; !ok {
			delete(b.tiers, symbol)
		}
	}
}

func (b *tierBook) counts() sizing.TierCounts {
	b.mu.Lock()
	defer b.mu.Unlock()
	var c sizing.TierCounts
	for _, t := range b.tiers {
		switch t {
		case domain.SizeTierScout:
			c.Scout++
		case domain.SizeTierNormal:
			c.Normal++
		case domain.SizeTierStrong:
			c.Strong++
		case domain.SizeTierWhale:
			c.Whale++
		}
	}
	return c
}

// registrySnapshotSource narrows *registry.Registry to what reconcile needs,
// letting tests fake it without a real Registry.
type registrySnapshotSource interface {
	ActivePositions() map[string]domain.Position
}

var _ registrySnapshotSource = (*registry.Registry)(nil)
