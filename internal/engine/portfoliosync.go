package engine

import (
	"context"
	"time"
)

// runPortfolioSyncTask is the portfolio sync loop (spec.md §5 task 6):
// live mode refreshes the exchange's authoritative account/portfolio
// breakdown on PortfolioSyncInterval (<=10s); paper mode's state is
// already synchronous on every fill, so this just keeps its snapshot
// age current for the truth-staleness gate.
func (c *Coordinator) runPortfolioSyncTask(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PortfolioSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.deps.Sync.UpdatePortfolioState(ctx); err != nil {
				c.deps.Throttle.WarnErr("portfolio_sync", err, "failed to sync portfolio state")
			}
		}
	}
}
