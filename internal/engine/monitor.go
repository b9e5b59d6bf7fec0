package engine

import (
	"context"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/aristath/spotengine/internal/router"
)

// runMonitorTask is the ~1Hz router monitor loop (spec.md §5 task 5):
// builds a fresh per-symbol TickContext for every open position and
// hands it to the router, then reconciles the tier bookkeeping against
// whatever the registry still holds open.
func (c *Coordinator) runMonitorTask(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.monitorOnce(ctx, now)
		}
	}
}

func (c *Coordinator) monitorOnce(ctx context.Context, now time.Time) {
	active := c.deps.Registry.ActivePositions()
	ticks := make(map[string]router.TickContext, len(active))
	for symbol := range active {
		buf := c.deps.Buffers.Buffer(symbol)
		last, ok := buf.Last(domain.TF1m)
		if !ok {
			continue
		}
		feat := c.deps.Features.Compute(symbol, buf, 0, now)
		ticks[symbol] = router.TickContext{Price: last.Close, TrendShort: feat.Trend5m}
	}

	c.deps.Router.Tick(ctx, now, ticks)
	c.deps.StopManager.Run(ctx, now)
	c.tierBook.reconcile(c.deps.Registry.ActivePositions())
}
