package engine

import (
	"context"
	"strconv"
	"time"
)

// runBackfillTask drives the background history backfill (spec.md §4.15)
// for whatever symbols the tier scheduler currently has flagged
// is_backfilling, on BackfillInterval.
func (c *Coordinator) runBackfillTask(ctx context.Context) {
	if c.deps.Backfill == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.BackfillInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.deps.Backfill.Run(ctx, now)
		}
	}
}

// runSmokeTestTask runs the periodic strategy smoke test (spec.md
// §4.16): every registered strategy is run once against a synthetic
// buffer to catch a panic or a non-finite score before it ever reaches
// live symbols. SmokeTester owns its own cron schedule; this task just
// keeps that cron alive for the coordinator's lifetime and stops it on
// shutdown.
func (c *Coordinator) runSmokeTestTask(ctx context.Context) {
	if c.deps.SmokeTester == nil {
		return
	}
	schedule := smokeTestCronSchedule(c.cfg.SmokeTestInterval)
	cr, err := c.deps.SmokeTester.StartCron(schedule)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to start strategy smoke test cron")
		return
	}
	defer cr.Stop()

	<-ctx.Done()
}

// smokeTestCronSchedule converts the configured interval into a cron
// expression; anything under 24h runs on the hour every N hours, since
// the smoke test itself is cheap and sub-hour precision isn't needed.
func smokeTestCronSchedule(interval time.Duration) string {
	hours := int(interval / time.Hour)
	if hours < 1 {
		hours = 1
	}
	if hours >= 24 {
		return "0 0 * * *"
	}
	return "0 */" + strconv.Itoa(hours) + " * * *"
}

// runHealthTask samples process CPU/RAM on HealthSampleInterval. The
// sample itself is read directly by buildBotState; this task's only job
// is to keep the sampler warm (gopsutil's CPU sample blocks ~100ms) off
// the botstate publish path's critical timing.
func (c *Coordinator) runHealthTask(ctx context.Context) {
	if c.deps.Health == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.HealthSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.deps.Health.Sample()
		}
	}
}

// runBackupTask creates and uploads a backup of the data directory
// (candles/ excluded) on BackupInterval (spec.md §4.18, ambient durability).
func (c *Coordinator) runBackupTask(ctx context.Context) {
	if c.deps.Backup == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.BackupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.deps.Backup.CreateAndUpload(ctx); err != nil {
				c.deps.Throttle.WarnErr("backup", err, "failed to create/upload backup")
			}
		}
	}
}
