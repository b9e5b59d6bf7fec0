// Package backfill runs the two opportunistic background tasks that keep
// the tiered scheduler honest: pulling historical candles for a symbol
// that just got promoted to the WS tier (so its buffers aren't cold), and
// periodically smoke-testing every enabled strategy against a synthetic
// fixture so a panicking or NaN-emitting strategy surfaces in logs before
// it ever sees live data (spec.md §4.15).
package backfill

import "time"

// Config tunes both background tasks.
type Config struct {
	// LookbackHours is how much 1m history to request per promoted symbol.
	LookbackHours int
	// GranularitySeconds is the bar width requested from the exchange,
	// matching domain.TF1m.
	GranularitySeconds int
	// PollInterval is not read by Task; the engine schedules Task.Run on
	// its own BackfillInterval.
	PollInterval time.Duration
	// SmokeTestSchedule is a robfig/cron expression, default hourly.
	SmokeTestSchedule string
}

// DefaultConfig matches spec.md §4.15's defaults.
func DefaultConfig() Config {
	return Config{
		LookbackHours:      48,
		GranularitySeconds: 60,
		PollInterval:       10 * time.Second,
		SmokeTestSchedule:  "@hourly",
	}
}
