// Package engine wires every other component into the single
// coordinating loop and long-running task set spec.md §5 describes:
// a feature/strategy tick over warm symbols, a router monitor pass, a
// universe rebuild timer, a portfolio sync loop, and a control-surface
// drain, all cooperating around the shared registry/risk state rather
// than a shared database transaction. Grounded on the teacher's
// internal/queue/scheduler.go ticker-per-task shape, generalized from
// job enqueueing to direct per-tick execution since this engine's
// "jobs" (one signal evaluation) must run to completion synchronously
// per spec.md §5's ordering guarantees.
package engine

import "time"

// Config is the coordinator's own cadence knobs, mirroring spec.md §5's
// named tasks 3-6 (the WS reader and REST poller own their own cadence
// inside internal/collectors).
type Config struct {
	TickInterval             time.Duration // feature/strategy tick loop, ~1Hz
	MonitorInterval          time.Duration // router monitor loop, ~1Hz
	UniverseReassignInterval time.Duration
	PortfolioSyncInterval    time.Duration // live mode only; paper is synchronous
	BotStatePublishInterval  time.Duration
	BackfillInterval         time.Duration
	SmokeTestInterval        time.Duration
	HealthSampleInterval     time.Duration
	BackupInterval           time.Duration
	RESTPollInterval         time.Duration

	ShutdownDrainTimeout time.Duration
}

// DefaultConfig mirrors spec.md §5's stated cadences.
func DefaultConfig() Config {
	return Config{
		TickInterval:             time.Second,
		MonitorInterval:          time.Second,
		UniverseReassignInterval: 30 * time.Minute,
		PortfolioSyncInterval:    10 * time.Second,
		BotStatePublishInterval:  2 * time.Second,
		BackfillInterval:         5 * time.Minute,
		SmokeTestInterval:        6 * time.Hour,
		HealthSampleInterval:     30 * time.Second,
		BackupInterval:           24 * time.Hour,
		RESTPollInterval:         20 * time.Second,
		ShutdownDrainTimeout:     10 * time.Second,
	}
}
