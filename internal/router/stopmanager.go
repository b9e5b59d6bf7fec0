package router

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/rs/zerolog"
)

// StopManager owns re-arming of orphaned stops on a periodic health
// check (spec.md §4.11 "The Stop Manager component owns re-arming of
// orphaned stops on a stop_health_check_interval (default 60 s)"). Since
// this engine carries its bracket on the Position rather than a resting
// exchange order (see executor.go's Open), "orphaned" here means a
// tracked position whose stop/TP1/TP2 fields have fallen out of their
// required ordering (domain.Position.ValidBracket) — e.g. after a
// partial close left stale geometry — and needs to be recomputed from
// the position's own entry/current state rather than silently traded
// against a broken bracket.
type StopManager struct {
	mu       sync.Mutex
	router   *Router
	interval time.Duration
	lastRun  time.Time
	log      zerolog.Logger
}

// NewStopManager creates a StopManager bound to router, checking every
// interval (spec.md default 60s, from Config.StopHealthCheckInterval).
func NewStopManager(router *Router, interval time.Duration, log zerolog.Logger) *StopManager {
	return &StopManager{router: router, interval: interval, log: log.With().Str("component", "stop_manager").Logger()}
}

// Run re-arms any active position whose bracket has become invalid,
// throttled to at most once per interval. Re-arming means raising the
// stop to the position's current breakeven/trailing floor — it never
// lowers a stop a trailing update already raised.
func (sm *StopManager) Run(ctx context.Context, now time.Time) {
	sm.mu.Lock()
	if now.Sub(sm.lastRun) < sm.interval {
		sm.mu.Unlock()
		return
	}
	sm.lastRun = now
	sm.mu.Unlock()

	for symbol, pos := range sm.router.registry.ActivePositions() {
		if pos.ValidBracket() {
			continue
		}
		// A stop at or above entry set by the breakeven lock or the
		// trailing update is deliberate; only the TP ordering is checked.
		if (pos.BreakevenLocked || pos.TrailingActive) && pos.EntryPrice <= pos.TP1Price && pos.TP1Price <= pos.TP2Price {
			continue
		}
		repaired := repairBracket(pos)
		sm.router.registry.Update(repaired)
		sm.log.Warn().Str("symbol", symbol).Msg("re-armed an orphaned/invalid stop bracket")
	}
}

// repairBracket restores domain.Position.ValidBracket()'s invariant
// (stop < entry <= tp1 <= tp2) with the minimal change: floor the stop
// just under entry and make sure tp1/tp2 aren't inverted.
func repairBracket(p domain.Position) domain.Position {
	if p.StopPrice >= p.EntryPrice {
		p.StopPrice = p.EntryPrice * 0.99
	}
	if p.TP1Price < p.EntryPrice {
		p.TP1Price = p.EntryPrice
	}
	if p.TP2Price < p.TP1Price {
		p.TP2Price = p.TP1Price
	}
	return p
}
