// Package risk implements the Risk State component (spec.md §4.14):
// DailyStats, CircuitBreaker, Cooldowns, KillSwitch, and RejectionTracker.
// Grounded on the teacher's process-wide singleton state holders
// (internal/modules/trading/safety_service.go's own daily-loss and
// consecutive-failure tracking), generalized to the persisted, atomic-
// JSON-backed shape this spec names.
package risk

import (
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/paths"
)

// DailyStats is the persisted daily trading accounting (spec.md §3,
// §4.14). Auto-resets on UTC date change.
type DailyStats struct {
	StatsDate    string  `json:"stats_date"` // YYYY-MM-DD, UTC
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	TotalPnL     float64 `json:"total_pnl"`
	TotalWinPnL  float64 `json:"total_win_pnl"`
	TotalLossPnL float64 `json:"total_loss_pnl"`
	PeakPnL      float64 `json:"peak_pnl"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	BiggestWin   float64 `json:"biggest_win"`
	BiggestLoss  float64 `json:"biggest_loss"`
}

// DailyStatsTracker is the mutex-guarded, disk-backed owner of one
// DailyStats value (spec.md §3 "process-wide singletons with disk
// backing").
type DailyStatsTracker struct {
	mu    sync.RWMutex
	path  string
	stats DailyStats
}

// NewDailyStatsTracker loads (or seeds) today's stats from path.
func NewDailyStatsTracker(layout paths.Layout) (*DailyStatsTracker, error) {
	t := &DailyStatsTracker{path: layout.DailyStatsFile()}
	var loaded DailyStats
	ok, err := paths.ReadJSON(t.path, &loaded)
	if err != nil {
		return nil, err
	}
	if ok {
		t.stats = loaded
	}
	now := time.Now().UTC()
	t.checkReset(now)
	return t, t.persist()
}

func (t *DailyStatsTracker) persist() error {
	return paths.WriteJSONAtomic(t.path, t.stats)
}

// checkReset zeroes the accounting the instant the UTC calendar date
// rolls over. Caller must hold the write lock.
func (t *DailyStatsTracker) checkReset(now time.Time) {
	today := now.Format("2006-01-02")
	if t.stats.StatsDate == today {
		return
	}
	t.stats = DailyStats{StatsDate: today}
}

// RecordTrade is DailyStats's only mutator (spec.md §4.14): appends pnl
// to the day's accounting, recomputing peak/drawdown, and persists
// atomically. now is threaded through (rather than time.Now()) so the
// UTC-rollover check is deterministic in tests.
func (t *DailyStatsTracker) RecordTrade(pnl float64, now time.Time) error {
	t.mu.Lock()
	t.checkReset(now)

	t.stats.Trades++
	t.stats.TotalPnL += pnl
	if pnl >= 0 {
		t.stats.Wins++
		t.stats.TotalWinPnL += pnl
		if pnl > t.stats.BiggestWin {
			t.stats.BiggestWin = pnl
		}
	} else {
		t.stats.Losses++
		t.stats.TotalLossPnL += pnl
		if pnl < t.stats.BiggestLoss {
			t.stats.BiggestLoss = pnl
		}
	}

	if t.stats.TotalPnL > t.stats.PeakPnL {
		t.stats.PeakPnL = t.stats.TotalPnL
	}
	drawdown := t.stats.PeakPnL - t.stats.TotalPnL
	if drawdown > t.stats.MaxDrawdown {
		t.stats.MaxDrawdown = drawdown
	}

	snapshot := t.stats
	t.mu.Unlock()
	return paths.WriteJSONAtomic(t.path, snapshot)
}

// Snapshot returns the current DailyStats, checking for a UTC rollover
// first so a caller that only reads (never trades) still sees a reset
// day.
func (t *DailyStatsTracker) Snapshot(now time.Time) DailyStats {
	t.mu.Lock()
	t.checkReset(now)
	s := t.stats
	t.mu.Unlock()
	return s
}

// BreachedDailyLoss implements Gate 1's predicate (spec.md §4.9 "Gate 1:
// DailyStats.total_pnl <= -daily_max_loss_usd").
func (t *DailyStatsTracker) BreachedDailyLoss(dailyMaxLossUSD float64, now time.Time) bool {
	s := t.Snapshot(now)
	return s.TotalPnL <= -dailyMaxLossUSD
}
