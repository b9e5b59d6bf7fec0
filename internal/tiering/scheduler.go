// Package tiering implements the symbol tier scheduler (spec.md §4.4):
// assigns each known symbol to {WS, REST_FAST, REST_SLOW, UNASSIGNED},
// tracks warmth and poll due-ness, and reassigns membership on a fixed
// cadence with on_ws_remove-before-on_ws_add handoff ordering. Grounded
// on the teacher's internal/scheduler/base pattern (ticker-driven,
// explicit counters) generalized from job scheduling to symbol tiering.
package tiering

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/rs/zerolog"
)

// Config holds the scheduler's tunables (spec.md §4.4).
type Config struct {
	Tier1Size         int
	Tier2Size         int
	Tier2IntervalS    int
	Tier3IntervalS    int
	ReassignIntervalS int
	MinCandles1m      int
	MinCandles5m      int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Tier1Size:         75,
		Tier2Size:         15,
		Tier2IntervalS:    15,
		Tier3IntervalS:    60,
		ReassignIntervalS: 1800,
		MinCandles1m:      5,
		MinCandles5m:      2,
	}
}

// SymbolTierInfo tracks one symbol's tier membership and warmth state.
// Mirrors spec.md §3's SymbolTierInfo entity.
type SymbolTierInfo struct {
	Symbol          string
	Tier            domain.TierLevel
	LastPolled      time.Time
	CandleCount1m   int
	CandleCount5m   int
	IsWarm          bool
	IsBackfilling   bool
	BackfillStarted time.Time
}

func (s *SymbolTierInfo) recomputeWarmth(cfg Config) {
	s.IsWarm = s.CandleCount1m >= cfg.MinCandles1m && s.CandleCount5m >= cfg.MinCandles5m
}

// Stats holds running reassignment counters.
type Stats struct {
	Promotions    int
	Demotions     int
	TotalReassigns int
}

// WSAddFunc / WSRemoveFunc are fired during reassign_tiers, in the
// guaranteed order (all removes, then all adds) the collector relies on
// to stay under its subscription quota.
type WSAddFunc func(symbol string)
type WSRemoveFunc func(symbol string)

// Scheduler is the process-wide symbol tier scheduler.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	symbols  map[string]*SymbolTierInfo
	stats    Stats
	lastReassign time.Time
	log      zerolog.Logger

	onWSAdd    WSAddFunc
	onWSRemove WSRemoveFunc
}

// New creates a Scheduler with no known symbols yet.
func New(cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		symbols: make(map[string]*SymbolTierInfo),
		log:     log.With().Str("component", "tier_scheduler").Logger(),
	}
}

// OnWSAdd / OnWSRemove register the collector's subscribe/unsubscribe
// callbacks, invoked synchronously from ReassignTiers.
func (s *Scheduler) OnWSAdd(f WSAddFunc)       { s.mu.Lock(); defer s.mu.Unlock(); s.onWSAdd = f }
func (s *Scheduler) OnWSRemove(f WSRemoveFunc) { s.mu.Lock(); defer s.mu.Unlock(); s.onWSRemove = f }

// ensure returns (creating if needed) the SymbolTierInfo for symbol. Once
// created, an entry is never destroyed within a session (spec.md §3).
func (s *Scheduler) ensure(symbol string) *SymbolTierInfo {
	info, ok := s.symbols[symbol]
	if !ok {
		info = &SymbolTierInfo{Symbol: symbol, Tier: domain.TierUnassigned}
		s.symbols[symbol] = info
	}
	return info
}

// GetSymbolsNeedingPoll returns the symbols whose REST_FAST and
// REST_SLOW poll intervals have elapsed. The WS tier never appears here.
func (s *Scheduler) GetSymbolsNeedingPoll(now time.Time) (tier2Due, tier3Due []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for symbol, info := range s.symbols {
		switch info.Tier {
		case domain.TierRESTFast:
			if s.due(info, s.cfg.Tier2IntervalS, now) {
				tier2Due = append(tier2Due, symbol)
			}
		case domain.TierRESTSlow:
			if s.due(info, s.cfg.Tier3IntervalS, now) {
				tier3Due = append(tier3Due, symbol)
			}
		}
	}
	sort.Strings(tier2Due)
	sort.Strings(tier3Due)
	return tier2Due, tier3Due
}

func (s *Scheduler) due(info *SymbolTierInfo, intervalS int, now time.Time) bool {
	if info.LastPolled.IsZero() {
		return true
	}
	return !now.Before(info.LastPolled.Add(time.Duration(intervalS) * time.Second))
}

// RecordPoll updates last_polled and candle counts/warmth for symbol
// after a REST poll completes.
func (s *Scheduler) RecordPoll(symbol string, c1m, c5m int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.ensure(symbol)
	info.LastPolled = now
	info.CandleCount1m = c1m
	info.CandleCount5m = c5m
	info.recomputeWarmth(s.cfg)
}

// UpdateCandleCounts is called by the buffer after each candle add,
// independent of polling (WS symbols get their counts this way).
func (s *Scheduler) UpdateCandleCounts(symbol string, c1m, c5m int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.ensure(symbol)
	info.CandleCount1m = c1m
	info.CandleCount5m = c5m
	info.recomputeWarmth(s.cfg)
}

// SymbolsNeedingBackfill returns every symbol currently flagged
// IsBackfilling, sorted for deterministic scan order, for the background
// backfill task to pick up.
func (s *Scheduler) SymbolsNeedingBackfill() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for symbol, info := range s.symbols {
		if info.IsBackfilling {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}

// IsSymbolWarm reports whether symbol currently satisfies the warmth
// thresholds (gate 9, spec.md §4.9).
func (s *Scheduler) IsSymbolWarm(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.symbols[symbol]
	return ok && info.IsWarm
}

// SymbolsInTier returns every symbol currently assigned tier, sorted.
// Used after a ReassignTiers pass to hand the collector the full WS set
// for a single UpdateSymbols call rather than patching it symbol by
// symbol.
func (s *Scheduler) SymbolsInTier(tier domain.TierLevel) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for symbol, info := range s.symbols {
		if info.Tier == tier {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}

// Get returns a copy of symbol's current tier info, if known.
func (s *Scheduler) Get(symbol string) (SymbolTierInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.symbols[symbol]
	if !ok {
		return SymbolTierInfo{}, false
	}
	return *info, true
}

// NeedsReassign reports whether reassign_interval_s has elapsed since the
// last reassignment (or none has ever run).
func (s *Scheduler) NeedsReassign(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReassign.IsZero() {
		return true
	}
	return !now.Before(s.lastReassign.Add(time.Duration(s.cfg.ReassignIntervalS) * time.Second))
}

// ReassignTiers assigns the top Tier1Size ranked symbols to WS, the next
// Tier2Size to REST_FAST, and the rest to REST_SLOW. rankedSymbols must
// already be ordered best-first. All on_ws_remove callbacks fire before
// any on_ws_add callback (spec.md §4.4/§5 ordering guarantee). Calling
// this twice in a row with the same ranking fires zero callbacks the
// second time (idempotence, spec.md §8 property 7).
func (s *Scheduler) ReassignTiers(rankedSymbols []string, now time.Time) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	newTierOf := make(map[string]domain.TierLevel, len(rankedSymbols))
	for i, symbol := range rankedSymbols {
		switch {
		case i < s.cfg.Tier1Size:
			newTierOf[symbol] = domain.TierWS
		case i < s.cfg.Tier1Size+s.cfg.Tier2Size:
			newTierOf[symbol] = domain.TierRESTFast
		default:
			newTierOf[symbol] = domain.TierRESTSlow
		}
	}

	var removed, added []string
	promotions, demotions := 0, 0

	for symbol, newTier := range newTierOf {
		info := s.ensure(symbol)
		oldTier := info.Tier
		if oldTier == newTier {
			continue
		}
		if oldTier == domain.TierWS && newTier != domain.TierWS {
			removed = append(removed, symbol)
		}
		if newTier == domain.TierWS && oldTier != domain.TierWS {
			added = append(added, symbol)
		}
		if tierRank(newTier) < tierRank(oldTier) {
			promotions++
		} else if tierRank(newTier) > tierRank(oldTier) {
			demotions++
		}
		info.Tier = newTier
	}

	sort.Strings(removed)
	sort.Strings(added)

	if s.onWSRemove != nil {
		for _, symbol := range removed {
			s.onWSRemove(symbol)
		}
	}
	if s.onWSAdd != nil {
		for _, symbol := range added {
			info := s.ensure(symbol)
			info.IsBackfilling = true
			info.BackfillStarted = now
			s.onWSAdd(symbol)
		}
	}

	s.stats.Promotions += promotions
	s.stats.Demotions += demotions
	s.stats.TotalReassigns++
	s.lastReassign = now

	return s.stats
}

// tierRank orders tiers best-to-worst for promotion/demotion accounting.
func tierRank(t domain.TierLevel) int {
	switch t {
	case domain.TierWS:
		return 0
	case domain.TierRESTFast:
		return 1
	case domain.TierRESTSlow:
		return 2
	default:
		return 3
	}
}

// StatsSnapshot returns a copy of the running reassignment counters.
func (s *Scheduler) StatsSnapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// BackfillComplete clears the backfilling flag for symbol once its
// history has been filled.
func (s *Scheduler) BackfillComplete(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.symbols[symbol]; ok {
		info.IsBackfilling = false
	}
}
