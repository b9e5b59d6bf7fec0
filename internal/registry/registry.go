// Package registry implements the Position Registry (spec.md §4.12,
// §3): the single source of truth for tracked positions, split into
// disjoint active/dust maps, plus exchange reconciliation and the
// per-strategy/global position caps the gate funnel and sizer consult.
// Grounded on original_source/core/position_registry.py, generalized
// from its config-object limits to an explicit Go Limits struct and
// from its bare dict storage to a mutex-guarded registry matching the
// teacher's concurrency-safe state-holder idiom.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

// Limits is the configurable set of caps the registry enforces
// (spec.md §4.12).
type Limits struct {
	MinPositionUSD        float64
	DustThresholdUSD       float64
	MaxPositions           int
	MaxPositionsPerStrategy int // 0 == unbounded
	MinHoldSeconds         int
}

// DefaultLimits mirrors the teacher's PositionLimits defaults.
func DefaultLimits() Limits {
	return Limits{
		MinPositionUSD:  5.0,
		DustThresholdUSD: 1.0,
		MaxPositions:    12,
		MinHoldSeconds:  30,
	}
}

// ExchangeHoldingsFunc reconciles the registry's view against the
// exchange's authoritative holdings set, so a stale registry never
// blocks (or wrongly allows) new entries (spec.md §4.12).
type ExchangeHoldingsFunc func() map[string]struct{}

// Registry is the mutex-guarded position store.
type Registry struct {
	mu       sync.RWMutex
	limits   Limits
	active   map[string]domain.Position
	dust     map[string]domain.Position
	holdings ExchangeHoldingsFunc
}

// New creates an empty Registry with the given limits.
func New(limits Limits) *Registry {
	return &Registry{
		limits: limits,
		active: make(map[string]domain.Position),
		dust:   make(map[string]domain.Position),
	}
}

// SetExchangeHoldingsFunc wires the reconciliation source. Nil disables
// reconciliation — can_open_position then trusts the registry count
// verbatim.
func (r *Registry) SetExchangeHoldingsFunc(f ExchangeHoldingsFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holdings = f
}

// UpdateLimits recomputes limits in place. Existing positions are never
// retroactively rejected (spec.md §4.12).
func (r *Registry) UpdateLimits(limits Limits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits = limits
}

// Add inserts position into active or dust based on its entry value
// against dust_threshold_usd (strict `<` for dust, spec.md §8). Returns
// true if it landed in active.
func (r *Registry) Add(p domain.Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	value := p.SizeQty * p.EntryPrice
	if value < r.limits.DustThresholdUSD {
		r.dust[p.Symbol] = p
		return false
	}
	r.active[p.Symbol] = p
	return true
}

// Get returns a position by symbol, checking active then dust.
func (r *Registry) Get(symbol string) (domain.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.active[symbol]; ok {
		return p, true
	}
	p, ok := r.dust[symbol]
	return p, ok
}

// HasPosition reports whether symbol is tracked at all (active or dust).
func (r *Registry) HasPosition(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, inActive := r.active[symbol]
	_, inDust := r.dust[symbol]
	return inActive || inDust
}

// HasActivePosition reports whether symbol is tracked as active (not dust).
func (r *Registry) HasActivePosition(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.active[symbol]
	return ok
}

// Remove deletes symbol from whichever map holds it.
func (r *Registry) Remove(symbol string) (domain.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.active[symbol]; ok {
		delete(r.active, symbol)
		return p, true
	}
	if p, ok := r.dust[symbol]; ok {
		delete(r.dust, symbol)
		return p, true
	}
	return domain.Position{}, false
}

// Update replaces symbol's tracked position in place (active or dust,
// wherever it currently lives), for router/exit-logic mutations like
// partial closes and trailing-stop updates.
func (r *Registry) Update(p domain.Position) {
	r.mu.Lock()
	if _, ok := r.active[p.Symbol]; ok {
		r.active[p.Symbol] = p
		r.mu.Unlock()
		return
	}
	if _, ok := r.dust[p.Symbol]; ok {
		r.dust[p.Symbol] = p
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	// Not previously tracked; treat as a fresh add using its own value.
	r.Add(p)
}

// UpdatePositionValue implements update_position_value (spec.md §4.12):
// moves a tracked position between active and dust in one consistent
// step based on current_price × size_qty vs dust_threshold_usd.
func (r *Registry) UpdatePositionValue(symbol string, currentPrice float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, isActive := r.active[symbol]
	if !isActive {
		var ok bool
		p, ok = r.dust[symbol]
		if !ok {
			return
		}
	}
	p.CurrentPrice = currentPrice
	value := p.SizeQty * currentPrice
	shouldBeActive := value >= r.limits.DustThresholdUSD

	if isActive && !shouldBeActive {
		delete(r.active, symbol)
		r.dust[symbol] = p
	} else if !isActive && shouldBeActive {
		delete(r.dust, symbol)
		r.active[symbol] = p
	} else if isActive {
		r.active[symbol] = p
	} else {
		r.dust[symbol] = p
	}
}

// ActivePositions returns a snapshot copy of every active position.
func (r *Registry) ActivePositions() map[string]domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Position, len(r.active))
	for k, v := range r.active {
		out[k] = v
	}
	return out
}

// DustPositions returns a snapshot copy of every dust position.
func (r *Registry) DustPositions() map[string]domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Position, len(r.dust))
	for k, v := range r.dust {
		out[k] = v
	}
	return out
}

// reconciledActiveCount intersects the registry's active set with the
// exchange's authoritative holdings, if wired, so gate checks never
// block on a registry that has drifted (spec.md §4.12). Caller must
// hold at least a read lock.
func (r *Registry) reconciledActiveCount() int {
	if r.holdings == nil {
		return len(r.active)
	}
	held := r.holdings()
	n := 0
	for sym := range r.active {
		if _, ok := held[sym]; ok {
			n++
		}
	}
	return n
}

// CanOpenPosition implements can_open_position (spec.md §4.12).
func (r *Registry) CanOpenPosition(strategyID string, estimatedSizeUSD float64) (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if estimatedSizeUSD < r.limits.MinPositionUSD {
		return false, fmt.Sprintf("below minimum $%.2f", r.limits.MinPositionUSD)
	}

	active := r.reconciledActiveCount()
	if active >= r.limits.MaxPositions {
		return false, fmt.Sprintf("max positions (%d) reached (currently %d)", r.limits.MaxPositions, active)
	}

	if r.limits.MaxPositionsPerStrategy > 0 {
		count := 0
		for _, p := range r.active {
			if p.StrategyID == strategyID {
				count++
			}
		}
		for _, p := range r.dust {
			if p.StrategyID == strategyID {
				count++
			}
		}
		if count >= r.limits.MaxPositionsPerStrategy {
			return false, fmt.Sprintf("max %s positions (%d) reached", strategyID, r.limits.MaxPositionsPerStrategy)
		}
	}

	return true, "OK"
}

// CanClosePosition implements can_close_position (spec.md §4.12): a
// position may not close before min_hold_seconds has elapsed.
func (r *Registry) CanClosePosition(symbol string, now time.Time) (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.active[symbol]
	if !ok {
		p, ok = r.dust[symbol]
	}
	if !ok {
		return false, "position not found"
	}

	held := now.Sub(p.EntryTime)
	minHold := time.Duration(r.limits.MinHoldSeconds) * time.Second
	if held < minHold {
		remaining := minHold - held
		return false, fmt.Sprintf("min hold time: %.0fs remaining", remaining.Seconds())
	}
	return true, "OK"
}

// PositionsByStrategy returns every tracked position (active + dust)
// attributed to strategyID.
func (r *Registry) PositionsByStrategy(strategyID string) []domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Position
	for _, p := range r.active {
		if p.StrategyID == strategyID {
			out = append(out, p)
		}
	}
	for _, p := range r.dust {
		if p.StrategyID == strategyID {
			out = append(out, p)
		}
	}
	return out
}

// Stats is the aggregate view the BotState bundle and UI consume.
type Stats struct {
	TotalPositions  int
	ActivePositions int
	DustPositions   int
	TotalExposure   float64
	ByStrategy      map[string]int
}

// GetStats computes a Stats snapshot, valuing active positions at their
// current price.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byStrategy := make(map[string]int)
	var exposure float64
	for _, p := range r.active {
		exposure += p.SizeQty * p.CurrentPrice
		byStrategy[p.StrategyID]++
	}
	return Stats{
		TotalPositions:  len(r.active) + len(r.dust),
		ActivePositions: len(r.active),
		DustPositions:   len(r.dust),
		TotalExposure:   exposure,
		ByStrategy:      byStrategy,
	}
}

// TotalCostBasis sums cost_basis across active positions, for the
// sizer's exposure-remaining clamp (spec.md §4.10).
func (r *Registry) TotalCostBasis() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum float64
	for _, p := range r.active {
		sum += p.CostBasis
	}
	return sum
}

// SymbolCostBasis returns the cost basis of symbol's active position,
// or 0 if none (for the symbol_exposure gate, spec.md §4.9).
func (r *Registry) SymbolCostBasis(symbol string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[symbol].CostBasis
}
