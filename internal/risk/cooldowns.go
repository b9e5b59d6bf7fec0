package risk

import (
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/paths"
)

// cooldownFile is the on-disk shape of the per-mode cooldowns store.
type cooldownFile struct {
	LastOrderTime map[string]time.Time `json:"last_order_time"`
}

// Cooldowns tracks the last order time per symbol and enforces the
// hard/soft cooldown thresholds (spec.md §4.14).
type Cooldowns struct {
	mu              sync.Mutex
	path            string
	hardSeconds     float64
	softSeconds     float64
	lastOrderTime   map[string]time.Time
}

// NewCooldowns loads any persisted cooldowns from path, purging entries
// already older than hardSeconds (spec.md §4.14 "expired entries are
// purged on load").
func NewCooldowns(layout paths.Layout, hardSeconds, softSeconds float64, now time.Time) (*Cooldowns, error) {
	c := &Cooldowns{
		path: layout.CooldownsFile(), hardSeconds: hardSeconds, softSeconds: softSeconds,
		lastOrderTime: make(map[string]time.Time),
	}
	var loaded cooldownFile
	ok, err := paths.ReadJSON(c.path, &loaded)
	if err != nil {
		return nil, err
	}
	if ok {
		for symbol, t := range loaded.LastOrderTime {
			if now.Sub(t).Seconds() < hardSeconds {
				c.lastOrderTime[symbol] = t
			}
		}
	}
	return c, c.persist()
}

func (c *Cooldowns) persist() error {
	return paths.WriteJSONAtomic(c.path, cooldownFile{LastOrderTime: c.lastOrderTime})
}

// RecordOrder marks symbol as having just placed an order.
func (c *Cooldowns) RecordOrder(symbol string, now time.Time) error {
	c.mu.Lock()
	c.lastOrderTime[symbol] = now
	snapshot := make(map[string]time.Time, len(c.lastOrderTime))
	for k, v := range c.lastOrderTime {
		snapshot[k] = v
	}
	c.mu.Unlock()
	return paths.WriteJSONAtomic(c.path, cooldownFile{LastOrderTime: snapshot})
}

// InHardCooldown reports whether symbol is still within
// order_cooldown_min_seconds of its last order (Gate 8's hard block).
func (c *Cooldowns) InHardCooldown(symbol string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastOrderTime[symbol]
	if !ok {
		return false
	}
	return now.Sub(last).Seconds() < c.hardSeconds
}

// InSoftCooldown reports whether symbol is within the softer
// order_cooldown_seconds window, used for non-blocking scoring
// penalties rather than an outright gate rejection.
func (c *Cooldowns) InSoftCooldown(symbol string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastOrderTime[symbol]
	if !ok {
		return false
	}
	return now.Sub(last).Seconds() < c.softSeconds
}
