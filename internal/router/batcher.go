package router

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/sizing"
)

// BatchCandidate is one signal waiting to be ranked and possibly
// executed in the next flush (spec.md §4.11 "Batching (optional)").
type BatchCandidate struct {
	Plan       sizing.TradePlan
	StrategyID string
	Score      float64
	Momentum1h   float64
	Momentum15m  float64
	VolumeSpike  float64
	QueuedAt    time.Time
}

// combinedRank implements the exact batching formula from spec.md §4.11.
func combinedRank(c BatchCandidate) float64 {
	return 0.4*c.Score + 10*c.Momentum1h + 20*c.Momentum15m + 10*c.VolumeSpike
}

// Batcher buffers signals arriving within batch_window_seconds and, on
// flush, ranks them by combined_rank, keeping only the higher-ranked
// signal per symbol (spec.md §4.11 "Duplicates on the same symbol keep
// the higher-ranked signal").
type Batcher struct {
	mu         sync.Mutex
	window     time.Duration
	maxNew     int
	candidates map[string]BatchCandidate // symbol -> best candidate seen this window
	windowOpen time.Time
}

// NewBatcher creates a Batcher using cfg's window/max-new settings.
func NewBatcher(cfg Config) *Batcher {
	return &Batcher{window: cfg.BatchWindowSeconds, maxNew: cfg.MaxNewPerBatch, candidates: make(map[string]BatchCandidate)}
}

// Add enqueues a candidate, replacing any existing entry for the same
// symbol only if the new one ranks higher.
func (b *Batcher) Add(c BatchCandidate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.windowOpen.IsZero() {
		b.windowOpen = c.QueuedAt
	}
	existing, ok := b.candidates[c.Plan.Symbol]
	if !ok || combinedRank(c) > combinedRank(existing) {
		b.candidates[c.Plan.Symbol] = c
	}
}

// ReadyToFlush reports whether the batch window has elapsed since the
// first candidate was queued.
func (b *Batcher) ReadyToFlush(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.windowOpen.IsZero() {
		return false
	}
	return now.Sub(b.windowOpen) >= b.window
}

// Flush drains the buffer and returns up to min(availableSlots, max_new)
// candidates in descending combined_rank order (spec.md §4.11).
func (b *Batcher) Flush(availableSlots int) []BatchCandidate {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]BatchCandidate, 0, len(b.candidates))
	for _, c := range b.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return combinedRank(out[i]) > combinedRank(out[j]) })

	limit := b.maxNew
	if availableSlots < limit {
		limit = availableSlots
	}
	if limit < 0 {
		limit = 0
	}
	if len(out) > limit {
		out = out[:limit]
	}

	b.candidates = make(map[string]BatchCandidate)
	b.windowOpen = time.Time{}
	return out
}
