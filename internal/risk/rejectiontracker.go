package risk

import (
	"strings"
	"sync"
	"time"

	"github.com/aristath/spotengine/internal/domain"
)

const (
	maxRejectionEvents  = 50
	defaultCollapseWindow = 8 * time.Second
	maxPositionsCollapseWindow = 60 * time.Second
)

// RejectionTracker counts blocked signals per gate and keeps a bounded,
// de-duplicated stream of the most recent events for the UI (spec.md
// §4.14). Counters always increment; the event stream collapses repeats
// of the same (symbol, gate, detail) triple within a window (8s, or 60s
// specifically for "max positions" details, which would otherwise flood
// the stream every tick while a symbol cap is saturated).
type RejectionTracker struct {
	mu       sync.Mutex
	counts   map[domain.GateReason]int
	events   []domain.RejectionRecord
	lastSeen map[string]time.Time
}

// NewRejectionTracker creates an empty tracker.
func NewRejectionTracker() *RejectionTracker {
	return &RejectionTracker{
		counts:   make(map[domain.GateReason]int),
		lastSeen: make(map[string]time.Time),
	}
}

func collapseKey(rec domain.RejectionRecord) string {
	return rec.Symbol + "|" + string(rec.Gate) + "|" + rec.Details
}

func collapseWindowFor(rec domain.RejectionRecord) time.Duration {
	if strings.Contains(rec.Details, "max positions") {
		return maxPositionsCollapseWindow
	}
	return defaultCollapseWindow
}

// Record registers rec. Returns true if it was appended to the visible
// event stream (false if collapsed as a duplicate within its window —
// the gate counter still increments either way).
func (rt *RejectionTracker) Record(rec domain.RejectionRecord) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.counts[rec.Gate]++

	key := collapseKey(rec)
	window := collapseWindowFor(rec)
	if last, ok := rt.lastSeen[key]; ok && rec.Timestamp.Sub(last) < window {
		return false
	}
	rt.lastSeen[key] = rec.Timestamp

	rt.events = append(rt.events, rec)
	if len(rt.events) > maxRejectionEvents {
		rt.events = rt.events[len(rt.events)-maxRejectionEvents:]
	}
	return true
}

// Counts returns a snapshot copy of the per-gate rejection counters.
func (rt *RejectionTracker) Counts() map[domain.GateReason]int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make(map[domain.GateReason]int, len(rt.counts))
	for k, v := range rt.counts {
		out[k] = v
	}
	return out
}

// Events returns a snapshot copy of the bounded event stream, oldest
// first.
func (rt *RejectionTracker) Events() []domain.RejectionRecord {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]domain.RejectionRecord, len(rt.events))
	copy(out, rt.events)
	return out
}
