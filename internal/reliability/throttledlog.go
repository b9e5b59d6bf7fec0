// Package reliability carries the engine's off-box/disaster-recovery
// plumbing: a per-key throttled logger, a system health reporter, and an
// S3-compatible off-box backup uploader.
package reliability

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ThrottledLogger rate-limits repeated log lines keyed by an arbitrary
// string, so a condition that would otherwise fire every tick (a
// panicking strategy, a stale snapshot) logs at most once per window
// instead of flooding output. Grounded on the teacher's
// internal/queue.ProgressReporter throttle pattern (last-emit timestamp
// per key, minInterval gate).
type ThrottledLogger struct {
	mu          sync.Mutex
	log         zerolog.Logger
	minInterval time.Duration
	lastEmit    map[string]time.Time
}

// NewThrottledLogger wraps log with a shared minInterval throttle.
func NewThrottledLogger(log zerolog.Logger, minInterval time.Duration) *ThrottledLogger {
	return &ThrottledLogger{log: log, minInterval: minInterval, lastEmit: make(map[string]time.Time)}
}

// Warn emits a warning for key at most once per minInterval.
func (t *ThrottledLogger) Warn(key, msg string) {
	if !t.ready(key) {
		return
	}
	t.log.Warn().Str("throttle_key", key).Msg(msg)
}

// WarnErr emits a warning with an attached error, throttled by key.
func (t *ThrottledLogger) WarnErr(key string, err error, msg string) {
	if !t.ready(key) {
		return
	}
	t.log.Warn().Str("throttle_key", key).Err(err).Msg(msg)
}

func (t *ThrottledLogger) ready(key string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.lastEmit[key]; ok && now.Sub(last) < t.minInterval {
		return false
	}
	t.lastEmit[key] = now
	return true
}
