package botstate

import (
	"sync/atomic"

	"github.com/aristath/spotengine/internal/domain"
)

// Store holds the single current BotState behind an atomic pointer
// swap, per spec.md §5 "concurrent readers use an atomic swap-the-
// snapshot... never long-held locks". The coordinator task is the only
// writer; every reader (HTTP handlers, the websocket pusher, tests) calls
// Load and gets back an immutable value they can hold as long as they
// like without blocking the next Swap.
type Store struct {
	current atomic.Pointer[BotState]
}

// NewStore seeds the store with an empty state for mode.
func NewStore(mode domain.TradingMode) *Store {
	s := &Store{}
	initial := Empty(mode)
	s.current.Store(&initial)
	return s
}

// Load returns the current snapshot. Safe for any number of concurrent
// callers; never blocks on a writer.
func (s *Store) Load() BotState {
	return *s.current.Load()
}

// Swap atomically replaces the current snapshot. Only the coordinator
// task should call this.
func (s *Store) Swap(next BotState) {
	s.current.Store(&next)
}
