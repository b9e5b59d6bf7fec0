// Package events provides a typed publish/subscribe bus plus the
// JSONL-backed OrderEvent and RejectionRecord audit streams (spec.md §3,
// §6). Grounded on the teacher's internal/events package (typed EventData
// interface, EventType() dispatch) generalized from the teacher's
// portfolio-rebalancing event set to the trading-pipeline one this spec
// names.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Type is the closed set of event kinds the bus carries.
type Type string

const (
	TypeOrder     Type = "order"
	TypeRejection Type = "rejection"
	TypeTierChange Type = "tier_change"
	TypeControl   Type = "control"
)

// Data is implemented by every event payload so the bus can route by type
// without reflection.
type Data interface {
	EventType() Type
}

// Handler receives a published event.
type Handler func(Data)

// Bus is an in-process, synchronous publish/subscribe dispatcher. Handlers
// are invoked on the publishing goroutine — callers that need to stay off
// the hot trading path (spec.md §5 "no suspension points inside trading
// logic") should make their handler itself non-blocking (e.g. write to a
// buffered channel) rather than relying on the bus to do it for them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	log      zerolog.Logger
}

// NewBus creates an empty Bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers h to be called for every event of type t.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish dispatches d to every handler registered for its EventType.
func (b *Bus) Publish(d Data) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[d.EventType()]...)
	b.mu.RUnlock()

	for _, h := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Interface("panic", r).Str("event_type", string(d.EventType())).
						Msg("event handler panicked")
				}
			}()
			h(d)
		}()
	}
}
