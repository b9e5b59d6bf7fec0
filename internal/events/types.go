package events

import "github.com/aristath/spotengine/internal/domain"

// OrderEventData wraps a domain.OrderEvent as bus Data.
type OrderEventData struct {
	domain.OrderEvent
}

// EventType implements Data.
func (OrderEventData) EventType() Type { return TypeOrder }

// RejectionData wraps a domain.RejectionRecord as bus Data.
type RejectionData struct {
	domain.RejectionRecord
}

// EventType implements Data.
func (RejectionData) EventType() Type { return TypeRejection }

// TierChangeData is published when a symbol's tier assignment changes.
type TierChangeData struct {
	Symbol   string
	OldTier  domain.TierLevel
	NewTier  domain.TierLevel
}

// EventType implements Data.
func (TierChangeData) EventType() Type { return TypeTierChange }

// ControlData is appended to the events stream for every processed
// control command, for the audit log spec.md §6 requires ("Each returns a
// structured result and is appended to the audit log"). It is written via
// Recorder.RecordEvent, which does not publish on the bus.
type ControlData struct {
	Command string
	Args    map[string]any
	OK      bool
	Message string
}

// EventType implements Data.
func (ControlData) EventType() Type { return TypeControl }
