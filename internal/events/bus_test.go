package events

import (
	"testing"
	"time"

	"github.com/aristath/spotengine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDispatchesByType(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var gotOrders, gotRejections int
	bus.Subscribe(TypeOrder, func(d Data) { gotOrders++ })
	bus.Subscribe(TypeRejection, func(d Data) { gotRejections++ })

	bus.Publish(OrderEventData{domain.OrderEvent{Symbol: "BTC-USD"}})
	bus.Publish(RejectionData{domain.RejectionRecord{Symbol: "ETH-USD"}})
	bus.Publish(RejectionData{domain.RejectionRecord{Symbol: "SOL-USD"}})

	assert.Equal(t, 1, gotOrders)
	assert.Equal(t, 2, gotRejections)
}

func TestBus_HandlerPanicDoesNotPropagate(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	bus.Subscribe(TypeOrder, func(d Data) { panic("boom") })
	assert.NotPanics(t, func() {
		bus.Publish(OrderEventData{domain.OrderEvent{}})
	})
}

func TestRecorder_RecordOrderEvent_AppendsAndPublishes(t *testing.T) {
	dir := t.TempDir()
	bus := NewBus(zerolog.Nop())
	rec, err := NewRecorder(dir, bus)
	require.NoError(t, err)
	defer rec.Close()

	var seen domain.OrderEvent
	bus.Subscribe(TypeOrder, func(d Data) {
		seen = d.(OrderEventData).OrderEvent
	})

	err = rec.RecordOrderEvent(domain.OrderEvent{
		EventType: domain.OrderEventOpen,
		Symbol:    "BTC-USD",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", seen.Symbol)
}
