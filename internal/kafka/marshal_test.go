package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optilens/fulfillment/internal/orders"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	payload := orders.StockReservedPayload{
		OrderID: "o-1",
		Items:   []orders.ItemQty{{ProductID: "P1", Qty: 2}},
	}
	env := orders.Envelope{
		EventID:      "e-1",
		EventType:    orders.EventStockReserved,
		EventVersion: 1,
		Producer:     "test",
		Payload:      MustMarshal(payload),
	}

	b := MustMarshal(env)

	var back orders.Envelope
	require.NoError(t, UnmarshalEnvelope(b, &back))
	assert.Equal(t, orders.EventStockReserved, back.EventType)

	got, err := UnwrapPayload[orders.StockReservedPayload](back.Payload)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestUnwrapPayloadBadJSON(t *testing.T) {
	_, err := UnwrapPayload[orders.StockReservedPayload](json.RawMessage(`{`))
	assert.Error(t, err)
}
