package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
	EventStockReserved  = "StockReserved"
	EventStockRejected  = "StockRejected"
	EventAuditRecord    = "AuditRecord"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "fulfillment-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types per event ----

type ItemInput struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"quantity"`
	PriceCents int    `json:"price"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	ExternalID  string      `json:"external_id"`
	UserID      string      `json:"user_id"`
	Items       []ItemInput `json:"items"`
	TotalCents  int         `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID          string `json:"order_id"`
	Reversed         int    `json:"reversed_entries"`
	SkippedInventory int    `json:"skipped_inventory,omitempty"`
	SkippedTrays     int    `json:"skipped_trays,omitempty"`
}

type StockReservedPayload struct {
	OrderID string    `json:"order_id"`
	Items   []ItemQty `json:"items"`
}

type StockRejectedDetail struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type StockRejectedPayload struct {
	OrderID string                `json:"order_id"`
	Reason  string                `json:"reason"` // e.g., OUT_OF_STOCK
	Details []StockRejectedDetail `json:"details,omitempty"`
}

// AuditRecordPayload is the best-effort audit side channel emitted on
// every mutation. Consumed by cmd/auditor; a lost audit record never
// fails the mutation that produced it.
type AuditRecordPayload struct {
	Actor     string          `json:"actor"`
	Action    string          `json:"action"` // create | update | delete | reverse
	Table     string          `json:"table"`
	RecordID  string          `json:"record_id"`
	OldValues json.RawMessage `json:"old_values,omitempty"`
	NewValues json.RawMessage `json:"new_values,omitempty"`
}
