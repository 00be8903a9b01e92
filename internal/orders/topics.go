package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderCancelled = "order.cancelled"
	TopicStockReserved  = "order.stock.reserved"
	TopicStockRejected  = "order.stock.rejected"
	TopicAuditTrail     = "audit.trail"
)

// Partition key = order_id so every event for one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
