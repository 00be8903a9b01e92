package orders

import "time"

type Order struct {
	ID                    string    `json:"id"`
	OrderNumber           string    `json:"order_number"`
	ExternalID            string    `json:"external_id"`
	UserID                string    `json:"user_id"`
	Status                Status    `json:"status"`
	TotalCents            int       `json:"total_cents"`
	CourierName           string    `json:"courier_name,omitempty"`
	CourierTrackingNumber string    `json:"courier_tracking_number,omitempty"`
	PartialDispatchQty    int       `json:"partial_dispatch_qty,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type OrderItem struct {
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

// ProductInventory mirrors the product_inventory row: warehouse stock,
// stock staged across trays, and the derived total.
type ProductInventory struct {
	ProductID    string    `json:"product_id"`
	WarehouseQty int       `json:"warehouse_qty"`
	TrayQty      int       `json:"tray_qty"`
	TotalQty     int       `json:"total_qty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
