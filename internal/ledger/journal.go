package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one journal row: exactly what a reservation changed for one
// (order, product) pair, sufficient to undo it. Append/delete only;
// an entry is never updated while it exists.
type Entry struct {
	ID               string
	OrderID          string
	ProductID        string
	WarehouseReduced int
	TrayReduced      int
	TotalReduced     int
	Draws            []TrayDraw
	CreatedAt        time.Time
}

// Entry materializes the journal row for a plan executed on behalf of an order.
func (p Plan) Entry(orderID, productID string) Entry {
	return Entry{
		ID:               uuid.NewString(),
		OrderID:          orderID,
		ProductID:        productID,
		WarehouseReduced: p.WarehouseTake,
		TrayReduced:      p.TrayTake,
		TotalReduced:     p.WarehouseTake + p.TrayTake,
		Draws:            p.Draws,
		CreatedAt:        time.Now().UTC(),
	}
}

// Restore credits the entry back onto in-memory counters: inventory
// counters get the reduced amounts back, each drawn tray gets its
// quantity back and its pre-reservation status. Trays missing from the
// map are skipped and counted, mirroring the persisted reversal.
func (e Entry) Restore(inv *Inventory, trays map[string]*TrayStock) (skippedTrays int) {
	inv.WarehouseQty += e.WarehouseReduced
	inv.TrayQty += e.TrayReduced
	inv.TotalQty += e.TotalReduced
	for _, d := range e.Draws {
		t, ok := trays[d.TrayID]
		if !ok {
			skippedTrays++
			continue
		}
		t.Qty += d.Qty
		t.Status = d.PrevStatus
	}
	return skippedTrays
}
