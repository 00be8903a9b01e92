package ledger

import (
	"fmt"
	"time"
)

type TrayStatus string

const (
	TrayAlloted         TrayStatus = "alloted"
	TrayPriorityBooked  TrayStatus = "priority_booked"
	TrayPartiallyBooked TrayStatus = "partially_booked"
	TrayReturned        TrayStatus = "returned"
)

// Inventory is one product's stock counters. total must equal
// warehouse + tray at rest; the ledger re-checks that after every write.
type Inventory struct {
	ProductID    string
	WarehouseQty int
	TrayQty      int
	TotalQty     int
}

func (i Inventory) Consistent() bool {
	return i.WarehouseQty >= 0 && i.TrayQty >= 0 &&
		i.TotalQty == i.WarehouseQty+i.TrayQty
}

// TrayStock is one (tray, product) assignment.
type TrayStock struct {
	TrayID    string
	ProductID string
	Qty       int
	Status    TrayStatus
	AllotedAt time.Time
}

// TrayDraw records how much was taken from one tray and the status the
// tray had before the draw, so reversal can restore it exactly. The new
// status is applied but never journaled.
type TrayDraw struct {
	TrayID     string     `json:"tray_id"`
	Qty        int        `json:"qty"`
	PrevStatus TrayStatus `json:"status"`
	NewStatus  TrayStatus `json:"-"`
}

// Plan is the outcome of the reservation decision for one line item:
// how much comes out of the warehouse, how much out of trays, and which
// trays are touched. Building a plan has no side effects.
type Plan struct {
	WarehouseTake int
	TrayTake      int
	Draws         []TrayDraw
}

// BuildPlan decides how to fill a request of `requested` units from the
// product's counters and its alloted trays. Warehouse stock goes first;
// the remainder is drawn from trays in the order given (callers pass
// oldest allotment first). A tray whose whole balance is consumed while
// the remainder is still open becomes priority_booked; the tray that
// satisfies the remainder becomes partially_booked, even when the draw
// happens to empty it.
func BuildPlan(requested int, inv Inventory, trays []TrayStock) (Plan, error) {
	if requested <= 0 {
		return Plan{}, fmt.Errorf("requested qty must be positive, got %d", requested)
	}
	if requested > inv.TotalQty {
		return Plan{}, &InsufficientStockError{
			ProductID: inv.ProductID,
			Requested: requested,
			Available: inv.TotalQty,
		}
	}

	if requested <= inv.WarehouseQty {
		return Plan{WarehouseTake: requested}, nil
	}

	p := Plan{WarehouseTake: inv.WarehouseQty, TrayTake: requested - inv.WarehouseQty}
	left := p.TrayTake
	for _, t := range trays {
		if t.Status != TrayAlloted || t.Qty <= 0 {
			continue
		}
		if t.Qty >= left {
			p.Draws = append(p.Draws, TrayDraw{
				TrayID:     t.TrayID,
				Qty:        left,
				PrevStatus: t.Status,
				NewStatus:  TrayPartiallyBooked,
			})
			left = 0
			break
		}
		p.Draws = append(p.Draws, TrayDraw{
			TrayID:     t.TrayID,
			Qty:        t.Qty,
			PrevStatus: t.Status,
			NewStatus:  TrayPriorityBooked,
		})
		left -= t.Qty
	}
	if left > 0 {
		return Plan{}, fmt.Errorf("%w: product %s tray scan short by %d units",
			ErrInventoryInconsistency, inv.ProductID, left)
	}
	return p, nil
}

// Apply mutates the in-memory counters the way the persisted UPDATEs do.
// trays is keyed by tray id; missing draws panic since a plan is only
// valid against the snapshot it was built from.
func (p Plan) Apply(inv *Inventory, trays map[string]*TrayStock) {
	inv.WarehouseQty -= p.WarehouseTake
	inv.TrayQty -= p.TrayTake
	inv.TotalQty -= p.WarehouseTake + p.TrayTake
	for _, d := range p.Draws {
		t := trays[d.TrayID]
		t.Qty -= d.Qty
		t.Status = d.NewStatus
	}
}
