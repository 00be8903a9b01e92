package orders

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending             Status = "pending"
	StatusProcessed           Status = "processed"
	StatusCancelled           Status = "cancelled"
	StatusDispatched          Status = "dispatched"
	StatusPartiallyDispatched Status = "partially_dispatched"
	StatusHoldByTray          Status = "hold_by_tray"
	StatusCompleted           Status = "completed"
)

var knownStatus = map[Status]bool{
	StatusPending:             true,
	StatusProcessed:           true,
	StatusCancelled:           true,
	StatusDispatched:          true,
	StatusPartiallyDispatched: true,
	StatusHoldByTray:          true,
	StatusCompleted:           true,
}

func (s Status) Valid() bool { return knownStatus[s] }

// Terminal statuses accept no further transitions. A completed order's
// stock is considered consumed; a cancelled order's stock has already
// been credited back.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

var ErrValidation = errors.New("validation failed")

// StatusUpdate carries a requested transition plus the fields some
// targets require.
type StatusUpdate struct {
	Status                Status `json:"order_status"`
	CourierName           string `json:"courier_name,omitempty"`
	CourierTrackingNumber string `json:"courier_tracking_number,omitempty"`
	PartialDispatchQty    int    `json:"partial_dispatch_qty,omitempty"`
}

// CheckTransition gates a status change. Dispatch targets need courier
// details, partial dispatch additionally needs the dispatched quantity,
// and terminal states are sealed. Everything else passes unchecked.
func CheckTransition(from Status, upd StatusUpdate) error {
	if !upd.Status.Valid() {
		return fmt.Errorf("%w: unknown order_status %q", ErrValidation, upd.Status)
	}
	if from.Terminal() {
		return fmt.Errorf("%w: order is %s and cannot change status", ErrValidation, from)
	}
	switch upd.Status {
	case StatusDispatched, StatusPartiallyDispatched:
		if upd.CourierName == "" {
			return fmt.Errorf("%w: courier_name is required for %s", ErrValidation, upd.Status)
		}
		if upd.CourierTrackingNumber == "" {
			return fmt.Errorf("%w: courier_tracking_number is required for %s", ErrValidation, upd.Status)
		}
		if upd.Status == StatusPartiallyDispatched && upd.PartialDispatchQty <= 0 {
			return fmt.Errorf("%w: partial_dispatch_qty is required for %s", ErrValidation, upd.Status)
		}
	}
	return nil
}
