package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransitionDispatchNeedsCourier(t *testing.T) {
	err := CheckTransition(StatusPending, StatusUpdate{Status: StatusDispatched})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "courier_name")

	err = CheckTransition(StatusPending, StatusUpdate{Status: StatusDispatched, CourierName: "DHL"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "courier_tracking_number")

	err = CheckTransition(StatusPending, StatusUpdate{
		Status: StatusDispatched, CourierName: "DHL", CourierTrackingNumber: "TRK-1",
	})
	assert.NoError(t, err)
}

func TestCheckTransitionPartialDispatchNeedsQty(t *testing.T) {
	upd := StatusUpdate{
		Status: StatusPartiallyDispatched, CourierName: "DHL", CourierTrackingNumber: "TRK-1",
	}
	err := CheckTransition(StatusProcessed, upd)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "partial_dispatch_qty")

	upd.PartialDispatchQty = 3
	assert.NoError(t, CheckTransition(StatusProcessed, upd))
}

func TestCheckTransitionTerminalStatesSealed(t *testing.T) {
	for _, from := range []Status{StatusCancelled, StatusCompleted} {
		err := CheckTransition(from, StatusUpdate{Status: StatusPending})
		assert.ErrorIs(t, err, ErrValidation, "from=%s", from)
	}
}

func TestCheckTransitionUncheckedPaths(t *testing.T) {
	assert.NoError(t, CheckTransition(StatusPending, StatusUpdate{Status: StatusProcessed}))
	assert.NoError(t, CheckTransition(StatusPending, StatusUpdate{Status: StatusCancelled}))
	assert.NoError(t, CheckTransition(StatusProcessed, StatusUpdate{Status: StatusHoldByTray}))
	assert.NoError(t, CheckTransition(StatusHoldByTray, StatusUpdate{Status: StatusCompleted}))
}

func TestCheckTransitionRejectsUnknownStatus(t *testing.T) {
	err := CheckTransition(StatusPending, StatusUpdate{Status: "shipped"})
	assert.ErrorIs(t, err, ErrValidation)
}
