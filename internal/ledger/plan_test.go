package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tray(id string, qty int, status TrayStatus, allotedMinutesAgo int) TrayStock {
	return TrayStock{
		TrayID:    id,
		ProductID: "P1",
		Qty:       qty,
		Status:    status,
		AllotedAt: time.Now().Add(-time.Duration(allotedMinutesAgo) * time.Minute),
	}
}

func TestBuildPlanWarehouseOnly(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 10, TrayQty: 0, TotalQty: 10}

	plan, err := BuildPlan(4, inv, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, plan.WarehouseTake)
	assert.Equal(t, 0, plan.TrayTake)
	assert.Empty(t, plan.Draws)

	plan.Apply(&inv, nil)
	assert.Equal(t, Inventory{ProductID: "P1", WarehouseQty: 6, TrayQty: 0, TotalQty: 6}, inv)
	assert.True(t, inv.Consistent())
}

func TestBuildPlanExactWarehouse(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 10, TrayQty: 3, TotalQty: 13}
	trays := []TrayStock{tray("T1", 3, TrayAlloted, 60)}

	plan, err := BuildPlan(10, inv, trays)
	require.NoError(t, err)
	assert.Equal(t, 10, plan.WarehouseTake)
	assert.Empty(t, plan.Draws, "no tray draw when warehouse covers the request")
}

func TestBuildPlanMinimalTrayDraw(t *testing.T) {
	// warehouse + 1: smallest possible tray draw
	inv := Inventory{ProductID: "P1", WarehouseQty: 3, TrayQty: 2, TotalQty: 5}
	trays := []TrayStock{tray("T1", 2, TrayAlloted, 60)}

	plan, err := BuildPlan(4, inv, trays)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.WarehouseTake)
	assert.Equal(t, 1, plan.TrayTake)
	require.Len(t, plan.Draws, 1)
	assert.Equal(t, TrayDraw{TrayID: "T1", Qty: 1, PrevStatus: TrayAlloted, NewStatus: TrayPartiallyBooked}, plan.Draws[0])
}

func TestBuildPlanSingleTraySpill(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 3, TrayQty: 5, TotalQty: 8}
	ts := []TrayStock{tray("T1", 5, TrayAlloted, 60)}

	plan, err := BuildPlan(5, inv, ts)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.WarehouseTake)
	assert.Equal(t, 2, plan.TrayTake)
	require.Len(t, plan.Draws, 1)
	assert.Equal(t, "T1", plan.Draws[0].TrayID)
	assert.Equal(t, 2, plan.Draws[0].Qty)
	assert.Equal(t, TrayAlloted, plan.Draws[0].PrevStatus)
	assert.Equal(t, TrayPartiallyBooked, plan.Draws[0].NewStatus)

	t1 := ts[0]
	plan.Apply(&inv, map[string]*TrayStock{"T1": &t1})
	assert.Equal(t, Inventory{ProductID: "P1", WarehouseQty: 0, TrayQty: 3, TotalQty: 3}, inv)
	assert.Equal(t, 3, t1.Qty)
	assert.Equal(t, TrayPartiallyBooked, t1.Status)
}

func TestBuildPlanSpansTrays(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 0, TrayQty: 7, TotalQty: 7}
	ts := []TrayStock{
		tray("T1", 2, TrayAlloted, 120), // older, drained first
		tray("T2", 5, TrayAlloted, 60),
	}

	plan, err := BuildPlan(6, inv, ts)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.WarehouseTake)
	assert.Equal(t, 6, plan.TrayTake)
	require.Len(t, plan.Draws, 2)
	assert.Equal(t, TrayDraw{TrayID: "T1", Qty: 2, PrevStatus: TrayAlloted, NewStatus: TrayPriorityBooked}, plan.Draws[0])
	assert.Equal(t, TrayDraw{TrayID: "T2", Qty: 4, PrevStatus: TrayAlloted, NewStatus: TrayPartiallyBooked}, plan.Draws[1])

	t1, t2 := ts[0], ts[1]
	plan.Apply(&inv, map[string]*TrayStock{"T1": &t1, "T2": &t2})
	assert.Equal(t, 1, inv.TotalQty)
	assert.Equal(t, 0, t1.Qty)
	assert.Equal(t, TrayPriorityBooked, t1.Status)
	assert.Equal(t, 1, t2.Qty)
	assert.Equal(t, TrayPartiallyBooked, t2.Status)
	assert.True(t, inv.Consistent())
}

func TestBuildPlanExhaustsEverything(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 2, TrayQty: 3, TotalQty: 5}
	ts := []TrayStock{tray("T1", 3, TrayAlloted, 60)}

	plan, err := BuildPlan(5, inv, ts)
	require.NoError(t, err)

	t1 := ts[0]
	plan.Apply(&inv, map[string]*TrayStock{"T1": &t1})
	assert.Equal(t, Inventory{ProductID: "P1", WarehouseQty: 0, TrayQty: 0, TotalQty: 0}, inv)
	assert.Equal(t, 0, t1.Qty)
	// a tray emptied on the qty >= remaining branch still reads partially_booked
	assert.Equal(t, TrayPartiallyBooked, t1.Status)
}

func TestBuildPlanInsufficientStock(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 10, TrayQty: 0, TotalQty: 10}

	_, err := BuildPlan(11, inv, nil)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "P1")
}

func TestBuildPlanInventoryInconsistency(t *testing.T) {
	// total_qty says 5 but trays only hold 3
	inv := Inventory{ProductID: "P1", WarehouseQty: 0, TrayQty: 5, TotalQty: 5}
	ts := []TrayStock{tray("T1", 3, TrayAlloted, 60)}

	_, err := BuildPlan(5, inv, ts)
	require.ErrorIs(t, err, ErrInventoryInconsistency)
}

func TestBuildPlanSkipsNonAllotedTrays(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 0, TrayQty: 4, TotalQty: 4}
	ts := []TrayStock{
		tray("T1", 4, TrayPriorityBooked, 120),
		tray("T2", 4, TrayAlloted, 60),
	}

	plan, err := BuildPlan(3, inv, ts)
	require.NoError(t, err)
	require.Len(t, plan.Draws, 1)
	assert.Equal(t, "T2", plan.Draws[0].TrayID)
}

func TestBuildPlanRejectsNonPositiveQty(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 10, TotalQty: 10}
	_, err := BuildPlan(0, inv, nil)
	require.Error(t, err)
	_, err = BuildPlan(-2, inv, nil)
	require.Error(t, err)
}

func TestSequentialReservesNeverOversell(t *testing.T) {
	inv := Inventory{ProductID: "P1", WarehouseQty: 4, TrayQty: 6, TotalQty: 10}
	ts := map[string]*TrayStock{
		"T1": {TrayID: "T1", ProductID: "P1", Qty: 2, Status: TrayAlloted},
		"T2": {TrayID: "T2", ProductID: "P1", Qty: 4, Status: TrayAlloted},
	}
	snapshot := func() []TrayStock {
		return []TrayStock{*ts["T1"], *ts["T2"]}
	}

	reserved := 0
	for {
		plan, err := BuildPlan(3, inv, snapshot())
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientStock)
			break
		}
		plan.Apply(&inv, ts)
		reserved += 3
		require.True(t, inv.Consistent())
		require.GreaterOrEqual(t, inv.WarehouseQty, 0)
		require.GreaterOrEqual(t, inv.TrayQty, 0)
	}
	assert.Equal(t, 9, reserved)
	assert.Equal(t, 1, inv.TotalQty)
}
