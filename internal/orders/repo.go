package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optilens/fulfillment/internal/ledger"
)

type Repo struct {
	DB     *pgxpool.Pool
	Ledger *ledger.Ledger
}

var ErrOrderNotFound = errors.New("order not found")

const orderColumns = `id, order_number, external_id, user_id, status, total_cents,
	coalesce(courier_name,''), coalesce(courier_tracking_number,''), coalesce(partial_dispatch_qty,0),
	created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.ExternalID, &o.UserID, &o.Status, &o.TotalCents,
		&o.CourierName, &o.CourierTrackingNumber, &o.PartialDispatchQty, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrderTx places an order: order row, items, and the stock
// reservation for every line item commit in one transaction. A failure
// on any line rolls back everything, order included. Idempotent via
// external_id: a replay returns the existing order.
func (r *Repo) CreateOrderTx(ctx context.Context, externalID, userID string, items []ItemInput) (Order, bool, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id=$1`, externalID)
	if o, err := scanOrder(row); err == nil {
		return o, true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, err
	}

	total := 0
	for _, it := range items {
		if it.ProductID == "" {
			return Order{}, false, fmt.Errorf("%w: item missing product_id", ErrValidation)
		}
		if it.Qty <= 0 {
			return Order{}, false, fmt.Errorf("%w: invalid quantity for product %s", ErrValidation, it.ProductID)
		}
		if it.PriceCents < 0 {
			return Order{}, false, fmt.Errorf("%w: invalid price for product %s", ErrValidation, it.ProductID)
		}
		total += it.Qty * it.PriceCents
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	number, err := GenerateOrderNumber(ctx, tx)
	if err != nil {
		return Order{}, false, err
	}

	orderID := uuid.NewString()
	row = tx.QueryRow(ctx, `
		INSERT INTO orders(id, order_number, external_id, user_id, status, total_cents)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+orderColumns,
		orderID, number, externalID, userID, StatusPending, total)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, false, err
	}

	reserve := make([]ledger.ItemQty, 0, len(items))
	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents)
			VALUES ($1,$2,$3,$4)`,
			orderID, it.ProductID, it.Qty, it.PriceCents); err != nil {
			return Order{}, false, err
		}
		reserve = append(reserve, ledger.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}

	if _, err := r.Ledger.ReserveOrder(ctx, tx, orderID, reserve); err != nil {
		return Order{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return o, false, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

// UpdateStatus applies the transition gate and, on cancellation, runs
// the reversal before touching the status field. An incomplete reversal
// leaves the status unchanged so the remaining journal entries can be
// retried.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, upd StatusUpdate) (Order, *ledger.ReversalReport, error) {
	var current Status
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, nil, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, nil, err
	}

	if err := CheckTransition(current, upd); err != nil {
		return Order{}, nil, err
	}

	var report *ledger.ReversalReport
	if upd.Status == StatusCancelled {
		rep, err := r.Ledger.ReverseOrder(ctx, orderID)
		report = &rep
		if err != nil {
			return Order{}, report, err
		}
	}

	row := r.DB.QueryRow(ctx, `
		UPDATE orders SET
			status = $2,
			courier_name = COALESCE(NULLIF($3,''), courier_name),
			courier_tracking_number = COALESCE(NULLIF($4,''), courier_tracking_number),
			partial_dispatch_qty = CASE WHEN $5 > 0 THEN $5 ELSE partial_dispatch_qty END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		orderID, upd.Status, upd.CourierName, upd.CourierTrackingNumber, upd.PartialDispatchQty)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, report, err
	}
	return o, report, nil
}

// DeleteOrder removes an order. Unless the order is already cancelled
// (stock credited back) or completed (stock consumed), the reservation
// is reversed first.
func (r *Repo) DeleteOrder(ctx context.Context, orderID string) (*ledger.ReversalReport, error) {
	var current Status
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	var report *ledger.ReversalReport
	if !current.Terminal() {
		rep, err := r.Ledger.ReverseOrder(ctx, orderID)
		report = &rep
		if err != nil {
			return report, err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return report, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// completed orders may still carry journal rows; they go with the order
	if _, err := tx.Exec(ctx, `DELETE FROM order_operations WHERE order_id=$1`, orderID); err != nil {
		return report, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return report, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID); err != nil {
		return report, err
	}
	return report, tx.Commit(ctx)
}

func (r *Repo) ListInventory(ctx context.Context) ([]ProductInventory, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, warehouse_qty, tray_qty, total_qty, updated_at
		FROM product_inventory ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductInventory
	for rows.Next() {
		var p ProductInventory
		if err := rows.Scan(&p.ProductID, &p.WarehouseQty, &p.TrayQty, &p.TotalQty, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
