package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Pool is the slice of pgxpool.Pool the ledger uses.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Ledger persists reservations and their reversals. Reservation runs
// inside the caller's order transaction; reversal opens one transaction
// per journal entry so entries stay independent.
type Ledger struct {
	DB  Pool
	Log *zap.Logger
}

// ReserveOrder reserves every line item for orderID inside tx. Inventory
// and tray rows are locked FOR UPDATE for the duration of the
// read-modify-write, so two concurrent orders on the same product
// serialize at the row lock. The first failing item aborts the whole
// transaction; the caller must roll back, leaving no partial
// reservations and no journal entries.
func (l *Ledger) ReserveOrder(ctx context.Context, tx pgx.Tx, orderID string, items []ItemQty) ([]Entry, error) {
	// lock inventory rows in product id order so two orders sharing
	// products cannot deadlock on each other
	sorted := make([]ItemQty, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	entries := make([]Entry, 0, len(sorted))
	for _, it := range sorted {
		e, err := l.reserveItem(ctx, tx, orderID, it)
		if err != nil {
			return nil, wrapConflict(err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *Ledger) reserveItem(ctx context.Context, tx pgx.Tx, orderID string, it ItemQty) (Entry, error) {
	inv := Inventory{ProductID: it.ProductID}
	err := tx.QueryRow(ctx, `
		SELECT warehouse_qty, tray_qty, total_qty
		FROM product_inventory WHERE product_id=$1 FOR UPDATE`,
		it.ProductID).Scan(&inv.WarehouseQty, &inv.TrayQty, &inv.TotalQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
	}
	if err != nil {
		return Entry{}, err
	}

	var trays []TrayStock
	if it.Qty > inv.WarehouseQty {
		// Oldest allotment drains first; the tie-break on tray_id keeps
		// the scan deterministic.
		rows, err := tx.Query(ctx, `
			SELECT tray_id, qty, status, alloted_at
			FROM tray_products
			WHERE product_id=$1 AND status='alloted' AND qty > 0
			ORDER BY alloted_at, tray_id
			FOR UPDATE`, it.ProductID)
		if err != nil {
			return Entry{}, err
		}
		for rows.Next() {
			t := TrayStock{ProductID: it.ProductID}
			if err := rows.Scan(&t.TrayID, &t.Qty, &t.Status, &t.AllotedAt); err != nil {
				rows.Close()
				return Entry{}, err
			}
			trays = append(trays, t)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return Entry{}, err
		}
	}

	plan, err := BuildPlan(it.Qty, inv, trays)
	if err != nil {
		if errors.Is(err, ErrInventoryInconsistency) {
			l.Log.Error("tray stock does not cover total_qty",
				zap.String("product_id", it.ProductID),
				zap.Int("requested", it.Qty),
				zap.Error(err))
		}
		return Entry{}, err
	}

	after := Inventory{ProductID: it.ProductID}
	err = tx.QueryRow(ctx, `
		UPDATE product_inventory
		SET warehouse_qty = warehouse_qty - $2,
		    tray_qty      = tray_qty - $3,
		    total_qty     = total_qty - $4,
		    updated_at    = now()
		WHERE product_id = $1
		RETURNING warehouse_qty, tray_qty, total_qty`,
		it.ProductID, plan.WarehouseTake, plan.TrayTake, plan.WarehouseTake+plan.TrayTake).
		Scan(&after.WarehouseQty, &after.TrayQty, &after.TotalQty)
	if err != nil {
		return Entry{}, err
	}
	if !after.Consistent() {
		l.Log.Error("inventory counters drifted after reservation",
			zap.String("product_id", it.ProductID),
			zap.Int("warehouse", after.WarehouseQty),
			zap.Int("tray", after.TrayQty),
			zap.Int("total", after.TotalQty))
		return Entry{}, fmt.Errorf("%w: product %s counters diverged after update",
			ErrInventoryInconsistency, it.ProductID)
	}

	for _, d := range plan.Draws {
		if _, err := tx.Exec(ctx, `
			UPDATE tray_products SET qty = qty - $3, status = $4
			WHERE tray_id = $1 AND product_id = $2`,
			d.TrayID, it.ProductID, d.Qty, d.NewStatus); err != nil {
			return Entry{}, err
		}
	}

	e := plan.Entry(orderID, it.ProductID)
	draws, err := json.Marshal(e.Draws)
	if err != nil {
		return Entry{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_operations
			(id, order_id, product_id, warehouse_reduced_qty, tray_reduced_qty, total_reduced_qty, tray_draws, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.OrderID, e.ProductID, e.WarehouseReduced, e.TrayReduced, e.TotalReduced, draws, e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ReversalReport summarizes what a reversal actually touched. Skips mean
// the referenced inventory or tray row no longer exists; they are
// non-fatal but operators should watch for them since they indicate
// stock that can no longer be credited back.
type ReversalReport struct {
	Reversed         int
	SkippedInventory int
	SkippedTrays     int
	Failed           []string // journal entry ids whose transaction failed
}

// ReverseOrder replays and deletes every journal entry for orderID. Each
// entry restores and deletes in its own transaction, so a retry after a
// crash never double-credits: an entry either still exists (not yet
// replayed) or is gone. No entries means nothing to do.
func (l *Ledger) ReverseOrder(ctx context.Context, orderID string) (ReversalReport, error) {
	var report ReversalReport

	rows, err := l.DB.Query(ctx, `
		SELECT id, order_id, product_id, warehouse_reduced_qty, tray_reduced_qty, total_reduced_qty, tray_draws
		FROM order_operations WHERE order_id=$1`, orderID)
	if err != nil {
		return report, err
	}
	var entries []Entry
	for rows.Next() {
		var e Entry
		var draws []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ProductID,
			&e.WarehouseReduced, &e.TrayReduced, &e.TotalReduced, &draws); err != nil {
			rows.Close()
			return report, err
		}
		if err := json.Unmarshal(draws, &e.Draws); err != nil {
			rows.Close()
			return report, fmt.Errorf("decode tray draws for entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	for _, e := range entries {
		claimed, skippedInv, skippedTrays, err := l.reverseEntry(ctx, e)
		if err != nil {
			l.Log.Error("journal entry reversal failed",
				zap.String("entry_id", e.ID),
				zap.String("order_id", orderID),
				zap.String("product_id", e.ProductID),
				zap.Error(err))
			report.Failed = append(report.Failed, e.ID)
			continue
		}
		if !claimed {
			// a concurrent reversal got there first; its transaction
			// credited the stock, so there is nothing left to do
			continue
		}
		report.Reversed++
		if skippedInv {
			report.SkippedInventory++
		}
		report.SkippedTrays += skippedTrays
	}

	if report.SkippedInventory > 0 || report.SkippedTrays > 0 {
		l.Log.Warn("reversal skipped missing records",
			zap.String("order_id", orderID),
			zap.Int("skipped_inventory", report.SkippedInventory),
			zap.Int("skipped_trays", report.SkippedTrays))
	}
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("reversal incomplete for order %s: %d of %d entries failed",
			orderID, len(report.Failed), len(entries))
	}
	return report, nil
}

func (l *Ledger) reverseEntry(ctx context.Context, e Entry) (claimed, skippedInv bool, skippedTrays int, err error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, false, 0, wrapConflict(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Deleting the entry first claims it: a concurrent reversal blocks on
	// the row lock and then sees zero rows. Restore and delete commit
	// together, so a crash mid-reversal leaves the entry intact for retry
	// and a replayed entry can never credit stock twice.
	ct, err := tx.Exec(ctx, `DELETE FROM order_operations WHERE id=$1`, e.ID)
	if err != nil {
		return false, false, 0, wrapConflict(err)
	}
	if ct.RowsAffected() == 0 {
		return false, false, 0, nil
	}

	ct, err = tx.Exec(ctx, `
		UPDATE product_inventory
		SET warehouse_qty = warehouse_qty + $2,
		    tray_qty      = tray_qty + $3,
		    total_qty     = total_qty + $4,
		    updated_at    = now()
		WHERE product_id = $1`,
		e.ProductID, e.WarehouseReduced, e.TrayReduced, e.TotalReduced)
	if err != nil {
		return false, false, 0, wrapConflict(err)
	}
	if ct.RowsAffected() == 0 {
		// Inventory record deleted out from under us; nothing to credit.
		skippedInv = true
	} else {
		for _, d := range e.Draws {
			ct, err := tx.Exec(ctx, `
				UPDATE tray_products SET qty = qty + $3, status = $4
				WHERE tray_id = $1 AND product_id = $2`,
				d.TrayID, e.ProductID, d.Qty, d.PrevStatus)
			if err != nil {
				return false, false, 0, wrapConflict(err)
			}
			if ct.RowsAffected() == 0 {
				skippedTrays++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, false, 0, wrapConflict(err)
	}
	return true, skippedInv, skippedTrays, nil
}

// wrapConflict maps serialization failures and deadlocks onto
// ErrConcurrencyConflict so callers can distinguish retryable aborts.
func wrapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}
