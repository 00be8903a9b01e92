package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optilens/fulfillment/internal/orders"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, rec orders.AuditRecordPayload) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO audit_log(id, actor, action, table_name, record_id, old_values, new_values)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.NewString(), rec.Actor, rec.Action, rec.Table, rec.RecordID,
		nilIfEmpty(rec.OldValues), nilIfEmpty(rec.NewValues))
	return err
}

func nilIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
