package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrOrderNumberExhausted: order-number generation kept colliding past
// the attempt bound. Not retried here; the caller may retry the request.
var ErrOrderNumberExhausted = errors.New("order number generation exhausted")

const orderNumberAttempts = 5

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GenerateOrderNumber produces a short human-facing order number and
// checks it against existing orders, retrying on collision up to the
// attempt bound.
func GenerateOrderNumber(ctx context.Context, q rowQuerier) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		n := newOrderNumber()
		var exists bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE order_number=$1)`, n).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: gave up after %d attempts", ErrOrderNumberExhausted, orderNumberAttempts)
}

func newOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:8])
}
